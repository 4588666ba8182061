package domain

// Confidence rates how trustworthy a document's extracted text is.
// It propagates from the extraction method to chunks and retrieval
// results. Ordered: low < medium < high.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

var confidenceRank = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// Less reports whether c ranks strictly below other.
func (c Confidence) Less(other Confidence) bool {
	return confidenceRank[c] < confidenceRank[other]
}

// Valid reports whether c is one of the three defined levels.
func (c Confidence) Valid() bool {
	_, ok := confidenceRank[c]
	return ok
}

// ConfidenceForMeanScore maps the mean similarity score of a retrieval
// result to its aggregate label. Both bounds are exclusive: a mean of
// exactly 0.8 is medium and exactly 0.5 is low.
func ConfidenceForMeanScore(mean float64) Confidence {
	switch {
	case mean > 0.8:
		return ConfidenceHigh
	case mean > 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
