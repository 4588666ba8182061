package cleanup

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Output length bounds relative to the input. Cleanup fixes characters
// and strips artifacts; it must not halve or double the text. Short
// inputs are exempt because the ratio is meaningless at that scale.
const (
	minLengthRatio    = 0.3
	maxLengthRatio    = 2.0
	minValidatedRunes = 80
)

// validateCleaned rejects model output that plainly lost or invented
// content instead of cleaning it.
func validateCleaned(raw, cleaned string) error {
	if cleaned == "" {
		return errors.New("cleaned text is empty")
	}

	rawLen := utf8.RuneCountInString(raw)
	if rawLen < minValidatedRunes {
		return nil
	}

	ratio := float64(utf8.RuneCountInString(cleaned)) / float64(rawLen)
	if ratio < minLengthRatio {
		return fmt.Errorf("output shrank to %.0f%% of input, likely summarized", ratio*100)
	}
	if ratio > maxLengthRatio {
		return fmt.Errorf("output grew to %.0f%% of input, likely added content", ratio*100)
	}
	return nil
}
