package domain

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// MediaType is the declared format of an uploaded file. Unknown values
// are accepted at upload time and fail during extraction instead, so a
// bad declaration never blocks the upload request.
type MediaType string

const (
	MediaPDF      MediaType = "pdf"
	MediaImage    MediaType = "image"
	MediaAudio    MediaType = "audio"
	MediaDocx     MediaType = "docx"
	MediaMarkdown MediaType = "markdown"
	MediaHTML     MediaType = "html"
	MediaText     MediaType = "text"
	MediaCSV      MediaType = "csv"
)

// MediaTypeForFilename infers a media type from the file extension.
func MediaTypeForFilename(name string) (MediaType, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return MediaPDF, true
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tif", ".tiff":
		return MediaImage, true
	case ".mp3", ".wav", ".m4a", ".ogg", ".flac", ".aac":
		return MediaAudio, true
	case ".docx":
		return MediaDocx, true
	case ".md", ".markdown":
		return MediaMarkdown, true
	case ".html", ".htm":
		return MediaHTML, true
	case ".txt", ".text", ".log":
		return MediaText, true
	case ".csv":
		return MediaCSV, true
	}
	return "", false
}

// Category classifies what kind of course material a document is.
type Category string

const (
	CategoryHandout      Category = "handout"
	CategoryPastQuestion Category = "past-question"
	CategoryOther        Category = "other"
)

// ParseCategory normalizes a user-supplied category, defaulting to other.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryHandout:
		return CategoryHandout
	case CategoryPastQuestion:
		return CategoryPastQuestion
	default:
		return CategoryOther
	}
}

// Status tracks a document through the ingestion pipeline.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusCleaning   Status = "cleaning"
	StatusChunking   Status = "chunking"
	StatusEmbedding  Status = "embedding"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the pipeline will not transition s further.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Document is one uploaded source file. Text fields start empty and are
// written by the ingestion pipeline; a failed document keeps empty text
// and low confidence so listings read as "processed, no usable content".
type Document struct {
	ID          string
	FileName    string
	StoredPath  string
	ContentHash string
	MediaType   MediaType
	Category    Category
	CourseCode  string
	Status      Status
	RawText     string
	CleanedText string
	Confidence  Confidence
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EffectiveText is the text chunks are cut from: cleaned when cleanup
// produced one, raw otherwise.
func (d *Document) EffectiveText() string {
	if strings.TrimSpace(d.CleanedText) != "" {
		return d.CleanedText
	}
	return d.RawText
}

var courseCodeStrip = regexp.MustCompile(`[^A-Z0-9]+`)

// NormalizeCourseCode uppercases a course code and strips separators,
// so "csc 201" and "CSC-201" both scope-match "CSC201".
func NormalizeCourseCode(s string) string {
	return courseCodeStrip.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "")
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
