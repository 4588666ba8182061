package domain

import (
	"strings"
	"testing"
)

func TestConfidenceForMeanScore(t *testing.T) {
	tests := []struct {
		name string
		mean float64
		want Confidence
	}{
		{"well above high bound", 0.85, ConfidenceHigh},
		{"exactly 0.8 is medium", 0.8, ConfidenceMedium},
		{"just above medium bound", 0.51, ConfidenceMedium},
		{"exactly 0.5 is low", 0.5, ConfidenceLow},
		{"zero", 0, ConfidenceLow},
		{"negative", -0.2, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ConfidenceForMeanScore(tt.mean); got != tt.want {
				t.Errorf("ConfidenceForMeanScore(%v) = %q, want %q", tt.mean, got, tt.want)
			}
		})
	}
}

func TestConfidenceOrdering(t *testing.T) {
	if !ConfidenceLow.Less(ConfidenceMedium) {
		t.Error("low should rank below medium")
	}
	if !ConfidenceMedium.Less(ConfidenceHigh) {
		t.Error("medium should rank below high")
	}
	if ConfidenceHigh.Less(ConfidenceLow) {
		t.Error("high should not rank below low")
	}
	if ConfidenceMedium.Less(ConfidenceMedium) {
		t.Error("Less should be strict")
	}
}

func TestNormalizeCourseCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"csc 201", "CSC201"},
		{"CSC-201", "CSC201"},
		{"  mth101 ", "MTH101"},
		{"PHY 101.2", "PHY1012"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCourseCode(tt.in); got != tt.want {
			t.Errorf("NormalizeCourseCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
	}{
		{"handout", CategoryHandout},
		{"  Past-Question ", CategoryPastQuestion},
		{"lecture notes", CategoryOther},
		{"", CategoryOther},
	}
	for _, tt := range tests {
		if got := ParseCategory(tt.in); got != tt.want {
			t.Errorf("ParseCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMediaTypeForFilename(t *testing.T) {
	tests := []struct {
		name string
		want MediaType
		ok   bool
	}{
		{"notes.pdf", MediaPDF, true},
		{"scan.JPG", MediaImage, true},
		{"lecture.mp3", MediaAudio, true},
		{"handout.docx", MediaDocx, true},
		{"summary.md", MediaMarkdown, true},
		{"page.html", MediaHTML, true},
		{"raw.txt", MediaText, true},
		{"grades.csv", MediaCSV, true},
		{"archive.zip", "", false},
		{"noextension", "", false},
	}
	for _, tt := range tests {
		got, ok := MediaTypeForFilename(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MediaTypeForFilename(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEffectiveText(t *testing.T) {
	doc := &Document{RawText: "raw ocr text"}
	if got := doc.EffectiveText(); got != "raw ocr text" {
		t.Errorf("EffectiveText without cleanup = %q, want raw text", got)
	}
	doc.CleanedText = "cleaned text"
	if got := doc.EffectiveText(); got != "cleaned text" {
		t.Errorf("EffectiveText with cleanup = %q, want cleaned text", got)
	}
	doc.CleanedText = "   "
	if got := doc.EffectiveText(); got != "raw ocr text" {
		t.Errorf("EffectiveText with blank cleanup = %q, want raw text", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusExtracting, StatusCleaning, StatusChunking, StatusEmbedding} {
		if s.Terminal() {
			t.Errorf("%q should not be terminal", s)
		}
	}
	for _, s := range []Status{StatusDone, StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%q should be terminal", s)
		}
	}
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if len(id) != 26 {
			t.Fatalf("NewID() length = %d, want 26", len(id))
		}
		if strings.ToUpper(id) != id {
			t.Fatalf("NewID() = %q, want uppercase Crockford alphabet", id)
		}
		if seen[id] {
			t.Fatalf("NewID() produced duplicate %q", id)
		}
		seen[id] = true
	}
}
