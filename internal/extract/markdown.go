package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/studydesk/studydesk/internal/domain"
)

// Markdown extracts plain text from Markdown through the goldmark AST,
// dropping formatting but keeping block boundaries as paragraph breaks.
type Markdown struct{}

var _ Extractor = (*Markdown)(nil)

func (m *Markdown) Reliability() domain.Confidence { return domain.ConfidenceMedium }

func (m *Markdown) Extract(_ context.Context, path string) (string, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if block := blockText(n, src); block != "" {
			blocks = append(blocks, block)
		}
	}

	return strings.Join(blocks, "\n\n"), nil
}

// blockText gets the text content of a goldmark AST node. Parsed nodes
// carry their text twice, as raw source lines and as inline children;
// collecting both would duplicate every paragraph, so lines are only
// read for leaf blocks like code fences that have no inline children.
func blockText(n ast.Node, src []byte) string {
	var buf bytes.Buffer

	if !n.HasChildren() {
		if n.Type() == ast.TypeBlock {
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				buf.Write(line.Value(src))
			}
		}
		return strings.TrimSpace(buf.String())
	}

	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		if text := blockText(c, src); text != "" {
			if buf.Len() > 0 && c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			buf.WriteString(text)
		}
	}
	return strings.TrimSpace(buf.String())
}
