// Package explain holds the score breakdown tree returned by Explain calls.
package explain

import (
	"html"
	"strconv"
	"strings"
)

// Explanation describes how a score was computed. Value is the contribution
// of this node and Details justify it.
type Explanation struct {
	Value       float32        `json:"value"`
	Description string         `json:"description"`
	Details     []*Explanation `json:"details,omitempty"`
}

func New(value float32, description string) *Explanation {
	return &Explanation{Value: value, Description: description}
}

func (e *Explanation) AddDetail(detail *Explanation) {
	e.Details = append(e.Details, detail)
}

func (e *Explanation) String() string {
	var b strings.Builder
	e.writeText(&b, 0)
	return b.String()
}

func (e *Explanation) writeText(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
	b.WriteString(formatValue(e.Value))
	b.WriteString(" = ")
	b.WriteString(e.Description)
	b.WriteByte('\n')
	for _, d := range e.Details {
		d.writeText(b, depth+1)
	}
}

// HTML renders the tree as nested unordered lists.
func (e *Explanation) HTML() string {
	var b strings.Builder
	b.WriteString("<ul>\n")
	e.writeHTML(&b)
	b.WriteString("</ul>\n")
	return b.String()
}

func (e *Explanation) writeHTML(b *strings.Builder) {
	b.WriteString("<li>")
	b.WriteString(formatValue(e.Value))
	b.WriteString(" = ")
	b.WriteString(html.EscapeString(e.Description))
	b.WriteString("</li>\n")
	if len(e.Details) == 0 {
		return
	}
	b.WriteString("<ul>\n")
	for _, d := range e.Details {
		d.writeHTML(b)
	}
	b.WriteString("</ul>\n")
}

func formatValue(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}
