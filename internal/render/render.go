// Package render formats approved drafts for delivery.
package render

import (
	"fmt"
	"strings"

	"github.com/cerinalabs/foundry/internal/ledger"
)

// Exercise renders a draft version as a markdown document, including the
// review scores recorded for it.
func Exercise(v *ledger.DraftVersion, meta ledger.ReviewMetadata) string {
	if v == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", v.Title)
	if v.Instructions != "" {
		b.WriteString("## Instructions\n\n")
		b.WriteString(strings.TrimSpace(v.Instructions))
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(v.Content))
	b.WriteString("\n\n---\n\n")
	fmt.Fprintf(&b, "*Version %d", v.Version)
	if meta.TotalRevisions > 0 {
		fmt.Fprintf(&b, ", %d revision(s)", meta.TotalRevisions)
	}
	b.WriteString("*\n")

	scores := scoreLine(meta)
	if scores != "" {
		fmt.Fprintf(&b, "*Review scores: %s*\n", scores)
	}
	return b.String()
}

func scoreLine(meta ledger.ReviewMetadata) string {
	var parts []string
	if meta.SafetyScore != nil {
		parts = append(parts, fmt.Sprintf("safety %.2f", *meta.SafetyScore))
	}
	if meta.EmpathyScore != nil {
		parts = append(parts, fmt.Sprintf("empathy %.2f", *meta.EmpathyScore))
	}
	if meta.ClarityScore != nil {
		parts = append(parts, fmt.Sprintf("clarity %.2f", *meta.ClarityScore))
	}
	return strings.Join(parts, ", ")
}
