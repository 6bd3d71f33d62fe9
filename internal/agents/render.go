package agents

import (
	"fmt"
	"strings"

	"github.com/cerinalabs/foundry/internal/role"
)

// renderConversation flattens the message log tail into a prompt body.
func renderConversation(view role.Context) string {
	var b strings.Builder
	for _, m := range view.Messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Sender, m.Content)
	}
	return b.String()
}

// renderDraftingRequest builds the drafter's prompt body: the conversation,
// the previous version, and the feedback it must address.
func renderDraftingRequest(view role.Context) string {
	var b strings.Builder
	b.WriteString(renderConversation(view))

	if view.Draft != nil {
		fmt.Fprintf(&b, "\nPrevious version (v%d): %s\n%s\n", view.DraftVersion, view.Draft.Title, view.Draft.Content)
	}

	recent := view.Critiques
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	if len(recent) > 0 {
		b.WriteString("\nRecent critiques to address:\n")
		for _, c := range recent {
			verdict := "rejected"
			if c.Approved != nil && *c.Approved {
				verdict = "approved"
			}
			fmt.Fprintf(&b, "- [%s] %s: %s\n", c.Author, verdict, c.Rationale)
		}
	}

	if len(view.Notes) > 0 {
		b.WriteString("\nScratchpad notes from reviewers:\n")
		for _, n := range view.Notes {
			if n.Author == role.RoleSafetyGuardian || n.Author == role.RoleClinicalCritic {
				fmt.Fprintf(&b, "- [%s] %s\n", n.Author, n.Text)
			}
		}
		b.WriteString("\nPlease revise the draft based on this feedback.\n")
	}
	return b.String()
}

// renderReviewRequest builds a reviewer's prompt body from the current
// draft version.
func renderReviewRequest(view role.Context) string {
	var b strings.Builder
	if view.Draft == nil {
		b.WriteString("No draft available.\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Reviewing draft v%d.\n\n", view.DraftVersion)
	fmt.Fprintf(&b, "Title: %s\n\nInstructions:\n%s\n\nContent:\n%s\n",
		view.Draft.Title, view.Draft.Instructions, view.Draft.Content)
	return b.String()
}
