package engine

import (
	"github.com/cerinalabs/foundry/internal/ledger"
	"github.com/cerinalabs/foundry/internal/role"
)

// ProgressEvent is emitted after each completed role invocation, in the
// exact order the roles ran.
type ProgressEvent struct {
	Role    role.Role `json:"role"`
	Summary string    `json:"summary"`
	Step    int       `json:"step"`
}

// TerminalKind tags how a turn ended.
type TerminalKind string

const (
	// TerminalChatReply ends a casual turn with a conversational reply.
	TerminalChatReply TerminalKind = "chat_reply"

	// TerminalDraftReady ends a drafting turn with an approved version.
	TerminalDraftReady TerminalKind = "draft_ready"

	// TerminalAborted marks budget exhaustion; the last draft and its
	// critiques are retained and surfaced as unresolved.
	TerminalAborted TerminalKind = "aborted"

	// TerminalErrored marks a fatal adapter or persistence failure.
	TerminalErrored TerminalKind = "errored"

	// TerminalCancelled marks a turn cancelled between role invocations.
	TerminalCancelled TerminalKind = "cancelled"
)

// TerminalResult ends every turn. Whatever the kind, the best-known partial
// state (latest draft and metadata) rides along so callers never lose work.
type TerminalResult struct {
	Kind     TerminalKind           `json:"kind"`
	Reply    string                 `json:"reply,omitempty"`
	Draft    *ledger.DraftVersion   `json:"draft,omitempty"`
	Metadata *ledger.ReviewMetadata `json:"metadata,omitempty"`
	Reason   string                 `json:"reason,omitempty"`
}

// Event is one entry on a turn's ordered event stream: either a progress
// update or the single terminal result that closes the stream.
type Event struct {
	Progress *ProgressEvent  `json:"progress,omitempty"`
	Terminal *TerminalResult `json:"terminal,omitempty"`
}
