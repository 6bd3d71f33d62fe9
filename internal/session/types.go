package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cerinalabs/foundry/internal/ledger"
	"github.com/cerinalabs/foundry/internal/role"
)

// State is the supervisor's position in the routing state machine. It is
// part of the session snapshot so a crashed turn resumes where it stopped.
type State string

const (
	StateInit           State = "init"
	StateRouteIntent    State = "route_intent"
	StateChat           State = "chat"
	StateDrafting       State = "drafting"
	StateSafetyReview   State = "safety_review"
	StateClinicalReview State = "clinical_review"
	StateHumanReview    State = "human_review"
	StateChatDone       State = "chat_done"
	StateAborted        State = "aborted"
)

// Terminal reports whether s ends a turn.
func (s State) Terminal() bool {
	switch s {
	case StateHumanReview, StateChatDone, StateAborted:
		return true
	}
	return false
}

// Session is the complete state for one thread key.
type Session struct {
	Key           string         `json:"key"`
	State         State          `json:"state"`
	Messages      []role.Message `json:"messages"`
	Ledger        ledger.Ledger  `json:"ledger"`
	Scratchpad    []role.Note    `json:"scratchpad"`
	LastRole      role.Role      `json:"last_role,omitempty"`
	Steps         int            `json:"steps"`
	TurnRevisions int            `json:"turn_revisions"`
	Unresolved    bool           `json:"unresolved,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// New creates a fresh session for the given key.
func New(key string) *Session {
	now := time.Now().UTC()
	return &Session{
		Key:       key,
		State:     StateInit,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendMessage adds an entry to the ordered message log.
func (s *Session) AppendMessage(sender, content string) {
	s.Messages = append(s.Messages, role.Message{
		Sender:  sender,
		Content: content,
		At:      time.Now().UTC(),
	})
}

// AppendNote adds an append-only scratchpad entry visible to all subsequent
// roles.
func (s *Session) AppendNote(author role.Role, text string) {
	s.Scratchpad = append(s.Scratchpad, role.Note{
		Author: author,
		Text:   text,
		At:     time.Now().UTC(),
	})
}

// View builds the minimal context a role invocation needs: the message log
// tail, the current draft, critiques of the current version, and the most
// recent scratchpad notes.
func (s *Session) View(messageTail, noteTail int) role.Context {
	view := role.Context{}

	msgs := s.Messages
	if messageTail > 0 && len(msgs) > messageTail {
		msgs = msgs[len(msgs)-messageTail:]
	}
	view.Messages = append(view.Messages, msgs...)

	if latest := s.Ledger.Latest(); latest != nil {
		view.Draft = &role.Draft{
			Title:        latest.Title,
			Content:      latest.Content,
			Instructions: latest.Instructions,
		}
		view.DraftVersion = latest.Version
		view.Critiques = append(view.Critiques, s.Ledger.Critiques...)
	}

	notes := s.Scratchpad
	if noteTail > 0 && len(notes) > noteTail {
		notes = notes[len(notes)-noteTail:]
	}
	view.Notes = append(view.Notes, notes...)

	return view
}

// Snapshot serializes the session to its durable form.
func (s *Session) Snapshot() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal session %s: %w", s.Key, err)
	}
	return data, nil
}

// FromSnapshot restores a session from its durable form.
func FromSnapshot(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}
	return &s, nil
}
