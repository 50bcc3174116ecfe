// Package session keeps the per-identity conversation state.
package session

import (
	"context"
	"maps"
	"time"

	"github.com/m3rciful/forgebot/forge/challenge"
	"github.com/m3rciful/forgebot/forge/domain"
)

// DefaultTTL is how long an idle session is retained.
const DefaultTTL = 24 * time.Hour

// Step is a state of the conversation machine.
type Step string

const (
	StepNone                Step = "NONE"
	StepEntryChallenge      Step = "ENTRY_CHALLENGE"
	StepCatalogDesc         Step = "CATALOG_DESC"
	StepCustomTitle         Step = "CUSTOM_TITLE"
	StepCustomDesc          Step = "CUSTOM_DESC"
	StepCustomBudget        Step = "CUSTOM_BUDGET"
	StepCustomDeadline      Step = "CUSTOM_DEADLINE"
	StepContactMethod       Step = "CONTACT_METHOD"
	StepContactValue        Step = "CONTACT_VALUE"
	StepPreConfirmChallenge Step = "PRE_CONFIRM_CHALLENGE"
	StepName                Step = "NAME"
	StepConfirm             Step = "CONFIRM"
	StepAppealReason        Step = "APPEAL_REASON"
)

// Session is the conversation state of one identity.
type Session struct {
	Identity  domain.Identity    `json:"identity"`
	Step      Step               `json:"step"`
	Kind      domain.OrderKind   `json:"kind,omitempty"`
	Fields    map[string]string  `json:"fields,omitempty"`
	Challenge *challenge.Pending `json:"challenge,omitempty"`
	// Verified is set once the entry challenge is passed.
	Verified  bool      `json:"verified"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns an idle session for who.
func New(who domain.Identity) *Session {
	return &Session{Identity: who, Step: StepNone, Fields: map[string]string{}}
}

// Field returns a collected value or "".
func (s *Session) Field(name string) string {
	if s == nil || s.Fields == nil {
		return ""
	}
	return s.Fields[name]
}

// SetField stores a collected value.
func (s *Session) SetField(name, value string) {
	if s.Fields == nil {
		s.Fields = map[string]string{}
	}
	s.Fields[name] = value
}

// Reset returns the session to NONE, dropping collected data but keeping Verified.
func (s *Session) Reset() {
	s.Step = StepNone
	s.Kind = ""
	s.Fields = map[string]string{}
	s.Challenge = nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Fields = maps.Clone(s.Fields)
	if out.Fields == nil {
		out.Fields = map[string]string{}
	}
	if s.Challenge != nil {
		ch := *s.Challenge
		out.Challenge = &ch
	}
	return &out
}

// Store persists sessions keyed by identity.
type Store interface {
	// Get returns the live session for who; ok is false when none exists or it expired.
	Get(ctx context.Context, who domain.Identity) (s *Session, ok bool, err error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, who domain.Identity) error
}
