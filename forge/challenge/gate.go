// Package challenge implements the visual-choice bot deterrence gate.
//
// A challenge is one question with a handful of emoji options, exactly one of
// which is correct. Wrong answers are counted per identity across challenges;
// reaching the threshold bans the identity.
package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/forge/domain"
)

// DefaultThreshold is the number of wrong answers that triggers a ban.
const DefaultThreshold = 5

// Purpose tells the caller where to resume after a correct answer.
type Purpose string

const (
	// PurposeEntry gates access to the ordering flows.
	PurposeEntry Purpose = "entry"
	// PurposePreConfirm gates the finalization of one order.
	PurposePreConfirm Purpose = "pre_confirm"
)

// Template is one question of the pool.
type Template struct {
	Question string
	Options  []string
	Correct  int
}

// DefaultPool is the built-in question pool.
var DefaultPool = []Template{
	{Question: "Pick the hammer to continue 🔨", Options: []string{"🔨", "🍏", "🚗", "🐱"}, Correct: 0},
	{Question: "Which one is the hammer and pick? Choose the right option.", Options: []string{"🪨", "🧊", "⚒️", "📦"}, Correct: 2},
	{Question: "Pick the fire to light the forge 🔥", Options: []string{"🌊", "🍞", "🔥", "🌳"}, Correct: 2},
}

// Pending is the state of an issued, unanswered challenge.
type Pending struct {
	Correct int              `json:"correct"`
	Options int              `json:"options"`
	Purpose Purpose          `json:"purpose"`
	Carried domain.OrderKind `json:"carried,omitempty"`
}

// Issued is a challenge ready to be shown.
type Issued struct {
	Question string
	Options  []string
	Pending  Pending
}

// Outcome is the result of verifying an answer.
type Outcome int

const (
	OutcomeInvalid Outcome = iota
	OutcomeCorrect
	OutcomeIncorrect
	OutcomeBanned
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	case OutcomeBanned:
		return "banned"
	default:
		return "invalid"
	}
}

// Verdict describes what happened to an answer.
type Verdict struct {
	Outcome   Outcome
	Purpose   Purpose
	Carried   domain.OrderKind
	Attempts  int
	Remaining int
	// Next is the replacement challenge after an incorrect answer.
	Next *Issued
}

// Counter stores failed attempts per identity.
type Counter interface {
	IncrementAttempts(ctx context.Context, who domain.Identity, at time.Time) (int, error)
	ResetAttempts(ctx context.Context, who domain.Identity) error
}

// Banner applies bans.
type Banner interface {
	Ban(ctx context.Context, who domain.Identity, reason string) error
}

// Gate issues and verifies challenges.
type Gate struct {
	pool      []Template
	counter   Counter
	bans      Banner
	threshold int
	rnd       func(n int) int
	now       func() time.Time
}

// Option customizes a Gate.
type Option func(*Gate)

// WithThreshold overrides the number of wrong answers that bans.
func WithThreshold(n int) Option {
	return func(g *Gate) {
		if n > 0 {
			g.threshold = n
		}
	}
}

// WithPool replaces the question pool.
func WithPool(pool []Template) Option {
	return func(g *Gate) {
		if len(pool) > 0 {
			g.pool = pool
		}
	}
}

// WithRand replaces the template picker. rnd must return a value in [0, n).
func WithRand(rnd func(n int) int) Option {
	return func(g *Gate) {
		if rnd != nil {
			g.rnd = rnd
		}
	}
}

// WithClock replaces the clock used for attempt timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// NewGate builds a gate that counts attempts in counter and bans through bans.
func NewGate(counter Counter, bans Banner, opts ...Option) *Gate {
	g := &Gate{
		pool:      DefaultPool,
		counter:   counter,
		bans:      bans,
		threshold: DefaultThreshold,
		rnd:       rand.IntN,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Threshold returns the number of wrong answers that bans.
func (g *Gate) Threshold() int {
	return g.threshold
}

// BanReason is the ban reason written on escalation.
func (g *Gate) BanReason() string {
	return fmt.Sprintf("failed verification %d times", g.threshold)
}

// Issue picks a template and returns a fresh challenge.
func (g *Gate) Issue(purpose Purpose, carried domain.OrderKind) Issued {
	t := g.pool[g.rnd(len(g.pool))]
	opts := make([]string, len(t.Options))
	copy(opts, t.Options)
	return Issued{
		Question: t.Question,
		Options:  opts,
		Pending: Pending{
			Correct: t.Correct,
			Options: len(t.Options),
			Purpose: purpose,
			Carried: carried,
		},
	}
}

// Verify checks the chosen option of the pending challenge p.
// A nil p or an out-of-range option yields OutcomeInvalid without touching the counter.
func (g *Gate) Verify(ctx context.Context, who domain.Identity, p *Pending, chosen int) (Verdict, error) {
	if p == nil || chosen < 0 || chosen >= p.Options {
		return Verdict{Outcome: OutcomeInvalid}, nil
	}
	v := Verdict{Purpose: p.Purpose, Carried: p.Carried}

	if chosen == p.Correct {
		if err := g.counter.ResetAttempts(ctx, who); err != nil {
			return Verdict{}, fmt.Errorf("reset attempts: %w", err)
		}
		v.Outcome = OutcomeCorrect
		logger.Debug(ctx, logger.ComponentChallenge, "challenge.passed",
			slog.String("purpose", string(p.Purpose)),
		)
		return v, nil
	}

	n, err := g.counter.IncrementAttempts(ctx, who, g.now())
	if err != nil {
		return Verdict{}, fmt.Errorf("count attempt: %w", err)
	}
	v.Attempts = n

	if n >= g.threshold {
		if err := g.bans.Ban(ctx, who, g.BanReason()); err != nil {
			return Verdict{}, fmt.Errorf("ban after %d attempts: %w", n, err)
		}
		if err := g.counter.ResetAttempts(ctx, who); err != nil {
			return Verdict{}, fmt.Errorf("reset attempts after ban: %w", err)
		}
		v.Outcome = OutcomeBanned
		logger.Info(ctx, logger.ComponentChallenge, "challenge.banned",
			slog.String("purpose", string(p.Purpose)),
			slog.Int("attempts", n),
		)
		return v, nil
	}

	next := g.Issue(p.Purpose, p.Carried)
	v.Outcome = OutcomeIncorrect
	v.Remaining = g.threshold - n
	v.Next = &next
	logger.Debug(ctx, logger.ComponentChallenge, "challenge.failed",
		slog.String("purpose", string(p.Purpose)),
		slog.Int("attempts", n),
		slog.Int("remaining", v.Remaining),
	)
	return v, nil
}
