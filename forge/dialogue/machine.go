package dialogue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"github.com/m3rciful/forgebot/core/logger"
	"github.com/m3rciful/forgebot/forge/session"
)

// Transition events.
const (
	evStart         = "start"
	evPassEntry     = "pass_entry"
	evPickService   = "pick_service"
	evBeginCustom   = "begin_custom"
	evSubmit        = "submit"
	evPickContact   = "pick_contact"
	evPassChallenge = "pass_challenge"
	evDecide        = "decide"
	evAppeal        = "appeal"
	evAppealSent    = "appeal_sent"
)

func steps(s ...session.Step) []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = string(st)
	}
	return out
}

// transitions is the complete step table. Anything not listed is rejected.
var transitions = fsm.Events{
	{Name: evStart, Src: steps(session.StepNone), Dst: string(session.StepEntryChallenge)},
	{Name: evPassEntry, Src: steps(session.StepEntryChallenge), Dst: string(session.StepNone)},
	{Name: evPickService, Src: steps(session.StepNone), Dst: string(session.StepCatalogDesc)},
	{Name: evBeginCustom, Src: steps(session.StepNone), Dst: string(session.StepCustomTitle)},
	{Name: evSubmit, Src: steps(session.StepCatalogDesc), Dst: string(session.StepContactMethod)},
	{Name: evSubmit, Src: steps(session.StepCustomTitle), Dst: string(session.StepCustomDesc)},
	{Name: evSubmit, Src: steps(session.StepCustomDesc), Dst: string(session.StepCustomBudget)},
	{Name: evSubmit, Src: steps(session.StepCustomBudget), Dst: string(session.StepCustomDeadline)},
	{Name: evSubmit, Src: steps(session.StepCustomDeadline), Dst: string(session.StepContactMethod)},
	{Name: evPickContact, Src: steps(session.StepContactMethod), Dst: string(session.StepContactValue)},
	{Name: evSubmit, Src: steps(session.StepContactValue), Dst: string(session.StepPreConfirmChallenge)},
	{Name: evPassChallenge, Src: steps(session.StepPreConfirmChallenge), Dst: string(session.StepName)},
	{Name: evSubmit, Src: steps(session.StepName), Dst: string(session.StepConfirm)},
	{Name: evDecide, Src: steps(session.StepConfirm), Dst: string(session.StepNone)},
	{Name: evAppeal, Src: steps(session.StepNone), Dst: string(session.StepAppealReason)},
	{Name: evAppealSent, Src: steps(session.StepAppealReason), Dst: string(session.StepNone)},
}

func machineAt(step session.Step) *fsm.FSM {
	if step == "" {
		step = session.StepNone
	}
	return fsm.NewFSM(string(step), transitions, nil)
}

// can reports whether ev is allowed from the current step of s.
func can(s *session.Session, ev string) bool {
	return machineAt(s.Step).Can(ev)
}

// advance fires ev on s and moves it to the resulting step.
func advance(ctx context.Context, s *session.Session, ev string) error {
	m := machineAt(s.Step)
	from := m.Current()
	if err := m.Event(ctx, ev); err != nil {
		return fmt.Errorf("dialogue: %s from %s: %w", ev, from, err)
	}
	s.Step = session.Step(m.Current())
	logger.Debug(ctx, logger.ComponentSessions, "step.transition",
		slog.String("step", from),
		slog.String("next_step", string(s.Step)),
		slog.String("operation", ev),
	)
	return nil
}
