package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "reply_counters"

// ReplyCounters summarises what a handler sent back for one update.
type ReplyCounters struct {
	Sent     int
	Edited   int
	Answered int
	Keyboard bool
}

// Messages returns sent plus edited messages.
func (r ReplyCounters) Messages() int { return r.Sent + r.Edited }

// metricsContext wraps tele.Context to count replies and keyboard usage.
type metricsContext struct {
	tele.Context
	counters *ReplyCounters
}

func hasKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m metricsContext) track(err error, edited bool, opts []interface{}) error {
	if err != nil {
		return err
	}
	if edited {
		m.counters.Edited++
	} else {
		m.counters.Sent++
	}
	if hasKeyboard(opts) {
		m.counters.Keyboard = true
	}
	return nil
}

func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Send(what, opts...), false, opts)
}

func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Reply(what, opts...), false, opts)
}

func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	return m.track(m.Context.Edit(what, opts...), true, opts)
}

// Respond counts callback answers separately from chat messages.
func (m metricsContext) Respond(resp ...*tele.CallbackResponse) error {
	err := m.Context.Respond(resp...)
	if err == nil {
		m.counters.Answered++
	}
	return err
}

// MessageMetricsMiddleware instruments the context so handler summaries can
// report how many messages were sent or edited and whether a keyboard went out.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &ReplyCounters{}
		c.Set(countersKey, counters)
		return next(metricsContext{Context: c, counters: counters})
	}
}

// Counters reads the reply counters stored by MessageMetricsMiddleware.
func Counters(c tele.Context) ReplyCounters {
	if v, ok := c.Get(countersKey).(*ReplyCounters); ok && v != nil {
		return *v
	}
	return ReplyCounters{}
}
