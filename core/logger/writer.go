package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// sink is one output with the minimum level it accepts.
type sink struct {
	w        *bufio.Writer
	minLevel slog.Level
}

type entry struct {
	level slog.Level
	line  []byte
}

// asyncWriter fans formatted lines out to its sinks on a single goroutine,
// so handlers never block on file or terminal IO unless the queue is full.
type asyncWriter struct {
	queue    chan entry
	flushReq chan chan error
	done     chan struct{}
	sinks    []sink

	mu     sync.RWMutex
	closed bool

	errMu    sync.Mutex
	writeErr error
}

// output pairs a destination with the lowest level routed to it.
type output struct {
	w        io.Writer
	minLevel slog.Level
}

func newAsyncWriter(outputs []output, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]sink, 0, len(outputs))
	for _, o := range outputs {
		if o.w != nil {
			sinks = append(sinks, sink{w: bufio.NewWriterSize(o.w, bufSize), minLevel: o.minLevel})
		}
	}
	aw := &asyncWriter{
		queue:    make(chan entry, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
		sinks:    sinks,
	}
	go aw.loop()
	return aw
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				w.setErr(w.flushAll())
				return
			}
			w.setErr(w.write(e))
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write copies line and queues it for every sink accepting level.
// A full queue blocks the caller rather than dropping the line; lines
// written after Close are discarded.
func (w *asyncWriter) Write(level slog.Level, line []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil
	}
	w.queue <- entry{level: level, line: append([]byte(nil), line...)}
	return nil
}

// Flush blocks until every queued line has reached the sinks.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.flushReq <- ack:
		return <-ack
	case <-w.done:
		return w.err()
	}
}

// Close drains the queue and reports the first write error.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.err()
}

func (w *asyncWriter) write(e entry) error {
	var errs []error
	for _, s := range w.sinks {
		if e.level < s.minLevel {
			continue
		}
		if _, err := s.w.Write(e.line); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) flushAll() error {
	var errs []error
	for _, s := range w.sinks {
		if err := s.w.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.writeErr
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	defer w.errMu.Unlock()
	if w.writeErr == nil {
		w.writeErr = err
	}
}
