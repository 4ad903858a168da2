// Package watch drives the live journal tail: a cursor session owning the
// journal handle, an epoll-backed readiness multiplexer, and the loop that
// waits, drains, and recovers from invalidation.
package watch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/modoterra/jwatch/pkg/format"
	"github.com/modoterra/jwatch/pkg/journal"
)

// Multiplexer blocks on descriptor readiness. The production
// implementation is Epoll; tests substitute a scripted fake.
type Multiplexer interface {
	Add(fd int, events uint32) error
	Remove(fd int) error
	// Wait returns the number of ready descriptors; 0 means the timeout
	// elapsed (or the wait was interrupted and should be retried).
	Wait(timeoutMillis int) (int, error)
	Close() error
}

// Session owns the single live journal handle. The watch loop only ever
// talks to the session; on invalidation the session replaces its handle
// and registration wholesale before the loop waits again.
type Session struct {
	open   journal.OpenFunc
	src    journal.Source
	fd     int
	logger *slog.Logger
}

// NewSession creates a session that obtains journal handles via open.
func NewSession(open journal.OpenFunc, logger *slog.Logger) *Session {
	return &Session{open: open, fd: -1, logger: logger}
}

// Open acquires the initial journal handle. Failure is fatal to the caller.
func (s *Session) Open() error {
	src, err := s.open()
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	s.src = src
	return nil
}

// Close releases the handle if one is live.
func (s *Session) Close() {
	if s.src != nil {
		s.src.Close()
		s.src = nil
	}
}

// PrimeBacklog seeks to the tail and steps backward up to n entries so
// recent history is replayed before live tailing starts. Returns the
// number of steps actually taken, which is smaller than n when the journal
// holds fewer entries.
func (s *Session) PrimeBacklog(n int) (int, error) {
	if err := s.src.SeekTail(); err != nil {
		return 0, fmt.Errorf("seek to tail: %w", err)
	}
	steps := 0
	for i := 0; i < n; i++ {
		ok, err := s.src.Previous()
		if err != nil {
			return steps, fmt.Errorf("step backward: %w", err)
		}
		if !ok {
			break
		}
		steps++
	}
	return steps, nil
}

// ReplayBacklog emits the entry under the cursor and every later entry up
// to the live edge, oldest first. Call only after PrimeBacklog stepped
// back at least once.
func (s *Session) ReplayBacklog(f *format.Formatter, emit func(string)) error {
	s.emitCurrent(f, emit)
	return s.DrainAppended(f, emit)
}

// DrainAppended steps the cursor forward while entries remain, formatting
// and emitting each one.
func (s *Session) DrainAppended(f *format.Formatter, emit func(string)) error {
	for {
		ok, err := s.src.Next()
		if err != nil {
			return fmt.Errorf("step forward: %w", err)
		}
		if !ok {
			return nil
		}
		s.emitCurrent(f, emit)
	}
}

func (s *Session) emitCurrent(f *format.Formatter, emit func(string)) {
	line, err := f.Format(s.src)
	if err != nil {
		s.logger.Warn("skipping entry", "err", err)
		return
	}
	emit(line)
}

// Register adds the handle's notification descriptor to the multiplexer
// with the event mask the journal requires.
func (s *Session) Register(mux Multiplexer) error {
	fd, err := s.src.Fd()
	if err != nil {
		return fmt.Errorf("journal descriptor: %w", err)
	}
	events, err := s.src.Events()
	if err != nil {
		return fmt.Errorf("journal event mask: %w", err)
	}
	if err := mux.Add(fd, events); err != nil {
		return fmt.Errorf("register journal descriptor: %w", err)
	}
	s.fd = fd
	return nil
}

// TimeoutHint reports how long the journal considers it safe to block.
func (s *Session) TimeoutHint() (time.Duration, bool) {
	return s.src.TimeoutHint()
}

// WaitAndClassify blocks on the journal's own readiness wait and passes
// its classification through. The underlying call may report an
// invalidation as WakeAppend; that ambiguity is long-standing journal
// behavior and is deliberately not papered over here.
func (s *Session) WaitAndClassify(timeout time.Duration) (journal.Wake, error) {
	return s.src.Wait(timeout)
}

// ProcessPending classifies state changes after the descriptor signalled
// readiness.
func (s *Session) ProcessPending() (journal.Wake, error) {
	return s.src.Process()
}

// Recover replaces an invalidated handle: deregister the stale
// descriptor, capture a resumption position one step back, close, reopen,
// reseek (falling back to the tail), and re-register. Reopen and
// re-registration failures are fatal; a failed reseek only costs the
// entries between the captured position and the tail.
func (s *Session) Recover(mux Multiplexer) error {
	s.logger.Info("journal handle invalidated, reopening")

	if err := mux.Remove(s.fd); err != nil {
		s.logger.Warn("failed to deregister stale descriptor", "err", err)
	}

	if _, err := s.src.Previous(); err != nil {
		s.logger.Warn("failed to step back before reopen", "err", err)
	}
	pos, err := s.src.Position()
	captured := err == nil
	if !captured {
		s.logger.Warn("failed to capture resume position", "err", err)
	}

	s.src.Close()
	s.src = nil

	src, err := s.open()
	if err != nil {
		return fmt.Errorf("reopen journal: %w", err)
	}
	s.src = src

	if captured {
		if err := src.SeekPosition(pos); err != nil {
			s.logger.Warn("failed to seek to resume position", "err", err)
			captured = false
		}
	}
	if !captured {
		if err := src.SeekTail(); err != nil {
			s.logger.Warn("failed to seek to tail after reopen", "err", err)
		}
	}

	return s.Register(mux)
}
