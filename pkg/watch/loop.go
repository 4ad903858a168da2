package watch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modoterra/jwatch/pkg/format"
	"github.com/modoterra/jwatch/pkg/journal"
)

const (
	// historyDepth is how many entries behind the live edge the cursor is
	// primed before tailing starts.
	historyDepth = 20

	// fallbackWaitMillis bounds the multiplexer wait when the journal
	// reports no timeout preference.
	fallbackWaitMillis = 1000
)

// Loop is the top-level driver: replay the backlog, register with the
// multiplexer, then wait, drain, and recover until the context is
// cancelled or a fatal error occurs.
type Loop struct {
	session *Session
	mux     Multiplexer
	fmtr    *format.Formatter
	out     io.Writer
	logger  *slog.Logger

	// Ready, when set, is invoked once the backlog is printed and the
	// descriptor is registered. Used for sd_notify.
	Ready func()
}

// NewLoop creates the watch loop. Formatted entries go to out, one line
// each; diagnostics go to logger.
func NewLoop(session *Session, mux Multiplexer, f *format.Formatter, out io.Writer, logger *slog.Logger) *Loop {
	return &Loop{session: session, mux: mux, fmtr: f, out: out, logger: logger}
}

// Run blocks until ctx is cancelled (returns nil) or a fatal error occurs:
// failed open, failed priming, failed registration, failed reopen during
// recovery, or a multiplexer error.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.session.Open(); err != nil {
		return err
	}
	defer l.session.Close()

	steps, err := l.session.PrimeBacklog(historyDepth)
	if err != nil {
		return err
	}
	if steps > 0 {
		if err := l.session.ReplayBacklog(l.fmtr, l.emit); err != nil {
			l.logger.Warn("backlog replay cut short", "err", err)
		}
	}

	if err := l.session.Register(l.mux); err != nil {
		return err
	}
	if l.Ready != nil {
		l.Ready()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := l.mux.Wait(l.waitMillis())
		if err != nil {
			return fmt.Errorf("multiplexer wait: %w", err)
		}
		if n == 0 {
			continue
		}

		wake, err := l.session.ProcessPending()
		if err != nil {
			return fmt.Errorf("process journal wakeup: %w", err)
		}
		switch wake {
		case journal.WakeNop:
		case journal.WakeAppend:
			if err := l.session.DrainAppended(l.fmtr, l.emit); err != nil {
				l.logger.Warn("drain cut short", "err", err)
			}
		default:
			if err := l.session.Recover(l.mux); err != nil {
				return err
			}
		}
	}
}

// waitMillis converts the journal's timeout hint to epoll's millisecond
// unit, rounding down, with a one second fallback when the journal has no
// preference.
func (l *Loop) waitMillis() int {
	hint, ok := l.session.TimeoutHint()
	if !ok {
		return fallbackWaitMillis
	}
	return int(hint / time.Millisecond)
}

func (l *Loop) emit(line string) {
	fmt.Fprintln(l.out, line)
}
