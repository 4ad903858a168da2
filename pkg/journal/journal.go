// Package journal is the boundary to the system journal. It exposes the
// cursor-based read/notify operations the watch loop consumes, with a
// libsystemd-backed implementation for production and room for in-memory
// fakes in tests.
package journal

import (
	"errors"
	"time"
)

// Journald field names consumed by the formatter.
const (
	FieldPriority         = "PRIORITY"
	FieldHostname         = "_HOSTNAME"
	FieldUID              = "_UID"
	FieldAuditLoginUID    = "_AUDIT_LOGINUID"
	FieldSyslogIdentifier = "SYSLOG_IDENTIFIER"
	FieldComm             = "_COMM"
	FieldPID              = "_PID"
	FieldMessage          = "MESSAGE"
)

var (
	// ErrFieldAbsent reports that the current entry has no such field.
	ErrFieldAbsent = errors.New("journal: field not present")
	// ErrFieldBusy reports transient contention; the read may be retried.
	ErrFieldBusy = errors.New("journal: field temporarily unavailable")
)

// Wake classifies the outcome of a wait or process call.
type Wake int

const (
	// WakeNop is an ignorable wakeup; nothing changed.
	WakeNop Wake = iota
	// WakeAppend means new entries are readable past the cursor.
	WakeAppend
	// WakeInvalidate means journal files were added or removed and the
	// handle can no longer be trusted.
	WakeInvalidate
)

func (w Wake) String() string {
	switch w {
	case WakeNop:
		return "nop"
	case WakeAppend:
		return "append"
	case WakeInvalidate:
		return "invalidate"
	}
	return "unknown"
}

// Position is a reseekable token: a boot id plus a monotonic offset within
// that boot. Captured before a reopen, used to resume afterwards.
type Position struct {
	BootID string
	Usec   uint64
}

// Record is the read-only view of the entry under the cursor.
type Record interface {
	// RealtimeUsec returns the entry's wall-clock timestamp in
	// microseconds since the epoch.
	RealtimeUsec() (uint64, error)

	// Field returns the value of the named field for the current entry.
	// Returns ErrFieldAbsent when the entry has no such field and
	// ErrFieldBusy on transient contention.
	Field(name string) (string, error)
}

// Source is a stateful handle to the live journal. Exactly one Source is
// open at a time; the watch session owns it exclusively.
type Source interface {
	Record

	Close() error

	// SeekTail positions the cursor after the last entry.
	SeekTail() error

	// Previous steps the cursor back one entry. Returns false when there
	// is no earlier entry.
	Previous() (bool, error)

	// Next steps the cursor forward one entry. Returns false at the live
	// edge.
	Next() (bool, error)

	// Fd returns the notification descriptor to register with a
	// readiness multiplexer.
	Fd() (int, error)

	// Events returns the epoll interest mask the descriptor requires.
	Events() (uint32, error)

	// TimeoutHint returns how long it is safe to block waiting on the
	// descriptor. ok is false when the source has no preference.
	TimeoutHint() (hint time.Duration, ok bool)

	// Wait blocks on the source's own readiness machinery for up to
	// timeout and classifies the result. The underlying call may fold an
	// invalidation into WakeAppend; callers treat the two identically
	// when draining.
	Wait(timeout time.Duration) (Wake, error)

	// Process classifies pending state changes after the descriptor
	// signalled readiness, without blocking.
	Process() (Wake, error)

	// Position captures the current entry's resumption token.
	Position() (Position, error)

	// SeekPosition moves the cursor to a previously captured token.
	SeekPosition(pos Position) error
}

// OpenFunc opens a fresh Source scoped to all locally available entries.
// The watch session calls it at startup and again after an invalidation.
type OpenFunc func() (Source, error)
