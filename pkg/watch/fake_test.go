package watch

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/modoterra/jwatch/pkg/format"
	"github.com/modoterra/jwatch/pkg/journal"
)

// fakeEntry is one in-memory journal entry.
type fakeEntry struct {
	usec   uint64
	fields map[string]string
}

func msgEntry(usec uint64, msg string) fakeEntry {
	return fakeEntry{usec: usec, fields: map[string]string{journal.FieldMessage: msg}}
}

// fakeSource emulates the journal cursor: pos indexes entries, with
// len(entries) meaning "after the last entry" (where SeekTail lands).
type fakeSource struct {
	entries []fakeEntry
	pos     int

	closed     bool
	fd         int
	events     uint32
	hint       time.Duration
	hasHint    bool
	wakes      []journal.Wake // consumed by Process
	waitWakes  []journal.Wake // consumed by Wait
	waitedFor  []time.Duration
	position   journal.Position
	posErr     error
	seekPosErr error
	seekPosTo  []journal.Position
	tailSeeks  int
}

func newFakeSource(n int) *fakeSource {
	s := &fakeSource{fd: 7, events: 1}
	for i := 0; i < n; i++ {
		s.entries = append(s.entries, msgEntry(uint64(i+1)*1_000_000, msg(i)))
	}
	s.pos = len(s.entries)
	return s
}

func msg(i int) string {
	return "entry-" + string(rune('a'+i))
}

func (s *fakeSource) append(msgs ...string) {
	for _, m := range msgs {
		s.entries = append(s.entries, msgEntry(uint64(len(s.entries)+1)*1_000_000, m))
	}
}

func (s *fakeSource) current() (fakeEntry, bool) {
	if s.pos < 0 || s.pos >= len(s.entries) {
		return fakeEntry{}, false
	}
	return s.entries[s.pos], true
}

func (s *fakeSource) RealtimeUsec() (uint64, error) {
	e, ok := s.current()
	if !ok {
		return 0, errors.New("no current entry")
	}
	return e.usec, nil
}

func (s *fakeSource) Field(name string) (string, error) {
	e, ok := s.current()
	if !ok {
		return "", errors.New("no current entry")
	}
	v, present := e.fields[name]
	if !present {
		return "", journal.ErrFieldAbsent
	}
	return v, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSource) SeekTail() error {
	s.tailSeeks++
	s.pos = len(s.entries)
	return nil
}

func (s *fakeSource) Previous() (bool, error) {
	if s.pos <= 0 {
		return false, nil
	}
	s.pos--
	return true, nil
}

func (s *fakeSource) Next() (bool, error) {
	if s.pos >= len(s.entries)-1 {
		return false, nil
	}
	s.pos++
	return true, nil
}

func (s *fakeSource) Fd() (int, error) { return s.fd, nil }

func (s *fakeSource) Events() (uint32, error) { return s.events, nil }

func (s *fakeSource) TimeoutHint() (time.Duration, bool) {
	return s.hint, s.hasHint
}

func (s *fakeSource) Wait(timeout time.Duration) (journal.Wake, error) {
	s.waitedFor = append(s.waitedFor, timeout)
	if len(s.waitWakes) == 0 {
		return journal.WakeNop, nil
	}
	w := s.waitWakes[0]
	s.waitWakes = s.waitWakes[1:]
	return w, nil
}

func (s *fakeSource) Process() (journal.Wake, error) {
	if len(s.wakes) == 0 {
		return journal.WakeNop, nil
	}
	w := s.wakes[0]
	s.wakes = s.wakes[1:]
	return w, nil
}

func (s *fakeSource) Position() (journal.Position, error) {
	if s.posErr != nil {
		return journal.Position{}, s.posErr
	}
	return s.position, nil
}

func (s *fakeSource) SeekPosition(pos journal.Position) error {
	s.seekPosTo = append(s.seekPosTo, pos)
	if s.seekPosErr != nil {
		return s.seekPosErr
	}
	return nil
}

// fakeMux records registrations and scripts wait results.
type fakeMux struct {
	added   []int
	masks   []uint32
	removed []int
	waits   []int
	// script entries run in order; each may mutate state before the loop
	// sees the result. When exhausted, onIdle runs and the wait times out.
	script []func() (int, error)
	onIdle func()
}

func (m *fakeMux) Add(fd int, events uint32) error {
	m.added = append(m.added, fd)
	m.masks = append(m.masks, events)
	return nil
}

func (m *fakeMux) Remove(fd int) error {
	m.removed = append(m.removed, fd)
	return nil
}

func (m *fakeMux) Wait(timeoutMillis int) (int, error) {
	m.waits = append(m.waits, timeoutMillis)
	if len(m.script) == 0 {
		if m.onIdle != nil {
			m.onIdle()
		}
		return 0, nil
	}
	step := m.script[0]
	m.script = m.script[1:]
	return step()
}

func (m *fakeMux) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFormatter() *format.Formatter {
	f := format.New(testLogger())
	f.Resolve = func(id string) string { return id }
	return f
}

// openSeq returns an OpenFunc yielding the given sources in order and a
// counter of how many opens happened.
func openSeq(srcs ...*fakeSource) (journal.OpenFunc, *int) {
	opens := new(int)
	return func() (journal.Source, error) {
		if *opens >= len(srcs) {
			return nil, errors.New("no more sources scripted")
		}
		src := srcs[*opens]
		*opens++
		return src, nil
	}, opens
}
