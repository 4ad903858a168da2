//go:build linux

package journal

/*
#cgo pkg-config: libsystemd
#include <stdlib.h>
#include <systemd/sd-id128.h>
#include <systemd/sd-journal.h>
*/
import "C"

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// sdSource implements Source on top of libsystemd's sd-journal API.
type sdSource struct {
	j *C.sd_journal
}

// Open opens the local journal with all available entries in scope.
func Open() (Source, error) {
	var j *C.sd_journal
	if r := C.sd_journal_open(&j, C.SD_JOURNAL_LOCAL_ONLY); r < 0 {
		return nil, sdErr("sd_journal_open", r)
	}
	return &sdSource{j: j}, nil
}

func sdErr(call string, r C.int) error {
	return fmt.Errorf("%s: %w", call, unix.Errno(-r))
}

func (s *sdSource) Close() error {
	if s.j == nil {
		return nil
	}
	C.sd_journal_close(s.j)
	s.j = nil
	return nil
}

func (s *sdSource) SeekTail() error {
	if r := C.sd_journal_seek_tail(s.j); r < 0 {
		return sdErr("sd_journal_seek_tail", r)
	}
	return nil
}

func (s *sdSource) Previous() (bool, error) {
	r := C.sd_journal_previous(s.j)
	if r < 0 {
		return false, sdErr("sd_journal_previous", r)
	}
	return r > 0, nil
}

func (s *sdSource) Next() (bool, error) {
	r := C.sd_journal_next(s.j)
	if r < 0 {
		return false, sdErr("sd_journal_next", r)
	}
	return r > 0, nil
}

func (s *sdSource) RealtimeUsec() (uint64, error) {
	var usec C.uint64_t
	if r := C.sd_journal_get_realtime_usec(s.j, &usec); r < 0 {
		return 0, sdErr("sd_journal_get_realtime_usec", r)
	}
	return uint64(usec), nil
}

func (s *sdSource) Field(name string) (string, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var data unsafe.Pointer
	var length C.size_t
	r := C.sd_journal_get_data(s.j, cname, &data, &length)
	switch {
	case int(r) == -int(unix.ENOENT):
		return "", ErrFieldAbsent
	case int(r) == -int(unix.EAGAIN):
		return "", ErrFieldBusy
	case r < 0:
		return "", sdErr("sd_journal_get_data", r)
	}

	// The payload comes back as FIELD=value.
	raw := C.GoStringN((*C.char)(data), C.int(length))
	if i := strings.IndexByte(raw, '='); i >= 0 {
		return raw[i+1:], nil
	}
	return raw, nil
}

func (s *sdSource) Fd() (int, error) {
	r := C.sd_journal_get_fd(s.j)
	if r < 0 {
		return -1, sdErr("sd_journal_get_fd", r)
	}
	return int(r), nil
}

func (s *sdSource) Events() (uint32, error) {
	r := C.sd_journal_get_events(s.j)
	if r < 0 {
		return 0, sdErr("sd_journal_get_events", r)
	}
	return uint32(r), nil
}

func (s *sdSource) TimeoutHint() (time.Duration, bool) {
	var deadline C.uint64_t
	if r := C.sd_journal_get_timeout(s.j, &deadline); r < 0 {
		return 0, false
	}
	// (uint64_t)-1 means the journal never needs a time-based wakeup.
	if deadline == ^C.uint64_t(0) {
		return 0, false
	}
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, false
	}
	now := uint64(ts.Sec)*1_000_000 + uint64(ts.Nsec)/1_000
	if uint64(deadline) <= now {
		return 0, true
	}
	return time.Duration(uint64(deadline)-now) * time.Microsecond, true
}

func (s *sdSource) Wait(timeout time.Duration) (Wake, error) {
	r := C.sd_journal_wait(s.j, C.uint64_t(timeout/time.Microsecond))
	if r < 0 {
		return WakeNop, sdErr("sd_journal_wait", r)
	}
	return wakeFromC(r), nil
}

func (s *sdSource) Process() (Wake, error) {
	r := C.sd_journal_process(s.j)
	if r < 0 {
		return WakeNop, sdErr("sd_journal_process", r)
	}
	return wakeFromC(r), nil
}

func wakeFromC(r C.int) Wake {
	switch r {
	case C.SD_JOURNAL_APPEND:
		return WakeAppend
	case C.SD_JOURNAL_INVALIDATE:
		return WakeInvalidate
	default:
		return WakeNop
	}
}

func (s *sdSource) Position() (Position, error) {
	var usec C.uint64_t
	var boot C.sd_id128_t
	if r := C.sd_journal_get_monotonic_usec(s.j, &usec, &boot); r < 0 {
		return Position{}, sdErr("sd_journal_get_monotonic_usec", r)
	}
	// SD_ID128_STRING_MAX: 32 hex chars plus NUL.
	var buf [33]C.char
	C.sd_id128_to_string(boot, &buf[0])
	return Position{BootID: C.GoString(&buf[0]), Usec: uint64(usec)}, nil
}

func (s *sdSource) SeekPosition(pos Position) error {
	cid := C.CString(pos.BootID)
	defer C.free(unsafe.Pointer(cid))

	var boot C.sd_id128_t
	if r := C.sd_id128_from_string(cid, &boot); r < 0 {
		return sdErr("sd_id128_from_string", r)
	}
	if r := C.sd_journal_seek_monotonic_usec(s.j, boot, C.uint64_t(pos.Usec)); r < 0 {
		return sdErr("sd_journal_seek_monotonic_usec", r)
	}
	return nil
}
