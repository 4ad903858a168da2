//go:build linux

package watch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Epoll is the production Multiplexer, wrapping a single epoll instance
// that only ever carries the journal's notification descriptor.
type Epoll struct {
	fd int
}

// NewEpoll creates an epoll instance.
func NewEpoll() (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &Epoll{fd: fd}, nil
}

func (e *Epoll) Add(fd int, events uint32) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll_ctl add: %w", err)
	}
	return nil
}

func (e *Epoll) Remove(fd int) error {
	if err := unix.EpollCtl(e.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll_ctl del: %w", err)
	}
	return nil
}

// Wait blocks until the descriptor is ready or timeoutMillis elapses.
// A signal-interrupted wait reports zero readiness so the caller re-checks
// its context and retries.
func (e *Epoll) Wait(timeoutMillis int) (int, error) {
	var events [1]unix.EpollEvent
	n, err := unix.EpollWait(e.fd, events[:], timeoutMillis)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("epoll_wait: %w", err)
	}
	return n, nil
}

func (e *Epoll) Close() error {
	return unix.Close(e.fd)
}
