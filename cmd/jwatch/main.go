package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	sddaemon "github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sys/unix"

	"github.com/modoterra/jwatch/pkg/format"
	"github.com/modoterra/jwatch/pkg/journal"
	"github.com/modoterra/jwatch/pkg/watch"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if os.Getuid() != 0 {
		logger.Warn("not running as root, only the user journal will be visible")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	mux, err := watch.NewEpoll()
	if err != nil {
		fatal(logger, err)
	}
	defer mux.Close()

	session := watch.NewSession(journal.Open, logger)
	loop := watch.NewLoop(session, mux, format.New(logger), os.Stdout, logger)
	loop.Ready = func() {
		_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyReady)
	}

	err = loop.Run(ctx)
	_, _ = sddaemon.SdNotify(false, sddaemon.SdNotifyStopping)
	if err != nil {
		fatal(logger, err)
	}
}

func fatal(logger *slog.Logger, err error) {
	logger.Error("fatal", "err", err)
	os.Exit(exitCode(err))
}

// exitCode maps a wrapped system errno to the process exit code, matching
// the convention journal tools use; anything else exits 1.
func exitCode(err error) int {
	var errno unix.Errno
	if errors.As(err, &errno) && errno != 0 {
		return int(errno)
	}
	return 1
}
