// Package format turns journal entries into colorized terminal lines.
package format

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/modoterra/jwatch/pkg/journal"
)

// timeLayout renders the entry timestamp as local wall-clock time.
const timeLayout = "15:04:05 Jan 02 "

// Formatter renders one journal entry per line: a dim header (timestamp,
// host, user, program, pid) followed by the message in a severity color.
type Formatter struct {
	fields *journal.Accessor

	// Resolve maps a numeric uid string to a display name. Defaults to
	// ResolveUser; tests pin it to a fixed mapping.
	Resolve func(string) string

	header lipgloss.Style
	// styles is indexed by syslog priority 0-7 and read-only after New.
	styles [8]lipgloss.Style
}

// New creates a formatter. The color profile is pinned so the emitted
// escape sequences do not depend on the environment the process runs in.
func New(logger *slog.Logger) *Formatter {
	r := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	base := r.NewStyle()
	dim := base.Faint(true).Foreground(lipgloss.Color("7"))

	return &Formatter{
		fields:  journal.NewAccessor(logger),
		Resolve: ResolveUser,
		header:  dim,
		styles: [8]lipgloss.Style{
			base.Foreground(lipgloss.Color("9")),   // emerg: bright red
			base.Foreground(lipgloss.Color("1")),   // alert: red
			base.Foreground(lipgloss.Color("208")), // crit: orange
			base.Foreground(lipgloss.Color("11")),  // err: bright yellow
			base.Foreground(lipgloss.Color("3")),   // warning: yellow
			base.Foreground(lipgloss.Color("2")),   // notice: green
			base,                                   // info: plain
			dim,                                    // debug: dim gray
		},
	}
}

// SeverityStyle returns the style for a syslog priority. Values outside
// 0-7 get the debug style.
func (f *Formatter) SeverityStyle(priority int) lipgloss.Style {
	if priority < 0 || priority > 7 {
		priority = 7
	}
	return f.styles[priority]
}

// Format renders the entry under the cursor. It fails only when the entry
// has no realtime timestamp; the caller skips such entries.
func (f *Formatter) Format(rec journal.Record) (string, error) {
	usec, err := rec.RealtimeUsec()
	if err != nil {
		return "", fmt.Errorf("realtime timestamp: %w", err)
	}

	var b strings.Builder
	b.WriteString(time.UnixMicro(int64(usec)).Format(timeLayout))
	b.WriteString(f.fields.Fetch(rec, journal.FieldHostname))

	uid := f.fields.Fetch(rec, journal.FieldUID)
	if uid == "" {
		uid = f.fields.Fetch(rec, journal.FieldAuditLoginUID)
	}
	if uid != "" {
		b.WriteString(":")
		b.WriteString(f.Resolve(uid))
	}

	ident := f.fields.Fetch(rec, journal.FieldSyslogIdentifier)
	if ident == "" {
		ident = f.fields.Fetch(rec, journal.FieldComm)
	}
	if ident != "" {
		b.WriteString(" ")
		b.WriteString(ident)
	}

	if pid := f.fields.Fetch(rec, journal.FieldPID); pid != "" {
		b.WriteString("[")
		b.WriteString(pid)
		b.WriteString("]")
	}
	b.WriteString(": ")

	msg := f.fields.Fetch(rec, journal.FieldMessage)
	return f.header.Render(b.String()) + f.SeverityStyle(f.priority(rec)).Render(msg), nil
}

func (f *Formatter) priority(rec journal.Record) int {
	p, err := strconv.Atoi(strings.TrimSpace(f.fields.Fetch(rec, journal.FieldPriority)))
	if err != nil || p < 0 || p > 7 {
		return 7
	}
	return p
}
