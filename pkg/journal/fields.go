package journal

import (
	"errors"
	"log/slog"
)

// fetchAttempts bounds retries on transient field contention.
const fetchAttempts = 10

// Accessor reads named fields from the entry under the cursor. It never
// fails its caller: problems degrade to an empty value plus a diagnostic.
type Accessor struct {
	logger *slog.Logger
}

// NewAccessor creates a field accessor reporting diagnostics to logger.
func NewAccessor(logger *slog.Logger) *Accessor {
	return &Accessor{logger: logger}
}

// Fetch returns the value of the named field for the current entry, or ""
// when the field is absent, the retry budget is exhausted, or the read
// fails outright.
func (a *Accessor) Fetch(rec Record, field string) string {
	for i := 0; i < fetchAttempts; i++ {
		value, err := rec.Field(field)
		if err == nil {
			return value
		}
		if errors.Is(err, ErrFieldBusy) {
			continue
		}
		if errors.Is(err, ErrFieldAbsent) {
			return ""
		}
		a.logger.Error("failed to fetch field", "field", field, "err", err)
		return ""
	}
	a.logger.Error("timeout fetching field", "field", field)
	return ""
}
