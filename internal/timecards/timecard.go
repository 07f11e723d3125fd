// Package timecards tracks delivery-day hours used by the allocation.
package timecards

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/troopfundraiser/frclient/pkg/errors"
)

const clockLayout = "15:04"

var (
	// ErrNoEntry means one side of the time card is blank.
	ErrNoEntry = pkgerrors.New(pkgerrors.CodeNotFound, "no time entry")
	// ErrInvalidTimeRange means time out is not after time in.
	ErrInvalidTimeRange = pkgerrors.New(pkgerrors.CodeValidation, "time out must be after time in")
)

// Entry is one user's hours for one delivery date.
type Entry struct {
	DeliveryID string `json:"deliveryId" validate:"required"`
	UID        string `json:"uid" validate:"required"`
	TimeIn     string `json:"timeIn,omitempty"`
	TimeOut    string `json:"timeOut,omitempty"`
	TimeTotal  string `json:"timeTotal,omitempty"`
}

// Elapsed parses two "HH:mm" clock times and returns the time between them.
func Elapsed(in, out string) (time.Duration, error) {
	in, out = strings.TrimSpace(in), strings.TrimSpace(out)
	if in == "" || out == "" {
		return 0, ErrNoEntry
	}
	start, err := time.Parse(clockLayout, in)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid time in %q", in))
	}
	end, err := time.Parse(clockLayout, out)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid time out %q", out))
	}
	if !end.After(start) {
		return 0, ErrInvalidTimeRange
	}
	return end.Sub(start), nil
}

// FormatElapsed renders d as "HH:mm".
func FormatElapsed(d time.Duration) string {
	minutes := int(d.Minutes())
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseElapsed reads a "HH:mm" total. Hours may exceed 23.
func ParseElapsed(total string) (time.Duration, error) {
	total = strings.TrimSpace(total)
	if total == "" {
		return 0, ErrNoEntry
	}
	var h, m int
	if _, err := fmt.Sscanf(total, "%d:%d", &h, &m); err != nil || h < 0 || m < 0 || m > 59 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid time total %q", total))
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Duration prefers the clock times and falls back to the stored total.
func (e Entry) Duration() (time.Duration, error) {
	d, err := Elapsed(e.TimeIn, e.TimeOut)
	if errors.Is(err, ErrNoEntry) {
		return ParseElapsed(e.TimeTotal)
	}
	return d, err
}

// WithTotal returns a copy whose TimeTotal matches its clock times.
func (e Entry) WithTotal() (Entry, error) {
	d, err := Elapsed(e.TimeIn, e.TimeOut)
	if err != nil {
		return e, err
	}
	e.TimeTotal = FormatElapsed(d)
	return e, nil
}

// MinutesByUser sums delivery minutes per user. Blank entries are skipped; malformed
// or inverted entries are skipped and reported in the returned error.
func MinutesByUser(entries []Entry) (map[string]int, error) {
	out := make(map[string]int)
	var errs error
	for _, e := range entries {
		d, err := e.Duration()
		if errors.Is(err, ErrNoEntry) {
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("time card %s/%s: %w", e.DeliveryID, e.UID, err))
			continue
		}
		out[e.UID] += int(d.Minutes())
	}
	return out, errs
}
