package util

import (
	"errors"
	"fmt"
	"math"
	"time"

	"msgbar/internal/model"
)

// ErrNoTimestamp is returned when a raw timestamp has no populated field.
var ErrNoTimestamp = errors.New("timestamp missing")

// ToLocal resolves a raw timestamp into loc, truncated to the second.
func ToLocal(raw model.RawTimestamp, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	switch {
	case !raw.Time.IsZero():
		return raw.Time.In(loc).Truncate(time.Second), nil
	case raw.Text != "":
		src := raw.Location
		if src == nil {
			src = loc
		}
		layouts := []string{raw.Layout}
		if raw.Layout == "" {
			layouts = []string{time.RFC3339Nano, model.LocalLayout, "2006-01-02 15:04:05"}
		}
		for _, l := range layouts {
			if t, err := time.ParseInLocation(l, raw.Text, src); err == nil {
				return t.In(loc).Truncate(time.Second), nil
			}
		}
		return time.Time{}, fmt.Errorf("parse timestamp %q", raw.Text)
	case raw.Unix != 0:
		sec, frac := math.Modf(raw.Unix)
		return time.Unix(int64(sec), int64(frac*1e9)).In(loc).Truncate(time.Second), nil
	}
	return time.Time{}, ErrNoTimestamp
}
