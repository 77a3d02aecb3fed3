// Package week maps a "weeks ago" index to the half-open time interval the
// transaction feed is queried for.
package week

import (
	"errors"
	"strconv"
	"time"
)

// Length is the span of one window.
const Length = 7 * 24 * time.Hour

// ErrNegativeIndex is returned for a weeksAgo below zero.
var ErrNegativeIndex = errors.New("week: index must be >= 0")

// Window is the interval [Min, Max). Window 0 ends at "now"; each higher
// index slides back by one whole week.
type Window struct {
	Min time.Time
	Max time.Time
}

// For returns the window weeksAgo weeks before now.
func For(now time.Time, weeksAgo int) (Window, error) {
	if weeksAgo < 0 {
		return Window{}, ErrNegativeIndex
	}
	maxT := now.Add(-time.Duration(weeksAgo) * Length)
	return Window{Min: maxT.Add(-Length), Max: maxT}, nil
}

// Contains reports whether t falls inside [Min, Max).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Min) && t.Before(w.Max)
}

// Label is a short human description of the index.
func Label(weeksAgo int) string {
	switch weeksAgo {
	case 0:
		return "This week"
	case 1:
		return "Last week"
	default:
		return strconv.Itoa(weeksAgo) + " weeks ago"
	}
}
