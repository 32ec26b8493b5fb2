package domain

import "github.com/jonboulle/clockwork"

// clock anchors time-of-day stamps to a calendar date and stamps results with
// their processing time. Tests freeze it via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
