package pipeline

import "time"

// timeNow is a package-level variable for testability.
// Tests replace it to pin measured sink durations.
var timeNow = time.Now

func since(start time.Time) time.Duration {
	return timeNow().Sub(start)
}
