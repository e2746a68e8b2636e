package cache

import "time"

var timeNow = time.Now

// nowMillis is the cache clock in epoch milliseconds.
func nowMillis() int64 {
	return timeNow().UnixMilli()
}

func SetTimeNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}
