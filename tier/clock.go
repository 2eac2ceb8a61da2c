package tier

import "time"

// nowMs is the time source for access-tracking timestamps. Tests that
// need determinism can ignore timing and assert on AccessCount instead.
func nowMs() int64 {
	return time.Now().UnixMilli()
}
