package marketdata

import (
	"io"
	"log"
	"time"
)

// testOptions returns adapter options with fast retries and a fixed clock.
func testOptions(baseURL string, now time.Time) Options {
	return Options{
		BaseURL:          baseURL,
		Timeout:          2 * time.Second,
		RatePerSecond:    1000,
		RateLimitRetries: 3,
		RateLimitDelay:   5 * time.Millisecond,
		MaxPages:         1,
		Logger:           log.New(io.Discard, "", 0),
		Now:              func() time.Time { return now },
	}
}

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
