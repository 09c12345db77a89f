package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// slowThreshold marks operations worth a warning; memo and screen runs
// fan out to rate-limited upstreams and can legitimately take a while.
const slowThreshold = 30 * time.Second

// OperationTimer provides a defer-friendly way to measure operation duration
//
// Usage:
//
//	func MyFunction() {
//	    defer utils.OperationTimer("my_function", log)()
//	}
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")

		if duration > slowThreshold {
			log.Warn().
				Str("operation", operation).
				Dur("duration", duration).
				Msg("Slow operation detected")
		}
	}
}
