package services

import "time"

const (
	KeyRateLimit = "ratelimit:%s:%s"

	DefaultEventsChannel = "game:events"

	DefaultRateLimitBets   = 30 // per client per minute
	DefaultRateLimitWindow = time.Minute

	eventQueueSize = 1024
)
