package scheduler

import "log/slog"

type config struct {
	workers   int
	queueSize int
	logger    *slog.Logger
	release   func([]byte)
}

// Option configures a Scheduler.
type Option func(*config)

// WithWorkers sets the number of concurrent upload workers. Default is 10.
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize bounds how many submitted parts may wait for a worker.
// Default equals the number of workers.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithLogger sets the logger used for per-part events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithRelease registers a function that receives each payload's memory once
// its upload succeeded, typically pool.BufferPool.Put. Memory of failed
// uploads is left to the garbage collector.
func WithRelease(release func([]byte)) Option {
	return func(c *config) {
		c.release = release
	}
}
