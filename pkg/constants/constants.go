// Package constants defines the default values for rawcore's Options table.
package constants

import "time"

// Connection and request timeouts
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultReadTimeout    = 30 * time.Second
	DefaultKeepaliveTimeout = 30 * time.Second
	HealthCheckInterval   = 30 * time.Second
	CleanupInterval       = 30 * time.Second
)

// Redirect and pool limits
const (
	DefaultMaxRedirects        = 10
	DefaultMaxConnectionsPerHost = 5
)

// Retry defaults
const (
	DefaultInitialDelay = 200 * time.Millisecond
	DefaultMaxDelay     = 10 * time.Second
	DefaultFactor       = 2.0
	DefaultMaxAttempts  = 3
	JitterMin           = 0.75
	JitterMax           = 1.25
)

// Rate-limit defaults
const (
	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Minute
)

// HTTP limits
const (
	MaxContentLength = 1024 * 1024 * 1024 * 1024 // 1TB
	MaxHeaderBytes   = 64 * 1024                  // 64KiB response header cap
)

// Buffer limits
const (
	DefaultBodyMemLimit = 4 * 1024 * 1024   // 4MB before spilling to disk
	DefaultMaxBodyBytes = 100 * 1024 * 1024 // 100MB decoded-body cap
)
