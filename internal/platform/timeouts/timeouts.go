// Package timeouts defines shared timeout constants used across the process.
package timeouts

import "time"

// LockWait caps how long an operation waits for its asset and transaction
// locks before failing.
const LockWait = 10 * time.Second

// LockTTL bounds how long a distributed lock survives a crashed holder.
const LockTTL = 30 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long servers wait for in-flight requests during
// graceful shutdown.
const Shutdown = 5 * time.Second
