package constants

import "time"

// Limits and default parameter values used by the execution engine
const (
	// Execution safety limits
	MaxStepTransitions = 1000 // per iteration, guards against jump cycles
	MaxLogEntries      = 1000 // per run, oldest evicted first

	// Pause handling
	PausePollInterval = 100 * time.Millisecond

	// Default step/action parameter values
	DefaultWaitMs    = 1000
	DefaultTimeoutMs = 5000

	// Image matching
	DefaultMatchThreshold = 0.8
)
