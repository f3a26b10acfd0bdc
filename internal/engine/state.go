package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeeftor/deskpilot/internal/constants"
	"github.com/jeeftor/deskpilot/internal/script"
)

// Status represents the lifecycle state of one script run
type Status string

const (
	StatusRunning   Status = "Running"
	StatusPaused    Status = "Paused"
	StatusStopped   Status = "Stopped"
	StatusCompleted Status = "Completed"
	StatusError     Status = "Error"
)

// Terminal reports whether the status is a terminal one
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusCompleted || s == StatusError
}

// LogLevel is the severity of one execution log entry
type LogLevel string

const (
	LogDebug   LogLevel = "Debug"
	LogInfo    LogLevel = "Info"
	LogWarning LogLevel = "Warning"
	LogError   LogLevel = "Error"
)

// ExecutionLog is one append-only log entry produced by a run. StepID is
// empty for script-level messages.
type ExecutionLog struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ScriptID  string    `json:"script_id"`
	StepID    string    `json:"step_id,omitempty"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// ExecutionState is a point-in-time snapshot of one script run. The
// engine hands out copies; mutating a snapshot has no effect on the run.
type ExecutionState struct {
	ScriptID      string         `json:"script_id"`
	ScriptName    string         `json:"script_name"`
	CurrentStepID string         `json:"current_step_id"`
	StartTime     time.Time      `json:"start_time"`
	Status        Status         `json:"status"`
	Logs          []ExecutionLog `json:"logs"`

	// Repeat bookkeeping
	CurrentRepeat    int       `json:"current_repeat"`
	TotalRepeats     int       `json:"total_repeats"`
	IsInfiniteRepeat bool      `json:"is_infinite_repeat"`
	LastRepeatTime   time.Time `json:"last_repeat_time"`

	// Reserved for future conditional use; the shipped condition and
	// action set neither reads nor writes it
	Variables map[string]string `json:"variables"`
}

// runState is the mutable state behind the snapshots. It is shared
// between the run task and the engine's command operations, so every
// access goes through the mutex.
type runState struct {
	mu sync.Mutex
	s  ExecutionState
}

func newRunState(sc *script.AutomationScript) *runState {
	total := sc.TotalRepeats()
	if sc.InfiniteRepeat {
		total = 0
	}
	firstStep := ""
	if len(sc.Steps) > 0 {
		firstStep = sc.Steps[0].ID
	}
	return &runState{
		s: ExecutionState{
			ScriptID:         sc.ID,
			ScriptName:       sc.Name,
			CurrentStepID:    firstStep,
			StartTime:        time.Now(),
			Status:           StatusRunning,
			IsInfiniteRepeat: sc.InfiniteRepeat,
			TotalRepeats:     total,
			Variables:        make(map[string]string),
		},
	}
}

// snapshot returns a deep copy safe to hand to observers
func (r *runState) snapshot() ExecutionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.s
	snap.Logs = make([]ExecutionLog, len(r.s.Logs))
	copy(snap.Logs, r.s.Logs)
	snap.Variables = make(map[string]string, len(r.s.Variables))
	for k, v := range r.s.Variables {
		snap.Variables[k] = v
	}
	return snap
}

func (r *runState) status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.Status
}

// setStatus transitions the status and reports whether it changed
func (r *runState) setStatus(status Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s.Status == status {
		return false
	}
	r.s.Status = status
	return true
}

// setStatusIf transitions only from an expected current status, so a
// stray Resume cannot revive a terminal run
func (r *runState) setStatusIf(from, to Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.s.Status != from {
		return false
	}
	r.s.Status = to
	return true
}

func (r *runState) setCurrentStep(stepID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.CurrentStepID = stepID
}

func (r *runState) startTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s.StartTime
}

// recordRepeat updates the repeat counters at the top of each iteration
func (r *runState) recordRepeat(current int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.CurrentRepeat = current
	r.s.LastRepeatTime = time.Now()
}

// appendLog appends an entry to the bounded log buffer, evicting the
// oldest entries once the cap is exceeded
func (r *runState) appendLog(entry ExecutionLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Logs = append(r.s.Logs, entry)
	if len(r.s.Logs) > constants.MaxLogEntries {
		r.s.Logs = r.s.Logs[len(r.s.Logs)-constants.MaxLogEntries:]
	}
}

// newLogEntry builds a log entry for this run
func (r *runState) newLogEntry(level LogLevel, stepID, message string) ExecutionLog {
	return ExecutionLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		ScriptID:  r.s.ScriptID,
		StepID:    stepID,
		Level:     level,
		Message:   message,
	}
}
