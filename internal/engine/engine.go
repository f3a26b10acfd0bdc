package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jeeftor/deskpilot/internal/logging"
	"github.com/jeeftor/deskpilot/internal/recognition"
	"github.com/jeeftor/deskpilot/internal/script"
)

// ErrScriptNotFound is returned by Start when the script id is unknown
var ErrScriptNotFound = errors.New("script not found")

// Storage loads scripts and template images. Implementations must be
// safe for concurrent use by multiple running scripts.
type Storage interface {
	GetScript(id string) (*script.AutomationScript, error)
	GetTemplateImage(id string) (*script.TemplateImage, error)
}

// Automation performs the actual input injection. Implementations must
// be safe for concurrent use; target-window state is expected to be
// guarded internally.
type Automation interface {
	Click(x, y int) error
	DoubleClick(x, y int) error
	RightClick(x, y int) error
	TypeText(text string) error
	SendKeys(combo string) error
	SetTargetWindow(window string) error
	ClearTargetWindow()
}

// Recognizer performs template matching against a captured screen buffer
type Recognizer interface {
	FindImage(screen, template []byte, threshold float64) (*recognition.MatchResult, error)
}

// Screenshotter captures and saves screen pixel data
type Screenshotter interface {
	CaptureFullScreen() ([]byte, error)
	SaveScreenshot(data []byte, filename string) (string, error)
}

// LogListener receives every execution log entry. Delivery is
// best-effort and synchronous; a panicking listener is recovered and
// never propagates back into the run task.
type LogListener func(ExecutionLog)

// StateListener receives a snapshot on every status or step transition
type StateListener func(ExecutionState)

// run couples one script's state with its cancellation signal and task
// handle. done is closed when the run task has fully unwound.
type run struct {
	script *script.AutomationScript
	state  *runState
	index  map[string]int // step id -> position, built once per run
	cancel context.CancelFunc
	done   chan struct{}
	logger *logging.ContextualLogger
}

// Engine interprets automation scripts: it owns per-script run state,
// evaluates conditions, dispatches actions and manages repeat loops.
// Many scripts may run concurrently, each on its own task.
type Engine struct {
	storage Storage
	auto    Automation
	matcher Recognizer
	screen  Screenshotter

	mu   sync.Mutex
	runs map[string]*run

	// Process-wide window-targeting override, applied before and
	// restored after each run. The runtime override always wins over a
	// script's own target.
	overrideMu     sync.Mutex
	windowOverride string
	hasOverride    bool

	listenerMu     sync.RWMutex
	logListeners   []LogListener
	stateListeners []StateListener
}

// New creates an engine wired to its four collaborators
func New(storage Storage, auto Automation, matcher Recognizer, screen Screenshotter) *Engine {
	return &Engine{
		storage: storage,
		auto:    auto,
		matcher: matcher,
		screen:  screen,
		runs:    make(map[string]*run),
	}
}

// OnLog subscribes a listener to the execution log stream
func (e *Engine) OnLog(l LogListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.logListeners = append(e.logListeners, l)
}

// OnStateChange subscribes a listener to status and step transitions
func (e *Engine) OnStateChange(l StateListener) {
	e.listenerMu.Lock()
	defer e.listenerMu.Unlock()
	e.stateListeners = append(e.stateListeners, l)
}

// Start loads the script and launches its run task. If a run for the
// same id is already tracked it is stopped first and its task awaited,
// so restarts are serialized, never concurrent. The initial
// state-changed notification and start log are emitted before Start
// returns.
func (e *Engine) Start(scriptID string) error {
	sc, err := e.storage.GetScript(scriptID)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrScriptNotFound, scriptID, err)
	}
	if sc == nil {
		return fmt.Errorf("%w: %s", ErrScriptNotFound, scriptID)
	}

	for _, warning := range sc.Validate() {
		logging.Warn("Script validation", "script_id", scriptID, "warning", warning)
	}

	// Implicit stop-and-wait on a prior run for the same id. The
	// re-check loop keeps the wait and the install in one locked
	// sequence: when two Starts race, the loser observes the winner's
	// freshly installed run and stops that one too, so exactly one
	// tracked run per id survives and no cancel handle is ever lost.
	e.mu.Lock()
	for {
		prev := e.runs[scriptID]
		if prev == nil {
			break
		}
		e.mu.Unlock()
		e.stopRun(prev)
		<-prev.done
		e.mu.Lock()
		if e.runs[scriptID] == prev {
			break
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		script: sc,
		state:  newRunState(sc),
		index:  buildStepIndex(sc),
		cancel: cancel,
		done:   make(chan struct{}),
		logger: logging.NewContextualLogger(scriptID, "engine"),
	}
	e.runs[scriptID] = r
	e.mu.Unlock()

	e.emitState(r.state.snapshot())
	e.log(r, LogInfo, "", fmt.Sprintf("Script '%s' started", sc.Name))

	go e.runScript(ctx, r)
	return nil
}

// Stop flips the run's status to Stopped for instant observer feedback,
// then signals cancellation. The task unwinds in the background; callers
// must not assume it has finished when Stop returns. Unknown ids are a
// quiet no-op.
func (e *Engine) Stop(scriptID string) {
	e.mu.Lock()
	r := e.runs[scriptID]
	e.mu.Unlock()
	if r == nil {
		logging.Warn("Stop requested for untracked script", "script_id", scriptID)
		return
	}
	e.stopRun(r)
}

func (e *Engine) stopRun(r *run) {
	if r.state.setStatus(StatusStopped) {
		e.emitState(r.state.snapshot())
		e.log(r, LogInfo, "", fmt.Sprintf("Script '%s' stopped", r.script.Name))
	}
	r.cancel()
}

// Pause sets the run's status to Paused. The run task observes the
// status at its next suspension point and holds at the pending step.
// Unknown ids are a quiet no-op.
func (e *Engine) Pause(scriptID string) {
	e.mu.Lock()
	r := e.runs[scriptID]
	e.mu.Unlock()
	if r == nil {
		return
	}
	if r.state.setStatusIf(StatusRunning, StatusPaused) {
		e.emitState(r.state.snapshot())
		e.log(r, LogInfo, "", fmt.Sprintf("Script '%s' paused", r.script.Name))
	}
}

// Resume sets a paused run back to Running. Unknown ids are a quiet
// no-op.
func (e *Engine) Resume(scriptID string) {
	e.mu.Lock()
	r := e.runs[scriptID]
	e.mu.Unlock()
	if r == nil {
		return
	}
	if r.state.setStatusIf(StatusPaused, StatusRunning) {
		e.emitState(r.state.snapshot())
		e.log(r, LogInfo, "", fmt.Sprintf("Script '%s' resumed", r.script.Name))
	}
}

// ExecutionState returns a point-in-time snapshot of one tracked run
func (e *Engine) ExecutionState(scriptID string) (ExecutionState, bool) {
	e.mu.Lock()
	r := e.runs[scriptID]
	e.mu.Unlock()
	if r == nil {
		return ExecutionState{}, false
	}
	return r.state.snapshot(), true
}

// AllExecutionStates returns snapshots of every tracked run, including
// terminal ones not yet superseded by a new Start
func (e *Engine) AllExecutionStates() []ExecutionState {
	e.mu.Lock()
	runs := make([]*run, 0, len(e.runs))
	for _, r := range e.runs {
		runs = append(runs, r)
	}
	e.mu.Unlock()

	states := make([]ExecutionState, 0, len(runs))
	for _, r := range runs {
		states = append(states, r.state.snapshot())
	}
	return states
}

// OverrideTargetWindow sets a process-wide window-targeting override
// that wins over any script's own target. An empty window clears the
// override.
func (e *Engine) OverrideTargetWindow(window string) {
	e.overrideMu.Lock()
	defer e.overrideMu.Unlock()
	e.windowOverride = window
	e.hasOverride = window != ""
	if e.hasOverride {
		logging.Info("Target window override set", "window", window)
	} else {
		logging.Info("Target window override cleared")
	}
}

// targetOverride returns the current override under the mutex
func (e *Engine) targetOverride() (string, bool) {
	e.overrideMu.Lock()
	defer e.overrideMu.Unlock()
	return e.windowOverride, e.hasOverride
}

// log appends an entry to the run's bounded buffer, mirrors it to the
// structured logger at debug level, and fans it out to subscribers.
func (e *Engine) log(r *run, level LogLevel, stepID, message string) {
	entry := r.state.newLogEntry(level, stepID, message)
	r.state.appendLog(entry)
	r.logger.Debug(message, "level", string(level), "step_id", stepID)
	e.emitLog(entry)
}

// emitLog delivers a log entry to every listener. Panics in listeners
// are swallowed so a misbehaving observer cannot kill a run task.
func (e *Engine) emitLog(entry ExecutionLog) {
	e.listenerMu.RLock()
	listeners := make([]LogListener, len(e.logListeners))
	copy(listeners, e.logListeners)
	e.listenerMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Warn("Log listener panicked", "panic", rec)
				}
			}()
			l(entry)
		}()
	}
}

// emitState delivers a state snapshot to every listener
func (e *Engine) emitState(state ExecutionState) {
	e.listenerMu.RLock()
	listeners := make([]StateListener, len(e.stateListeners))
	copy(listeners, e.stateListeners)
	e.listenerMu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					logging.Warn("State listener panicked", "panic", rec)
				}
			}()
			l(state)
		}()
	}
}

// buildStepIndex maps step ids to list positions so jump and else
// resolution is O(1) instead of a scan per transition
func buildStepIndex(sc *script.AutomationScript) map[string]int {
	index := make(map[string]int, len(sc.Steps))
	for i, step := range sc.Steps {
		if _, exists := index[step.ID]; !exists {
			index[step.ID] = i
		}
	}
	return index
}
