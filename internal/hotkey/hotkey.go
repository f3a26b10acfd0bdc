package hotkey

import (
	"fmt"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"

	"github.com/jeeftor/deskpilot/internal/logging"
)

// Engine is the control surface hotkeys drive
type Engine interface {
	Start(scriptID string) error
	Stop(scriptID string)
	Pause(scriptID string)
	Resume(scriptID string)
}

// Binding maps a global key combo to an engine action on one script.
// Action is one of start, stop, pause, resume, toggle.
type Binding struct {
	Keys     string `mapstructure:"keys" json:"keys"`
	Action   string `mapstructure:"action" json:"action"`
	ScriptID string `mapstructure:"scriptId" json:"scriptId"`
}

// Listener registers global hotkeys through the OS keyboard hook and
// translates them into engine calls. One listener per process; the
// underlying hook is global state.
type Listener struct {
	engine   Engine
	bindings []Binding

	mu      sync.Mutex
	running bool
	paused  map[string]bool
	events  chan hook.Event
}

// New creates a hotkey listener for the given engine
func New(engine Engine) *Listener {
	return &Listener{
		engine: engine,
		paused: make(map[string]bool),
	}
}

// Bind registers a key combo. Takes effect on the next Start.
func (l *Listener) Bind(b Binding) error {
	if b.ScriptID == "" {
		return fmt.Errorf("hotkey binding has no script id")
	}
	switch b.Action {
	case "start", "stop", "pause", "resume", "toggle":
	default:
		return fmt.Errorf("unknown hotkey action %q", b.Action)
	}
	if len(comboKeys(b.Keys)) == 0 {
		return fmt.Errorf("empty key combo in binding for script %s", b.ScriptID)
	}
	l.bindings = append(l.bindings, b)
	return nil
}

// comboKeys splits "ctrl+alt+r" into the key list gohook expects
func comboKeys(combo string) []string {
	var keys []string
	for _, part := range strings.Split(combo, "+") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		keys = append(keys, part)
	}
	return keys
}

// Start installs the hooks and blocks processing events until Stop is
// called from another goroutine
func (l *Listener) Start() error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("hotkey listener already running")
	}
	l.running = true
	l.mu.Unlock()

	for _, b := range l.bindings {
		binding := b
		hook.Register(hook.KeyDown, comboKeys(binding.Keys), func(e hook.Event) {
			l.fire(binding)
		})
		logging.Info("Hotkey registered",
			"keys", binding.Keys,
			"action", binding.Action,
			"script_id", binding.ScriptID)
	}

	events := hook.Start()
	l.mu.Lock()
	l.events = events
	l.mu.Unlock()

	<-hook.Process(events)
	return nil
}

// Stop tears the keyboard hook down and unblocks Start
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	hook.End()
}

func (l *Listener) fire(b Binding) {
	logging.Debug("Hotkey fired", "keys", b.Keys, "action", b.Action, "script_id", b.ScriptID)
	switch b.Action {
	case "start":
		if err := l.engine.Start(b.ScriptID); err != nil {
			logging.Error("Hotkey start failed", "script_id", b.ScriptID, "error", err)
		}
	case "stop":
		l.engine.Stop(b.ScriptID)
	case "pause":
		l.engine.Pause(b.ScriptID)
	case "resume":
		l.engine.Resume(b.ScriptID)
	case "toggle":
		l.mu.Lock()
		paused := l.paused[b.ScriptID]
		l.paused[b.ScriptID] = !paused
		l.mu.Unlock()
		if paused {
			l.engine.Resume(b.ScriptID)
		} else {
			l.engine.Pause(b.ScriptID)
		}
	}
}
