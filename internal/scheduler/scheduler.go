package scheduler

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/jeeftor/deskpilot/internal/logging"
)

// Starter is the piece of the execution engine the scheduler needs
type Starter interface {
	Start(scriptID string) error
}

// Entry binds a cron expression to a script
type Entry struct {
	Spec     string `mapstructure:"spec" json:"spec"`
	ScriptID string `mapstructure:"scriptId" json:"scriptId"`
}

// Scheduler fires script runs on cron schedules. Standard five-field
// cron expressions plus the @every and @hourly style descriptors are
// accepted.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	starter Starter
	entries map[cron.EntryID]Entry
}

// New creates a scheduler driving the given engine
func New(starter Starter) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		starter: starter,
		entries: make(map[cron.EntryID]Entry),
	}
}

// Add registers a cron entry. The schedule only runs after Start.
func (s *Scheduler) Add(entry Entry) error {
	if entry.ScriptID == "" {
		return fmt.Errorf("schedule entry has no script id")
	}

	id, err := s.cron.AddFunc(entry.Spec, func() {
		logging.Info("Scheduled run firing", "script_id", entry.ScriptID, "spec", entry.Spec)
		if err := s.starter.Start(entry.ScriptID); err != nil {
			logging.Error("Scheduled run failed to start", "script_id", entry.ScriptID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", entry.Spec, err)
	}

	s.mu.Lock()
	s.entries[id] = entry
	s.mu.Unlock()

	logging.Debug("Schedule registered", "script_id", entry.ScriptID, "spec", entry.Spec)
	return nil
}

// Entries returns the registered schedule entries
func (s *Scheduler) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	return out
}

// Start begins firing schedules in a background goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	logging.Info("Scheduler started", "entries", len(s.entries))
}

// Stop halts the schedule and waits for in-flight triggers to return.
// Runs already started on the engine keep going.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logging.Info("Scheduler stopped")
}
