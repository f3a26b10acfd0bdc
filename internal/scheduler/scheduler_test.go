package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStarter records which scripts were started
type mockStarter struct {
	mu      sync.Mutex
	started []string
}

func (m *mockStarter) Start(scriptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, scriptID)
	return nil
}

func (m *mockStarter) startedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started)
}

func TestAddRejectsInvalidSpec(t *testing.T) {
	s := New(&mockStarter{})

	err := s.Add(Entry{Spec: "not a cron spec", ScriptID: "a"})

	assert.Error(t, err)
}

func TestAddRejectsMissingScriptID(t *testing.T) {
	s := New(&mockStarter{})

	err := s.Add(Entry{Spec: "@every 1s"})

	assert.Error(t, err)
}

func TestEntriesReturnsRegistered(t *testing.T) {
	s := New(&mockStarter{})

	require.NoError(t, s.Add(Entry{Spec: "@hourly", ScriptID: "a"}))
	require.NoError(t, s.Add(Entry{Spec: "0 9 * * 1-5", ScriptID: "b"}))

	assert.Len(t, s.Entries(), 2)
}

func TestScheduleFiresStarter(t *testing.T) {
	starter := &mockStarter{}
	s := New(starter)

	require.NoError(t, s.Add(Entry{Spec: "@every 100ms", ScriptID: "tick"}))
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return starter.startedCount() >= 1
	}, 3*time.Second, 20*time.Millisecond, "schedule should fire at least once")
}
