package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/deskpilot/internal/constants"
	"github.com/jeeftor/deskpilot/internal/recognition"
	"github.com/jeeftor/deskpilot/internal/script"
)

// mockStorage serves scripts and templates from maps
type mockStorage struct {
	scripts   map[string]*script.AutomationScript
	templates map[string]*script.TemplateImage
}

func (m *mockStorage) GetScript(id string) (*script.AutomationScript, error) {
	sc, ok := m.scripts[id]
	if !ok {
		return nil, fmt.Errorf("no script %s", id)
	}
	return sc, nil
}

func (m *mockStorage) GetTemplateImage(id string) (*script.TemplateImage, error) {
	t, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("no template %s", id)
	}
	return t, nil
}

// mockAutomation records every injection call
type mockAutomation struct {
	mu       sync.Mutex
	clicks   [][2]int
	typed    []string
	keys     []string
	targets  []string
	cleared  int
	clickErr error

	// When set, the first click blocks until the channel is closed
	clickGate chan struct{}
	clickedCh chan struct{}
}

func (m *mockAutomation) Click(x, y int) error {
	m.mu.Lock()
	gate := m.clickGate
	m.clickGate = nil
	entered := m.clickedCh
	m.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.clickErr != nil {
		return m.clickErr
	}
	m.clicks = append(m.clicks, [2]int{x, y})
	return nil
}

func (m *mockAutomation) DoubleClick(x, y int) error { return m.Click(x, y) }
func (m *mockAutomation) RightClick(x, y int) error  { return m.Click(x, y) }

func (m *mockAutomation) TypeText(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.typed = append(m.typed, text)
	return nil
}

func (m *mockAutomation) SendKeys(combo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, combo)
	return nil
}

func (m *mockAutomation) SetTargetWindow(window string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.targets = append(m.targets, window)
	return nil
}

func (m *mockAutomation) ClearTargetWindow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared++
}

func (m *mockAutomation) clickCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clicks)
}

// mockRecognizer returns a canned result and records thresholds
type mockRecognizer struct {
	mu         sync.Mutex
	calls      int
	thresholds []float64
	result     *recognition.MatchResult
	err        error
}

func (m *mockRecognizer) FindImage(screen, template []byte, threshold float64) (*recognition.MatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.thresholds = append(m.thresholds, threshold)
	if m.err != nil {
		return nil, m.err
	}
	if m.result != nil {
		return m.result, nil
	}
	return &recognition.MatchResult{Found: false, Confidence: 0}, nil
}

func (m *mockRecognizer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockScreen returns fixed pixel data
type mockScreen struct {
	mu    sync.Mutex
	data  []byte
	err   error
	saved []string
}

func (m *mockScreen) CaptureFullScreen() ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.data, nil
}

func (m *mockScreen) SaveScreenshot(data []byte, filename string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, filename)
	return "/tmp/" + filename, nil
}

// testHarness bundles an engine with its mocks and a terminal-state
// channel subscribed before any Start call
type testHarness struct {
	engine   *Engine
	storage  *mockStorage
	auto     *mockAutomation
	matcher  *mockRecognizer
	screen   *mockScreen
	terminal chan ExecutionState
}

func newHarness(scripts ...*script.AutomationScript) *testHarness {
	h := &testHarness{
		storage: &mockStorage{
			scripts:   make(map[string]*script.AutomationScript),
			templates: make(map[string]*script.TemplateImage),
		},
		auto:     &mockAutomation{},
		matcher:  &mockRecognizer{},
		screen:   &mockScreen{data: []byte("pixels")},
		terminal: make(chan ExecutionState, 16),
	}
	for _, sc := range scripts {
		h.storage.scripts[sc.ID] = sc
	}
	h.engine = New(h.storage, h.auto, h.matcher, h.screen)
	h.engine.OnStateChange(func(state ExecutionState) {
		if state.Status.Terminal() {
			select {
			case h.terminal <- state:
			default:
			}
		}
	})
	return h
}

func (h *testHarness) waitTerminal(t *testing.T) ExecutionState {
	t.Helper()
	select {
	case state := <-h.terminal:
		return state
	case <-time.After(5 * time.Second):
		t.Fatal("script did not reach a terminal state")
		return ExecutionState{}
	}
}

func hasLog(state ExecutionState, message string) bool {
	for _, entry := range state.Logs {
		if entry.Message == message {
			return true
		}
	}
	return false
}

func clickStep(id string, x, y int) script.ScriptStep {
	return script.ScriptStep{
		ID:      id,
		Kind:    script.StepAction,
		Name:    "click " + id,
		Enabled: true,
		Actions: []script.ScriptAction{
			{Kind: script.ActionClick, Parameters: script.Params{"x": x, "y": y}},
		},
	}
}

func testScript(id string, steps ...script.ScriptStep) *script.AutomationScript {
	return &script.AutomationScript{
		ID:    id,
		Name:  "Test " + id,
		Steps: steps,
	}
}

func TestStartUnknownScript(t *testing.T) {
	h := newHarness()

	err := h.engine.Start("missing")

	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestRunCompletesAndLogsActions(t *testing.T) {
	h := newHarness(testScript("s", clickStep("step1", 100, 200)))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.True(t, hasLog(state, "Clicked at (100, 200)"), "click should be logged")
	assert.True(t, hasLog(state, "Script execution completed"))
	assert.Equal(t, [][2]int{{100, 200}}, h.auto.clicks)
}

func TestInitialStateEmittedBeforeStartReturns(t *testing.T) {
	h := newHarness(testScript("s", clickStep("step1", 1, 1)))

	var states []ExecutionState
	var mu sync.Mutex
	h.engine.OnStateChange(func(state ExecutionState) {
		mu.Lock()
		states = append(states, state)
		mu.Unlock()
	})

	require.NoError(t, h.engine.Start("s"))

	mu.Lock()
	require.NotEmpty(t, states, "initial state must be emitted synchronously")
	first := states[0]
	mu.Unlock()

	assert.Equal(t, StatusRunning, first.Status)
	assert.Equal(t, "step1", first.CurrentStepID)
	h.waitTerminal(t)
}

func TestDisabledStepSkipped(t *testing.T) {
	disabled := clickStep("off", 9, 9)
	disabled.Enabled = false
	h := newHarness(testScript("s", disabled, clickStep("on", 1, 1)))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, [][2]int{{1, 1}}, h.auto.clicks, "disabled step must not execute")
	assert.False(t, hasLog(state, "Executing step: click off"), "disabled steps produce no step log")
}

func TestConditionOrRescuesFalseAggregate(t *testing.T) {
	step := script.ScriptStep{
		ID:      "cond",
		Kind:    script.StepCondition,
		Name:    "or rescue",
		Enabled: true,
		Conditions: []script.ScriptCondition{
			{Kind: script.CondNever, Operator: script.OperatorAnd},
			{Kind: script.CondAlways, Operator: script.OperatorOr},
		},
		Actions: []script.ScriptAction{
			{Kind: script.ActionClick, Parameters: script.Params{"x": 5, "y": 5}},
		},
	}
	h := newHarness(testScript("s", step))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, 1, h.auto.clickCount(), "a later OR true must rescue the aggregate")
}

func TestConditionAndShortCircuitSkipsEvaluation(t *testing.T) {
	h := newHarness(testScript("s", script.ScriptStep{
		ID:      "cond",
		Kind:    script.StepCondition,
		Name:    "short circuit",
		Enabled: true,
		Conditions: []script.ScriptCondition{
			{Kind: script.CondNever, Operator: script.OperatorAnd},
			{Kind: script.CondImageFound, Operator: script.OperatorAnd,
				Parameters: script.Params{"templateImageId": "tpl"}},
		},
		Actions: []script.ScriptAction{
			{Kind: script.ActionClick, Parameters: script.Params{"x": 5, "y": 5}},
		},
	}))
	h.storage.templates["tpl"] = &script.TemplateImage{ID: "tpl", Name: "tpl", Data: []byte("img")}

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Zero(t, h.matcher.callCount(), "false AND aggregate must skip image evaluation")
	assert.Zero(t, h.auto.clickCount(), "failed condition step must not run its actions")
}

func TestImageConditionMissingTemplateWarns(t *testing.T) {
	h := newHarness(testScript("s", script.ScriptStep{
		ID:      "cond",
		Kind:    script.StepCondition,
		Name:    "missing template",
		Enabled: true,
		Conditions: []script.ScriptCondition{
			{Kind: script.CondImageFound, Parameters: script.Params{"templateImageId": "ghost"}},
		},
		Actions: []script.ScriptAction{
			{Kind: script.ActionClick, Parameters: script.Params{"x": 5, "y": 5}},
		},
	}))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status, "a missing template degrades, never faults")
	assert.True(t, hasLog(state, "Template image 'ghost' not found"))
	assert.Zero(t, h.auto.clickCount())
}

func TestImageConditionThresholdOverride(t *testing.T) {
	h := newHarness(testScript("s", script.ScriptStep{
		ID:      "cond",
		Kind:    script.StepCondition,
		Name:    "threshold",
		Enabled: true,
		Conditions: []script.ScriptCondition{
			{Kind: script.CondImageFound,
				Parameters: script.Params{"templateImageId": "tpl", "threshold": 0.5}},
		},
	}))
	h.storage.templates["tpl"] = &script.TemplateImage{
		ID: "tpl", Name: "tpl", Threshold: 0.9, Data: []byte("img"),
	}
	h.matcher.result = &recognition.MatchResult{Found: true, Confidence: 0.6}

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	require.Len(t, h.matcher.thresholds, 1)
	assert.InDelta(t, 0.5, h.matcher.thresholds[0], 1e-9,
		"condition threshold must override the template's")
}

func TestJumpStepRelocatesCursor(t *testing.T) {
	jump := script.ScriptStep{
		ID: "j", Kind: script.StepJump, Name: "jump", Enabled: true,
		Parameters: script.Params{"targetStepId": "s4"},
	}
	h := newHarness(testScript("s",
		clickStep("s1", 1, 1), jump, clickStep("s3", 3, 3), clickStep("s4", 4, 4)))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, [][2]int{{1, 1}, {4, 4}}, h.auto.clicks, "jump must skip s3")
	assert.True(t, hasLog(state, "Jumping to step 's4'"))
}

func TestJumpTargetMissingContinuesSequentially(t *testing.T) {
	jump := script.ScriptStep{
		ID: "j", Kind: script.StepJump, Name: "jump", Enabled: true,
		Parameters: script.Params{"targetStepId": "nope"},
	}
	h := newHarness(testScript("s", jump, clickStep("s2", 2, 2)))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, [][2]int{{2, 2}}, h.auto.clicks)
	assert.True(t, hasLog(state, "Jump target 'nope' not found, continuing to next step"))
}

func TestElseBranchOnFailedCondition(t *testing.T) {
	cond := script.ScriptStep{
		ID: "s1", Kind: script.StepCondition, Name: "never", Enabled: true,
		Conditions: []script.ScriptCondition{{Kind: script.CondNever}},
		ElseStepID: "s3",
	}
	h := newHarness(testScript("s", cond, clickStep("s2", 2, 2), clickStep("s3", 3, 3)))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, [][2]int{{3, 3}}, h.auto.clicks, "else branch must skip s2")
	assert.True(t, hasLog(state, "Taking else branch to step 's3'"))
}

func TestTimeoutConditionFromRunStart(t *testing.T) {
	cond := script.ScriptStep{
		ID: "s1", Kind: script.StepCondition, Name: "timeout", Enabled: true,
		Conditions: []script.ScriptCondition{
			{Kind: script.CondTimeout, Parameters: script.Params{"timeoutMs": 0}},
		},
		Actions: []script.ScriptAction{
			{Kind: script.ActionClick, Parameters: script.Params{"x": 1, "y": 1}},
		},
	}
	h := newHarness(testScript("s", cond))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, 1, h.auto.clickCount(), "zero timeout has always elapsed")
}

func TestRepeatCountRunsIterations(t *testing.T) {
	sc := testScript("s", clickStep("s1", 1, 1))
	sc.RepeatCount = 3
	h := newHarness(sc)

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.Equal(t, 3, h.auto.clickCount())
	assert.Equal(t, 3, state.CurrentRepeat)
	assert.Equal(t, 3, state.TotalRepeats)
}

func TestInfiniteRepeatStops(t *testing.T) {
	sc := testScript("s", script.ScriptStep{
		ID: "w", Kind: script.StepWait, Name: "wait", Enabled: true,
		Parameters: script.Params{"milliseconds": 5},
	})
	sc.InfiniteRepeat = true
	h := newHarness(sc)

	require.NoError(t, h.engine.Start("s"))
	time.Sleep(50 * time.Millisecond)

	h.engine.Stop("s")
	state := h.waitTerminal(t)

	assert.Equal(t, StatusStopped, state.Status)
	assert.True(t, state.IsInfiniteRepeat)
	assert.Zero(t, state.TotalRepeats, "infinite repeat reports zero total")
	assert.GreaterOrEqual(t, state.CurrentRepeat, 1)
}

func TestStopFlipsStatusImmediately(t *testing.T) {
	sc := testScript("s", script.ScriptStep{
		ID: "w", Kind: script.StepWait, Name: "wait", Enabled: true,
		Parameters: script.Params{"milliseconds": 5000},
	})
	h := newHarness(sc)

	require.NoError(t, h.engine.Start("s"))
	h.engine.Stop("s")

	state, ok := h.engine.ExecutionState("s")
	require.True(t, ok)
	assert.Equal(t, StatusStopped, state.Status, "status flips before the task unwinds")
	h.waitTerminal(t)
}

func TestStopUntrackedIsNoop(t *testing.T) {
	h := newHarness()
	assert.NotPanics(t, func() { h.engine.Stop("ghost") })
	assert.NotPanics(t, func() { h.engine.Pause("ghost") })
	assert.NotPanics(t, func() { h.engine.Resume("ghost") })
}

func TestPauseHoldsAtPendingStep(t *testing.T) {
	h := newHarness(testScript("s", clickStep("s1", 1, 1), clickStep("s2", 2, 2)))
	h.auto.clickGate = make(chan struct{})
	h.auto.clickedCh = make(chan struct{}, 1)
	gate := h.auto.clickGate

	require.NoError(t, h.engine.Start("s"))

	// Wait until the first click is in flight, pause, then release it
	select {
	case <-h.auto.clickedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("first click never started")
	}
	h.engine.Pause("s")
	close(gate)

	// The run must hold before s2
	time.Sleep(300 * time.Millisecond)
	state, ok := h.engine.ExecutionState("s")
	require.True(t, ok)
	assert.Equal(t, StatusPaused, state.Status)
	assert.Equal(t, 1, h.auto.clickCount(), "paused run must not execute the next step")

	h.engine.Resume("s")
	final := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, 2, h.auto.clickCount())
}

func TestTransitionCapEndsIterationQuietly(t *testing.T) {
	// A self-loop would spin forever without the cap
	loop := script.ScriptStep{
		ID: "loop", Kind: script.StepJump, Name: "loop", Enabled: true,
		Parameters: script.Params{"targetStepId": "loop"},
	}
	h := newHarness(testScript("s", loop))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status, "hitting the cap is not an error")
	require.Len(t, state.Logs, constants.MaxLogEntries, "log buffer stays at its cap")

	// Eviction is strictly oldest-first: the start banner written before
	// the loop is gone, while the newest entries survive in order
	assert.False(t, hasLog(state, "Script 'Test s' started"),
		"the oldest entries must be evicted first")
	assert.Equal(t, "Script execution completed",
		state.Logs[len(state.Logs)-1].Message,
		"the newest entry must be retained last")
	for i := 1; i < len(state.Logs); i++ {
		require.False(t, state.Logs[i].Timestamp.Before(state.Logs[i-1].Timestamp),
			"retained entries must stay in append order")
	}
}

func TestRestartStopsPreviousRun(t *testing.T) {
	sc := testScript("s", script.ScriptStep{
		ID: "w", Kind: script.StepWait, Name: "wait", Enabled: true,
		Parameters: script.Params{"milliseconds": 5},
	})
	sc.InfiniteRepeat = true
	h := newHarness(sc)

	require.NoError(t, h.engine.Start("s"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.engine.Start("s"), "restart must stop the prior run first")

	h.engine.Stop("s")
	state := h.waitTerminal(t)
	assert.Equal(t, StatusStopped, state.Status)
}

func TestConcurrentStartsTrackSingleRun(t *testing.T) {
	sc := testScript("s", script.ScriptStep{
		ID: "c", Kind: script.StepAction, Name: "click", Enabled: true,
		Actions: []script.ScriptAction{
			{Kind: script.ActionClick, Parameters: script.Params{"x": 1, "y": 1},
				DelayAfterMs: 5},
		},
	})
	sc.InfiniteRepeat = true
	h := newHarness(sc)

	// Race many Starts through a common barrier; exactly one tracked
	// run may survive, and stopping it must stop all injection
	const starters = 10
	barrier := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < starters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-barrier
			assert.NoError(t, h.engine.Start("s"))
		}()
	}
	close(barrier)
	wg.Wait()

	assert.Len(t, h.engine.AllExecutionStates(), 1, "one tracked run per script id")

	h.engine.Stop("s")
	require.Eventually(t, func() bool {
		state, ok := h.engine.ExecutionState("s")
		return ok && state.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	// No orphaned task may keep clicking after the tracked run stopped
	time.Sleep(50 * time.Millisecond)
	before := h.auto.clickCount()
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, before, h.auto.clickCount(),
		"input injection must cease once the tracked run is stopped")
}

func TestWindowOverrideWinsOverScriptTarget(t *testing.T) {
	sc := testScript("s", clickStep("s1", 1, 1))
	sc.TargetWindow = "ScriptWindow"
	sc.TargetWindowEnabled = true
	h := newHarness(sc)

	h.engine.OverrideTargetWindow("OverrideWindow")
	require.NoError(t, h.engine.Start("s"))
	h.waitTerminal(t)

	h.auto.mu.Lock()
	targets := append([]string(nil), h.auto.targets...)
	h.auto.mu.Unlock()

	require.NotEmpty(t, targets)
	for _, target := range targets {
		assert.Equal(t, "OverrideWindow", target, "override must win over the script's target")
	}
}

func TestScriptTargetAppliedAndCleared(t *testing.T) {
	sc := testScript("s", clickStep("s1", 1, 1))
	sc.TargetWindow = "ScriptWindow"
	sc.TargetWindowEnabled = true
	h := newHarness(sc)

	require.NoError(t, h.engine.Start("s"))
	h.waitTerminal(t)

	h.auto.mu.Lock()
	targets := append([]string(nil), h.auto.targets...)
	cleared := h.auto.cleared
	h.auto.mu.Unlock()

	assert.Equal(t, []string{"ScriptWindow"}, targets)
	assert.Equal(t, 1, cleared, "target must be cleared after the run")
}

func TestActionErrorTakesElseBranch(t *testing.T) {
	failing := clickStep("s1", 1, 1)
	failing.ElseStepID = "s3"
	h := newHarness(testScript("s", failing, clickStep("s2", 2, 2), clickStep("s3", 3, 3)))
	h.auto.clickErr = fmt.Errorf("injection refused")

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.True(t, hasLog(state, "Taking else branch to step 's3'"))
	assert.True(t, hasLog(state, "Action 'click' failed: injection refused"))
}

func TestPanickingListenerDoesNotKillRun(t *testing.T) {
	h := newHarness(testScript("s", clickStep("s1", 1, 1)))
	h.engine.OnLog(func(ExecutionLog) { panic("bad listener") })

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
}

func TestUnknownStepKindSkipped(t *testing.T) {
	weird := script.ScriptStep{ID: "x", Kind: "hologram", Name: "weird", Enabled: true}
	h := newHarness(testScript("s", weird, clickStep("s2", 2, 2)))

	require.NoError(t, h.engine.Start("s"))
	state := h.waitTerminal(t)

	assert.Equal(t, StatusCompleted, state.Status)
	assert.True(t, hasLog(state, "Unknown step kind 'hologram', skipping"))
	assert.Equal(t, 1, h.auto.clickCount())
}

func TestAllExecutionStates(t *testing.T) {
	h := newHarness(
		testScript("a", clickStep("s1", 1, 1)),
		testScript("b", clickStep("s1", 1, 1)),
	)

	require.NoError(t, h.engine.Start("a"))
	require.NoError(t, h.engine.Start("b"))
	h.waitTerminal(t)
	h.waitTerminal(t)

	states := h.engine.AllExecutionStates()
	assert.Len(t, states, 2)
}
