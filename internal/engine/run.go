package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jeeftor/deskpilot/internal/constants"
	"github.com/jeeftor/deskpilot/internal/script"
)

// runScript is the independent task behind one Start call. It applies
// window targeting, drives the repeat loop, and settles the run on a
// terminal status before closing the done channel.
func (e *Engine) runScript(ctx context.Context, r *run) {
	defer close(r.done)

	e.applyWindowTarget(r)
	defer e.restoreWindowTarget()

	var fault error
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				fault = fmt.Errorf("run panic: %v", rec)
			}
		}()
		fault = e.runRepeatLoop(ctx, r)
	}()

	switch {
	case ctx.Err() != nil:
		// Stop already set the status for observer feedback; converge
		// in case the run was cancelled through another path
		r.state.setStatus(StatusStopped)
	case fault != nil:
		r.state.setStatus(StatusError)
		e.log(r, LogError, "", fmt.Sprintf("Script execution failed: %v", fault))
	default:
		// A Stop that raced in after the loop finished keeps its status
		if r.state.setStatusIf(StatusRunning, StatusCompleted) ||
			r.state.setStatusIf(StatusPaused, StatusCompleted) {
			e.log(r, LogInfo, "", "Script execution completed")
		}
	}
	e.emitState(r.state.snapshot())
}

// runRepeatLoop drives the configured repeats. An iteration failure is
// logged and ends the loop without retrying; it does not fault the run.
func (e *Engine) runRepeatLoop(ctx context.Context, r *run) error {
	sc := r.script
	totalRepeats := sc.TotalRepeats()

	for current := 0; sc.InfiniteRepeat || current < totalRepeats; {
		if ctx.Err() != nil {
			return nil
		}
		current++
		r.state.recordRepeat(current)

		ok := e.runIteration(ctx, r)
		if !ok {
			e.log(r, LogError, "", fmt.Sprintf("Iteration %d failed, stopping repeats", current))
			return nil
		}

		if !sc.InfiniteRepeat && current >= totalRepeats {
			return nil
		}
		if sc.DelayBetweenRepeatsMs > 0 {
			if !sleepCtx(ctx, time.Duration(sc.DelayBetweenRepeatsMs)*time.Millisecond) {
				return nil
			}
		}
	}
	return nil
}

// runIteration performs one pass over the step list. Traversal is
// jump-based: the cursor restarts at the first authored step and moves
// by explicit jump targets or sequential advance. The transition cap
// bounds malformed scripts whose jumps cycle forever; hitting the cap
// quietly ends the iteration as successful.
func (e *Engine) runIteration(ctx context.Context, r *run) (ok bool) {
	// Per-step faults are absorbed inside executeStep; this guard only
	// catches unexpected faults in the traversal machinery itself,
	// which fail the iteration and stop further repeats.
	defer func() {
		if rec := recover(); rec != nil {
			e.log(r, LogError, "", fmt.Sprintf("Iteration fault: %v", rec))
			ok = false
		}
	}()

	sc := r.script
	cursor := 0
	transitions := 0

	for cursor >= 0 && cursor < len(sc.Steps) && transitions < constants.MaxStepTransitions {
		if ctx.Err() != nil {
			return true
		}

		// Cooperative pause: hold at the pending step until resumed or
		// cancelled. No step log during this wait.
		for r.state.status() == StatusPaused {
			if !sleepCtx(ctx, constants.PausePollInterval) {
				return true
			}
		}
		if ctx.Err() != nil {
			return true
		}

		step := &sc.Steps[cursor]
		if !step.Enabled {
			cursor++
			continue
		}

		r.state.setCurrentStep(step.ID)
		e.emitState(r.state.snapshot())
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Executing step: %s", step.Name))

		success, nextStepID, stepErr := e.executeStep(ctx, r, step)
		transitions++

		if stepErr != nil {
			e.log(r, LogError, step.ID, fmt.Sprintf("Step execution error: %v", stepErr))
			success = false
		}

		if success {
			if nextStepID != "" {
				if pos, ok := r.index[nextStepID]; ok {
					e.log(r, LogInfo, step.ID, fmt.Sprintf("Jumping to step '%s'", nextStepID))
					cursor = pos
				} else {
					e.log(r, LogWarning, step.ID, fmt.Sprintf("Jump target '%s' not found, continuing to next step", nextStepID))
					cursor++
				}
			} else {
				cursor++
			}
		} else {
			if step.ElseStepID != "" {
				if pos, ok := r.index[step.ElseStepID]; ok {
					e.log(r, LogInfo, step.ID, fmt.Sprintf("Taking else branch to step '%s'", step.ElseStepID))
					cursor = pos
				} else {
					e.log(r, LogWarning, step.ID, fmt.Sprintf("Else target '%s' not found, continuing to next step", step.ElseStepID))
					cursor++
				}
			} else {
				cursor++
			}
		}
	}

	return true
}

// executeStep dispatches one step by kind. It returns the step's
// success, an optional requested next-step id, and any error raised
// while executing it. Panics from collaborator calls are absorbed into
// the error so a single bad step never kills the run task.
func (e *Engine) executeStep(ctx context.Context, r *run, step *script.ScriptStep) (success bool, nextStepID string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("step panic: %v", rec)
		}
	}()

	switch step.Kind {
	case script.StepCondition:
		pass, condErr := e.evaluateConditions(ctx, r, step)
		if condErr != nil {
			return false, "", condErr
		}
		if !pass {
			return false, "", nil
		}
		if actErr := e.executeActions(ctx, r, step); actErr != nil {
			return false, "", actErr
		}
		return true, "", nil

	case script.StepAction:
		if actErr := e.executeActions(ctx, r, step); actErr != nil {
			return false, "", actErr
		}
		return true, "", nil

	case script.StepWait:
		ms := step.Parameters.Int("milliseconds", constants.DefaultWaitMs)
		sleepCtx(ctx, time.Duration(ms)*time.Millisecond)
		return true, "", nil

	case script.StepJump:
		return true, step.Parameters.String("targetStepId", ""), nil

	default:
		e.log(r, LogWarning, step.ID, fmt.Sprintf("Unknown step kind '%s', skipping", step.Kind))
		return true, "", nil
	}
}

// applyWindowTarget applies the runtime override if set, otherwise the
// script's own target when enabled
func (e *Engine) applyWindowTarget(r *run) {
	override, has := e.targetOverride()
	switch {
	case has:
		if err := e.auto.SetTargetWindow(override); err != nil {
			e.log(r, LogWarning, "", fmt.Sprintf("Failed to target window '%s': %v", override, err))
		}
	case r.script.TargetWindowEnabled && r.script.TargetWindow != "":
		if err := e.auto.SetTargetWindow(r.script.TargetWindow); err != nil {
			e.log(r, LogWarning, "", fmt.Sprintf("Failed to target window '%s': %v", r.script.TargetWindow, err))
		}
	}
}

// restoreWindowTarget re-applies the runtime override if one is present,
// else clears the target so the run does not leak it
func (e *Engine) restoreWindowTarget() {
	override, has := e.targetOverride()
	if has {
		_ = e.auto.SetTargetWindow(override)
		return
	}
	e.auto.ClearTargetWindow()
}

// sleepCtx sleeps for d unless the context is cancelled first. It
// reports whether the full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
