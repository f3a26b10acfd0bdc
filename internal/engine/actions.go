package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jeeftor/deskpilot/internal/constants"
	"github.com/jeeftor/deskpilot/internal/script"
)

// executeActions runs a step's actions in declaration order. The first
// failing action aborts the remainder; its error is logged and returned
// for the step-level handler to route to the else branch.
func (e *Engine) executeActions(ctx context.Context, r *run, step *script.ScriptStep) error {
	for i := range step.Actions {
		action := &step.Actions[i]
		if ctx.Err() != nil {
			return nil
		}
		if err := e.executeAction(ctx, r, step, action); err != nil {
			e.log(r, LogError, step.ID, fmt.Sprintf("Action '%s' failed: %v", action.Kind, err))
			return err
		}
		if action.DelayAfterMs > 0 {
			if !sleepCtx(ctx, time.Duration(action.DelayAfterMs)*time.Millisecond) {
				return nil
			}
		}
	}
	return nil
}

// executeAction maps one action kind to exactly one collaborator call
func (e *Engine) executeAction(ctx context.Context, r *run, step *script.ScriptStep, action *script.ScriptAction) error {
	switch action.Kind {
	case script.ActionClick:
		x := action.Parameters.Int("x", 0)
		y := action.Parameters.Int("y", 0)
		if err := e.auto.Click(x, y); err != nil {
			return err
		}
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Clicked at (%d, %d)", x, y))
		return nil

	case script.ActionDoubleClick:
		x := action.Parameters.Int("x", 0)
		y := action.Parameters.Int("y", 0)
		if err := e.auto.DoubleClick(x, y); err != nil {
			return err
		}
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Double-clicked at (%d, %d)", x, y))
		return nil

	case script.ActionRightClick:
		x := action.Parameters.Int("x", 0)
		y := action.Parameters.Int("y", 0)
		if err := e.auto.RightClick(x, y); err != nil {
			return err
		}
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Right-clicked at (%d, %d)", x, y))
		return nil

	case script.ActionType:
		text := action.Parameters.String("text", "")
		if err := e.auto.TypeText(text); err != nil {
			return err
		}
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Typed text (%d chars)", len(text)))
		return nil

	case script.ActionKeyPress:
		keys := action.Parameters.String("keys", "")
		if err := e.auto.SendKeys(keys); err != nil {
			return err
		}
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Pressed keys: %s", keys))
		return nil

	case script.ActionWait:
		ms := action.Parameters.Int("milliseconds", constants.DefaultWaitMs)
		sleepCtx(ctx, time.Duration(ms)*time.Millisecond)
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Waited %dms", ms))
		return nil

	case script.ActionScreenshot:
		fileName := action.Parameters.String("fileName", "")
		if fileName == "" {
			fileName = fmt.Sprintf("screenshot-%s.png", time.Now().Format("20060102-150405"))
		}
		data, err := e.screen.CaptureFullScreen()
		if err != nil {
			return err
		}
		path, err := e.screen.SaveScreenshot(data, fileName)
		if err != nil {
			return err
		}
		e.log(r, LogInfo, step.ID, fmt.Sprintf("Screenshot saved to %s", path))
		return nil

	default:
		e.log(r, LogWarning, step.ID, fmt.Sprintf("Unknown action kind '%s', skipping", action.Kind))
		return nil
	}
}
