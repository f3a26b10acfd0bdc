package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/jeeftor/deskpilot/internal/constants"
	"github.com/jeeftor/deskpilot/internal/script"
)

// evaluateConditions combines a step's conditions into one aggregate,
// strictly in declaration order. Each condition's operator decides how
// its own result joins the running aggregate: OR makes a true aggregate
// final for that condition, AND makes a false aggregate final. A step
// with no conditions aggregates to true.
func (e *Engine) evaluateConditions(ctx context.Context, r *run, step *script.ScriptStep) (bool, error) {
	aggregate := true
	for i := range step.Conditions {
		cond := &step.Conditions[i]

		// Short-circuit: skip evaluation when this condition cannot
		// change the aggregate. Image conditions are expensive, so this
		// matters beyond style.
		if cond.Operator == script.OperatorOr {
			if aggregate {
				continue
			}
		} else if !aggregate {
			continue
		}

		value, err := e.evaluateCondition(ctx, r, step, cond)
		if err != nil {
			return false, err
		}
		if cond.Operator == script.OperatorOr {
			aggregate = aggregate || value
		} else {
			aggregate = aggregate && value
		}
	}
	return aggregate, nil
}

// evaluateCondition evaluates one condition. Missing templates and
// unknown kinds degrade to false with a Warning; collaborator failures
// (capture, matching) surface as errors and take the step's error path.
func (e *Engine) evaluateCondition(ctx context.Context, r *run, step *script.ScriptStep, cond *script.ScriptCondition) (bool, error) {
	switch cond.Kind {
	case script.CondImageFound:
		return e.evaluateImageCondition(ctx, r, step, cond)

	case script.CondImageNotFound:
		found, err := e.evaluateImageCondition(ctx, r, step, cond)
		if err != nil {
			return false, err
		}
		return !found, nil

	case script.CondTimeout:
		// Measured from run start, not from first reaching this step
		timeoutMs := cond.Parameters.Int("timeoutMs", constants.DefaultTimeoutMs)
		elapsed := time.Since(r.state.startTime())
		return elapsed >= time.Duration(timeoutMs)*time.Millisecond, nil

	case script.CondAlways:
		return true, nil

	case script.CondNever:
		return false, nil

	default:
		e.log(r, LogWarning, step.ID, fmt.Sprintf("Unknown condition kind '%s'", cond.Kind))
		return false, nil
	}
}

// evaluateImageCondition captures the screen and matches the referenced
// template against it
func (e *Engine) evaluateImageCondition(ctx context.Context, r *run, step *script.ScriptStep, cond *script.ScriptCondition) (bool, error) {
	templateID := cond.Parameters.String("templateImageId", "")
	if templateID == "" {
		e.log(r, LogWarning, step.ID, "Image condition has no templateImageId")
		return false, nil
	}

	template, err := e.storage.GetTemplateImage(templateID)
	if err != nil || template == nil {
		e.log(r, LogWarning, step.ID, fmt.Sprintf("Template image '%s' not found", templateID))
		return false, nil
	}
	if len(template.Data) == 0 {
		e.log(r, LogWarning, step.ID, fmt.Sprintf("Template image '%s' has no image data", templateID))
		return false, nil
	}

	if ctx.Err() != nil {
		return false, nil
	}

	screen, err := e.screen.CaptureFullScreen()
	if err != nil {
		return false, fmt.Errorf("screen capture failed: %w", err)
	}

	threshold := template.Threshold
	if threshold <= 0 {
		threshold = constants.DefaultMatchThreshold
	}
	if cond.Parameters.Has("threshold") {
		threshold = cond.Parameters.Float("threshold", threshold)
	}

	match, err := e.matcher.FindImage(screen, template.Data, threshold)
	if err != nil {
		return false, fmt.Errorf("image matching failed: %w", err)
	}

	if match.Found {
		e.log(r, LogDebug, step.ID, fmt.Sprintf("Template '%s' found at (%d, %d) with confidence %.3f",
			template.Name, match.Location.X, match.Location.Y, match.Confidence))
	} else {
		e.log(r, LogDebug, step.ID, fmt.Sprintf("Template '%s' not found (best confidence %.3f, threshold %.3f)",
			template.Name, match.Confidence, threshold))
	}
	return match.Found, nil
}
