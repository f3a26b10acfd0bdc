package script

import (
	"encoding/json"
	"fmt"
	"time"
)

// StepKind represents the different kinds of steps in an automation script
type StepKind string

const (
	StepCondition StepKind = "condition" // Evaluate conditions, run actions when true
	StepAction    StepKind = "action"    // Run actions unconditionally
	StepWait      StepKind = "wait"      // Sleep for a configured duration
	StepJump      StepKind = "jump"      // Relocate the cursor to another step
)

// ConditionKind represents the different kinds of step conditions
type ConditionKind string

const (
	CondImageFound    ConditionKind = "image_found"
	CondImageNotFound ConditionKind = "image_not_found"
	CondTimeout       ConditionKind = "timeout"
	CondAlways        ConditionKind = "always"
	CondNever         ConditionKind = "never"
)

// ActionKind represents the different kinds of step actions
type ActionKind string

const (
	ActionClick       ActionKind = "click"
	ActionDoubleClick ActionKind = "double_click"
	ActionRightClick  ActionKind = "right_click"
	ActionType        ActionKind = "type"
	ActionKeyPress    ActionKind = "key_press"
	ActionWait        ActionKind = "wait"
	ActionScreenshot  ActionKind = "screenshot"
)

// Operator combines a condition's result with the step's running aggregate
type Operator string

const (
	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// AutomationScript is a complete stored script: an ordered list of steps
// plus repeat and window-targeting configuration. The engine treats a
// loaded script as a read-only snapshot for the duration of one run.
type AutomationScript struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ModifiedAt  time.Time `json:"modified_at"`

	Steps []ScriptStep `json:"steps"`

	// Repeat configuration
	InfiniteRepeat        bool `json:"infinite_repeat"`
	RepeatCount           int  `json:"repeat_count"`
	DelayBetweenRepeatsMs int  `json:"delay_between_repeats_ms"`

	// Optional window targeting
	TargetWindow        string `json:"target_window,omitempty"`
	TargetWindowEnabled bool   `json:"target_window_enabled"`
}

// ScriptStep is one addressable unit of script behavior. Order is
// informational only: traversal is driven by explicit jumps, not the
// index.
type ScriptStep struct {
	ID         string            `json:"id"`
	Order      int               `json:"order"`
	Kind       StepKind          `json:"kind"`
	Name       string            `json:"name"`
	Parameters Params            `json:"parameters,omitempty"`
	Conditions []ScriptCondition `json:"conditions,omitempty"`
	Actions    []ScriptAction    `json:"actions,omitempty"`
	ElseStepID string            `json:"else_step_id,omitempty"`
	Enabled    bool              `json:"enabled"`
}

// UnmarshalJSON decodes a step with Enabled defaulting to true when the
// field is absent, so hand-written script files do not silently disable
// every step.
func (s *ScriptStep) UnmarshalJSON(data []byte) error {
	type alias ScriptStep
	tmp := alias{Enabled: true}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	*s = ScriptStep(tmp)
	return nil
}

// ScriptCondition is one boolean test within a condition step
type ScriptCondition struct {
	Kind       ConditionKind `json:"kind"`
	Parameters Params        `json:"parameters,omitempty"`
	Operator   Operator      `json:"operator,omitempty"` // how this result joins the aggregate, AND when empty
}

// ScriptAction is one input action performed when a step fires
type ScriptAction struct {
	Kind         ActionKind `json:"kind"`
	Parameters   Params     `json:"parameters,omitempty"`
	DelayAfterMs int        `json:"delay_after_ms,omitempty"`
}

// Rect describes a capture region for a template image
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TemplateImage is a reference raster image used for correlation-based
// matching against live screen captures. Threshold and the confidence
// returned by matching are on the same 0.0-1.0 scale.
type TemplateImage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	FilePath  string    `json:"file_path"`
	Region    Rect      `json:"region"`
	Threshold float64   `json:"threshold"`
	CreatedAt time.Time `json:"created_at"`

	// Raw image bytes, loaded from FilePath by storage, never serialized
	// into the metadata document
	Data []byte `json:"-"`
}

// StepByID returns the step with the given id, or nil if absent
func (s *AutomationScript) StepByID(id string) *ScriptStep {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i]
		}
	}
	return nil
}

// TotalRepeats returns the configured repeat count, clamped to at least
// one. Meaningless for infinite-repeat scripts.
func (s *AutomationScript) TotalRepeats() int {
	if s.RepeatCount < 1 {
		return 1
	}
	return s.RepeatCount
}

// Validate checks structural consistency of the script and returns a
// list of human-readable warnings. Problems found here are never fatal:
// the engine degrades to sequential advance on dangling references at
// run time, but surfacing them up front helps script authors.
func (s *AutomationScript) Validate() []string {
	var warnings []string

	seen := make(map[string]bool, len(s.Steps))
	for _, step := range s.Steps {
		if step.ID == "" {
			warnings = append(warnings, fmt.Sprintf("step %q has no id", step.Name))
			continue
		}
		if seen[step.ID] {
			warnings = append(warnings, fmt.Sprintf("duplicate step id %q", step.ID))
		}
		seen[step.ID] = true
	}

	for _, step := range s.Steps {
		if step.ElseStepID != "" && !seen[step.ElseStepID] {
			warnings = append(warnings, fmt.Sprintf("step %q: else target %q not found", step.Name, step.ElseStepID))
		}
		if step.Kind == StepJump {
			target := step.Parameters.String("targetStepId", "")
			if target == "" {
				warnings = append(warnings, fmt.Sprintf("jump step %q has no targetStepId", step.Name))
			} else if !seen[target] {
				warnings = append(warnings, fmt.Sprintf("jump step %q: target %q not found", step.Name, target))
			}
		}
	}

	if !s.InfiniteRepeat && s.RepeatCount < 1 {
		warnings = append(warnings, fmt.Sprintf("repeat_count %d is below 1, will run once", s.RepeatCount))
	}

	return warnings
}
