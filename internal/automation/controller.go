package automation

import (
	"fmt"
	"sync"

	"github.com/go-vgo/robotgo"

	"github.com/jeeftor/deskpilot/internal/logging"
)

// Controller performs real input injection through robotgo. Target
// window state is guarded internally so concurrently running scripts
// can share one controller.
type Controller struct {
	mu           sync.Mutex
	targetWindow string
}

// NewController creates a new automation controller
func NewController() *Controller {
	return &Controller{}
}

// guard runs fn and converts robotgo panics into errors so a bad
// injection call never kills the calling task
func guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %v", op, r)
		}
	}()
	return fn()
}

// Click performs a left click at the given screen coordinates
func (c *Controller) Click(x, y int) error {
	return guard("click", func() error {
		robotgo.Move(x, y)
		robotgo.MilliSleep(10)
		robotgo.Click("left", false)
		return nil
	})
}

// DoubleClick performs a left double-click at the given coordinates
func (c *Controller) DoubleClick(x, y int) error {
	return guard("double click", func() error {
		robotgo.Move(x, y)
		robotgo.MilliSleep(10)
		robotgo.Click("left", true)
		return nil
	})
}

// RightClick performs a right click at the given coordinates
func (c *Controller) RightClick(x, y int) error {
	return guard("right click", func() error {
		robotgo.Move(x, y)
		robotgo.MilliSleep(10)
		robotgo.Click("right", false)
		return nil
	})
}

// TypeText types the given text into the focused window
func (c *Controller) TypeText(text string) error {
	if text == "" {
		return nil
	}
	return guard("type text", func() error {
		robotgo.TypeStr(text)
		return nil
	})
}

// SendKeys sends a key combo such as "enter", "ctrl+c" or
// "ctrl+shift+t" to the focused window
func (c *Controller) SendKeys(combo string) error {
	if combo == "" {
		return nil
	}
	key, mods, err := ParseKeyCombo(combo)
	if err != nil {
		return err
	}
	return guard("send keys", func() error {
		return tapKey(key, mods)
	})
}

// Wait sleeps for the given number of milliseconds
func (c *Controller) Wait(ms int) {
	if ms > 0 {
		robotgo.MilliSleep(ms)
	}
}

// SetTargetWindow activates the named window (process name or window
// title) so subsequent input lands in it
func (c *Controller) SetTargetWindow(window string) error {
	if window == "" {
		return fmt.Errorf("target window name is empty")
	}

	c.mu.Lock()
	c.targetWindow = window
	c.mu.Unlock()

	err := guard("activate window", func() error {
		return robotgo.ActiveName(window)
	})
	if err != nil {
		logging.Warn("Failed to activate target window", "window", window, "error", err)
		return err
	}
	logging.Debug("Target window activated", "window", window)
	return nil
}

// ClearTargetWindow clears the target; input goes to whatever window
// holds focus
func (c *Controller) ClearTargetWindow() {
	c.mu.Lock()
	c.targetWindow = ""
	c.mu.Unlock()
}

// HasTargetWindow reports whether a target window is set
func (c *Controller) HasTargetWindow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetWindow != ""
}

// TargetWindow returns the current target window name, empty when unset
func (c *Controller) TargetWindow() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.targetWindow
}
