package capture

import (
	"bytes"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/go-vgo/robotgo"

	"github.com/jeeftor/deskpilot/internal/logging"
)

// Service captures the desktop and saves screenshots under a configured
// directory. It is stateless apart from the directory and safe for
// concurrent use.
type Service struct {
	screenshotDir string
}

// NewService creates a screenshot service saving into dir
func NewService(dir string) *Service {
	return &Service{screenshotDir: dir}
}

// CaptureFullScreen captures the primary display and returns PNG bytes
func (s *Service) CaptureFullScreen() (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("screen capture: %v", r)
		}
	}()

	start := time.Now()
	img, err := robotgo.CaptureImg()
	if err != nil {
		return nil, fmt.Errorf("screen capture failed: %w", err)
	}
	if img == nil {
		return nil, fmt.Errorf("screen capture returned no image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding screenshot: %w", err)
	}

	logging.Debug("Captured full screen",
		"bytes", buf.Len(),
		"duration", time.Since(start))
	return buf.Bytes(), nil
}

// SaveScreenshot writes image bytes into the screenshot directory and
// returns the full path. An empty filename gets a timestamped default.
func (s *Service) SaveScreenshot(data []byte, filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("screenshot-%s.png", time.Now().Format("20060102-150405"))
	}

	if err := os.MkdirAll(s.screenshotDir, 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}

	path := filepath.Join(s.screenshotDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}

	logging.Debug("Screenshot saved", "path", path, "bytes", len(data))
	return path, nil
}
