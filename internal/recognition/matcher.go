package recognition

import (
	"fmt"
	"image"
	"time"

	"github.com/jeeftor/deskpilot/internal/logging"
)

// MatchResult describes the best placement of a template within a
// captured screen. Confidence and the caller's threshold share the same
// 0.0-1.0 scale.
type MatchResult struct {
	Found          bool            `json:"found"`
	Confidence     float64         `json:"confidence"`
	Location       image.Point     `json:"location"` // center of the matched region
	Bounds         image.Rectangle `json:"bounds"`
	SearchDuration time.Duration   `json:"search_duration"`
}

// Service performs grayscale template matching by exhaustive
// correlation. It holds no state and is safe for concurrent use by
// multiple running scripts.
type Service struct{}

// NewService creates a new image recognition service
func NewService() *Service {
	return &Service{}
}

// FindImage locates the template within the screen capture. The
// returned result carries the best confidence seen even when it falls
// below the threshold, which helps script authors tune thresholds.
func (s *Service) FindImage(screenData, templateData []byte, threshold float64) (*MatchResult, error) {
	start := time.Now()

	screenImg, err := DecodeImage(screenData)
	if err != nil {
		return nil, fmt.Errorf("decoding screen capture: %w", err)
	}
	templateImg, err := DecodeImage(templateData)
	if err != nil {
		return nil, fmt.Errorf("decoding template: %w", err)
	}

	screen, sw, sh := toGray(screenImg)
	template, tw, th := toGray(templateImg)

	if tw == 0 || th == 0 {
		return nil, fmt.Errorf("template has no pixels")
	}
	if tw > sw || th > sh {
		return nil, fmt.Errorf("template %dx%d larger than screen %dx%d", tw, th, sw, sh)
	}

	bestX, bestY, bestConfidence := matchGray(screen, sw, sh, template, tw, th)

	result := &MatchResult{
		Found:          bestConfidence >= threshold,
		Confidence:     bestConfidence,
		Location:       image.Pt(bestX+tw/2, bestY+th/2),
		Bounds:         image.Rect(bestX, bestY, bestX+tw, bestY+th),
		SearchDuration: time.Since(start),
	}

	logging.Debug("Template match finished",
		"found", result.Found,
		"confidence", fmt.Sprintf("%.3f", result.Confidence),
		"threshold", fmt.Sprintf("%.3f", threshold),
		"location", fmt.Sprintf("(%d,%d)", result.Location.X, result.Location.Y),
		"duration", result.SearchDuration)

	return result, nil
}

// matchGray slides the template over the screen buffer and scores each
// placement by mean absolute pixel difference. Template pixels are
// sampled on a small stride for large templates, which trades a little
// precision for a big scan speedup.
func matchGray(screen []uint8, sw, sh int, template []uint8, tw, th int) (bestX, bestY int, bestConfidence float64) {
	stride := 1
	if tw*th > 64*64 {
		stride = 2
	}

	samples := 0
	for ty := 0; ty < th; ty += stride {
		for tx := 0; tx < tw; tx += stride {
			samples++
		}
	}
	maxDiff := float64(samples) * 255.0

	bestConfidence = -1.0
	// Early abandon: once a placement's accumulated difference exceeds
	// the best seen so far it cannot win, so stop scoring it
	bestDiff := int64(maxDiff) + 1

	for y := 0; y <= sh-th; y++ {
		for x := 0; x <= sw-tw; x++ {
			var diff int64
			abandoned := false
			for ty := 0; ty < th && !abandoned; ty += stride {
				rowScreen := (y+ty)*sw + x
				rowTemplate := ty * tw
				for tx := 0; tx < tw; tx += stride {
					d := int64(screen[rowScreen+tx]) - int64(template[rowTemplate+tx])
					if d < 0 {
						d = -d
					}
					diff += d
				}
				if diff >= bestDiff {
					abandoned = true
				}
			}
			if abandoned {
				continue
			}
			if diff < bestDiff {
				bestDiff = diff
				bestX, bestY = x, y
				bestConfidence = 1.0 - float64(diff)/maxDiff
				if bestDiff == 0 {
					return bestX, bestY, 1.0
				}
			}
		}
	}

	if bestConfidence < 0 {
		bestConfidence = 0
	}
	return bestX, bestY, bestConfidence
}
