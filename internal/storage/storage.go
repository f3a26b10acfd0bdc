package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeeftor/deskpilot/internal/logging"
	"github.com/jeeftor/deskpilot/internal/script"
)

// Service persists scripts and template images on disk: one JSON
// document per script, and one JSON metadata document plus one image
// file per template. Reads are safe to perform concurrently with other
// reads; writers are expected to be a single administrative caller
// (CLI), not the engine's hot path.
type Service struct {
	scriptsDir   string
	templatesDir string
}

// NewService creates a storage service rooted at dataDir
func NewService(dataDir string) (*Service, error) {
	s := &Service{
		scriptsDir:   filepath.Join(dataDir, "scripts"),
		templatesDir: filepath.Join(dataDir, "templates"),
	}
	for _, dir := range []string{s.scriptsDir, s.templatesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// validID rejects ids that could escape the storage directories
func validID(id string) error {
	if id == "" {
		return fmt.Errorf("empty id")
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}

// GetScript loads one script by id
func (s *Service) GetScript(id string) (*script.AutomationScript, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.scriptsDir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", id, err)
	}

	var sc script.AutomationScript
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing script %s: %w", id, err)
	}
	if sc.ID == "" {
		sc.ID = id
	}
	return &sc, nil
}

// SaveScript persists a script, assigning an id and timestamps when
// missing
func (s *Service) SaveScript(sc *script.AutomationScript) error {
	if sc.ID == "" {
		sc.ID = uuid.NewString()
	}
	if err := validID(sc.ID); err != nil {
		return err
	}
	now := time.Now()
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	sc.ModifiedAt = now

	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding script %s: %w", sc.ID, err)
	}

	path := filepath.Join(s.scriptsDir, sc.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing script %s: %w", sc.ID, err)
	}

	logging.Debug("Script saved", "script_id", sc.ID, "path", path)
	return nil
}

// ListScripts loads every stored script. Unreadable files are skipped
// with a warning so one corrupt document does not hide the rest.
func (s *Service) ListScripts() ([]*script.AutomationScript, error) {
	entries, err := os.ReadDir(s.scriptsDir)
	if err != nil {
		return nil, fmt.Errorf("reading scripts directory: %w", err)
	}

	var scripts []*script.AutomationScript
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		sc, err := s.GetScript(id)
		if err != nil {
			logging.Warn("Skipping unreadable script", "file", entry.Name(), "error", err)
			continue
		}
		scripts = append(scripts, sc)
	}
	return scripts, nil
}

// DeleteScript removes a stored script
func (s *Service) DeleteScript(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.scriptsDir, id+".json")); err != nil {
		return fmt.Errorf("deleting script %s: %w", id, err)
	}
	return nil
}

// GetTemplateImage loads a template's metadata and its image bytes
func (s *Service) GetTemplateImage(id string) (*script.TemplateImage, error) {
	if err := validID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.templatesDir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", id, err)
	}

	var t script.TemplateImage
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", id, err)
	}
	if t.ID == "" {
		t.ID = id
	}

	imagePath := t.FilePath
	if imagePath == "" {
		imagePath = filepath.Join(s.templatesDir, id+".png")
	} else if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(s.templatesDir, imagePath)
	}

	t.Data, err = os.ReadFile(imagePath)
	if err != nil {
		// Metadata without pixels is still useful to callers listing
		// templates; the engine treats empty data as a failed condition
		logging.Warn("Template image file unreadable", "template_id", id, "path", imagePath, "error", err)
		t.Data = nil
	}
	return &t, nil
}

// SaveTemplateImage persists template metadata and its image bytes
func (s *Service) SaveTemplateImage(t *script.TemplateImage, imageData []byte) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := validID(t.ID); err != nil {
		return err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	if t.FilePath == "" {
		t.FilePath = t.ID + ".png"
	}

	imagePath := t.FilePath
	if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(s.templatesDir, imagePath)
	}
	if err := os.WriteFile(imagePath, imageData, 0o644); err != nil {
		return fmt.Errorf("writing template image %s: %w", t.ID, err)
	}

	meta, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding template %s: %w", t.ID, err)
	}
	if err := os.WriteFile(filepath.Join(s.templatesDir, t.ID+".json"), meta, 0o644); err != nil {
		return fmt.Errorf("writing template metadata %s: %w", t.ID, err)
	}

	logging.Debug("Template saved", "template_id", t.ID, "image_path", imagePath)
	return nil
}

// ListTemplateImages loads metadata for every stored template without
// their image bytes
func (s *Service) ListTemplateImages() ([]*script.TemplateImage, error) {
	entries, err := os.ReadDir(s.templatesDir)
	if err != nil {
		return nil, fmt.Errorf("reading templates directory: %w", err)
	}

	var templates []*script.TemplateImage
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.templatesDir, entry.Name()))
		if err != nil {
			logging.Warn("Skipping unreadable template", "file", entry.Name(), "error", err)
			continue
		}
		var t script.TemplateImage
		if err := json.Unmarshal(data, &t); err != nil {
			logging.Warn("Skipping malformed template", "file", entry.Name(), "error", err)
			continue
		}
		if t.ID == "" {
			t.ID = strings.TrimSuffix(entry.Name(), ".json")
		}
		templates = append(templates, &t)
	}
	return templates, nil
}

// DeleteTemplateImage removes a template's metadata and image file
func (s *Service) DeleteTemplateImage(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.templatesDir, id+".json")); err != nil {
		return fmt.Errorf("deleting template %s: %w", id, err)
	}
	// Image file may live elsewhere when FilePath was absolute; best
	// effort on the conventional location
	_ = os.Remove(filepath.Join(s.templatesDir, id+".png"))
	return nil
}
