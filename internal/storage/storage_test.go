package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeeftor/deskpilot/internal/script"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(t.TempDir())
	require.NoError(t, err)
	return svc
}

func TestScriptRoundTrip(t *testing.T) {
	svc := newTestService(t)

	sc := &script.AutomationScript{
		Name:        "Login flow",
		RepeatCount: 2,
		Steps: []script.ScriptStep{
			{ID: "s1", Kind: script.StepAction, Name: "click", Enabled: true,
				Actions: []script.ScriptAction{
					{Kind: script.ActionClick, Parameters: script.Params{"x": 10, "y": 20}},
				}},
		},
	}

	require.NoError(t, svc.SaveScript(sc))
	assert.NotEmpty(t, sc.ID, "save assigns an id")
	assert.False(t, sc.CreatedAt.IsZero())

	loaded, err := svc.GetScript(sc.ID)
	require.NoError(t, err)
	assert.Equal(t, sc.Name, loaded.Name)
	assert.Equal(t, 2, loaded.RepeatCount)
	require.Len(t, loaded.Steps, 1)
	assert.True(t, loaded.Steps[0].Enabled)
	assert.Equal(t, 10, loaded.Steps[0].Actions[0].Parameters.Int("x", 0))
}

func TestGetScriptUnknown(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetScript("missing")
	assert.Error(t, err)
}

func TestScriptIDsAreValidated(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetScript("../escape")
	assert.Error(t, err)

	_, err = svc.GetScript("a/b")
	assert.Error(t, err)

	err = svc.SaveScript(&script.AutomationScript{ID: `..\up`, Name: "bad"})
	assert.Error(t, err)
}

func TestListScriptsSkipsCorrupt(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.SaveScript(&script.AutomationScript{Name: "good"}))
	require.NoError(t, os.WriteFile(
		filepath.Join(svc.scriptsDir, "broken.json"), []byte("{nope"), 0o644))

	scripts, err := svc.ListScripts()

	require.NoError(t, err)
	require.Len(t, scripts, 1, "corrupt documents are skipped, not fatal")
	assert.Equal(t, "good", scripts[0].Name)
}

func TestDeleteScript(t *testing.T) {
	svc := newTestService(t)

	sc := &script.AutomationScript{Name: "short lived"}
	require.NoError(t, svc.SaveScript(sc))
	require.NoError(t, svc.DeleteScript(sc.ID))

	_, err := svc.GetScript(sc.ID)
	assert.Error(t, err)
	assert.Error(t, svc.DeleteScript(sc.ID), "double delete errors")
}

func TestTemplateRoundTripLoadsImageData(t *testing.T) {
	svc := newTestService(t)

	imageData := []byte{0x89, 'P', 'N', 'G', 1, 2, 3, 4}
	tpl := &script.TemplateImage{Name: "ok button", Threshold: 0.9}

	require.NoError(t, svc.SaveTemplateImage(tpl, imageData))
	assert.NotEmpty(t, tpl.ID)

	loaded, err := svc.GetTemplateImage(tpl.ID)
	require.NoError(t, err)
	assert.Equal(t, "ok button", loaded.Name)
	assert.InDelta(t, 0.9, loaded.Threshold, 1e-9)
	assert.Equal(t, imageData, loaded.Data, "image bytes come from the side file")
}

func TestTemplateMetadataNeverEmbedsImageData(t *testing.T) {
	svc := newTestService(t)

	tpl := &script.TemplateImage{Name: "big"}
	require.NoError(t, svc.SaveTemplateImage(tpl, []byte("pixels")))

	meta, err := os.ReadFile(filepath.Join(svc.templatesDir, tpl.ID+".json"))
	require.NoError(t, err)
	assert.NotContains(t, string(meta), "pixels")
}

func TestGetTemplateMissingImageFileDegrades(t *testing.T) {
	svc := newTestService(t)

	tpl := &script.TemplateImage{Name: "orphan"}
	require.NoError(t, svc.SaveTemplateImage(tpl, []byte("pixels")))
	require.NoError(t, os.Remove(filepath.Join(svc.templatesDir, tpl.FilePath)))

	loaded, err := svc.GetTemplateImage(tpl.ID)

	require.NoError(t, err, "missing pixels degrade to empty data, not an error")
	assert.Empty(t, loaded.Data)
}

func TestListTemplateImages(t *testing.T) {
	svc := newTestService(t)

	require.NoError(t, svc.SaveTemplateImage(&script.TemplateImage{Name: "a"}, []byte("x")))
	require.NoError(t, svc.SaveTemplateImage(&script.TemplateImage{Name: "b"}, []byte("y")))

	templates, err := svc.ListTemplateImages()

	require.NoError(t, err)
	assert.Len(t, templates, 2)
	for _, tpl := range templates {
		assert.Empty(t, tpl.Data, "listing returns metadata only")
	}
}

func TestDeleteTemplateImage(t *testing.T) {
	svc := newTestService(t)

	tpl := &script.TemplateImage{Name: "gone"}
	require.NoError(t, svc.SaveTemplateImage(tpl, []byte("x")))
	require.NoError(t, svc.DeleteTemplateImage(tpl.ID))

	_, err := svc.GetTemplateImage(tpl.ID)
	assert.Error(t, err)

	_, err = os.Stat(filepath.Join(svc.templatesDir, tpl.ID+".png"))
	assert.True(t, os.IsNotExist(err), "image file is removed with the metadata")
}
