package itemsfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aescanero/dapub/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDoc = `
config:
  interval_mode: random
  min_seconds: 10
  max_seconds: 60
items:
  - id: first
    title: Launch day
    body: We are live.
    tags: [launch, news]
    attachments:
      - path: media/banner.png
      - url: https://cdn.example.com/logo.png
        content_type: image/png
    extras:
      channel: main
  - title: Second post
`

func TestParse_YAMLDocument(t *testing.T) {
	f, err := Parse([]byte(yamlDoc), "yaml")
	require.NoError(t, err)

	require.NotNil(t, f.Config)
	assert.Equal(t, domain.IntervalModeRandom, f.Config.IntervalMode)
	assert.Equal(t, 10, f.Config.MinSeconds)
	assert.Equal(t, 60, f.Config.MaxSeconds)

	require.Len(t, f.Items, 2)
	first := f.Items[0]
	assert.Equal(t, "first", first.ID)
	assert.Equal(t, "Launch day", first.Title)
	assert.Equal(t, []string{"launch", "news"}, first.Tags)
	require.Len(t, first.Attachments, 2)
	assert.Equal(t, "media/banner.png", first.Attachments[0].Path)
	assert.Equal(t, "image/png", first.Attachments[1].ContentType)
	assert.Equal(t, "main", first.Extras["channel"])
	assert.Equal(t, "Second post", f.Items[1].Title)
}

func TestParse_YAMLList(t *testing.T) {
	f, err := Parse([]byte("- title: a\n- body: b\n"), "yml")
	require.NoError(t, err)
	assert.Nil(t, f.Config)
	require.Len(t, f.Items, 2)
	assert.Equal(t, "b", f.Items[1].Body)
}

func TestParse_JSON(t *testing.T) {
	f, err := Parse([]byte(`{"config":{"interval_mode":"fixed","fixed_seconds":5},"items":[{"title":"x"}]}`), "json")
	require.NoError(t, err)
	require.NotNil(t, f.Config)
	assert.Equal(t, 5, f.Config.FixedSeconds)
	require.Len(t, f.Items, 1)

	f, err = Parse([]byte(` [{"title":"y"},{"title":"z"}]`), "json")
	require.NoError(t, err)
	assert.Len(t, f.Items, 2)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse([]byte(""), "yaml")
	require.NoError(t, err)
	assert.NotNil(t, f.Items)
	assert.Empty(t, f.Items)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("items: [unclosed"), "yaml")
	assert.Error(t, err)

	_, err = Parse([]byte("{"), "json")
	assert.Error(t, err)

	_, err = Parse([]byte("a: b"), "toml")
	assert.Error(t, err)
}

func TestLoad_ResolvesRelativeAttachmentPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	f, err := Load(path)
	require.NoError(t, err)

	absDir, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(absDir, "media", "banner.png"), f.Items[0].Attachments[0].Path)
	assert.Empty(t, f.Items[0].Attachments[1].Path)
}

func TestLoad_JSONByExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.JSON")
	require.NoError(t, os.WriteFile(path, []byte(`[{"title":"t","attachments":[{"path":"/abs/file.jpg"}]}]`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	assert.Equal(t, "/abs/file.jpg", f.Items[0].Attachments[0].Path)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_JSONKeepsLargeNumbers(t *testing.T) {
	f, err := Parse([]byte(`[{"title":"t","extras":{"product_id":9007199254740993}}]`), "json")
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	assert.Equal(t, json.Number("9007199254740993"), f.Items[0].Extras["product_id"])
}
