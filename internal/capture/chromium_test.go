package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsNormalize(t *testing.T) {
	var o Options
	assert.Error(t, o.normalize())

	o.URL = "http://127.0.0.1:8080/calendar"
	assert.Error(t, o.normalize())

	o.OutputPath = "preview.png"
	require.NoError(t, o.normalize())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)
}

func TestSnapshotRejectsMissingURL(t *testing.T) {
	err := Snapshot(context.Background(), Options{OutputPath: "x.png"})
	assert.ErrorContains(t, err, "URL is required")
}

func TestTasks(t *testing.T) {
	var png []byte
	o := Options{URL: "http://x/calendar", OutputPath: "p.png"}
	require.NoError(t, o.normalize())
	assert.Len(t, tasks(o, &png), 4)

	o.User, o.Password = "admin", "pw"
	assert.Len(t, tasks(o, &png), 5)
}

func TestWritePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "preview.png")
	assert.Error(t, writePNG(path, nil))

	require.NoError(t, writePNG(path, []byte("png")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
