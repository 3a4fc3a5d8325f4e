package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexkit/fineprint/internal/model"
)

type stubClassifier struct{ labels []string }

func (s *stubClassifier) Name() string     { return "stub" }
func (s *stubClassifier) Labels() []string { return s.labels }

func (s *stubClassifier) Predict(_ context.Context, texts []string) (*model.Matrix, error) {
	return model.NewMatrix(len(texts), len(s.labels)), nil
}

func TestRegistry(t *testing.T) {
	Register("stub", func(dir string) (Classifier, error) {
		return &stubClassifier{labels: []string{"confidentiality"}}, nil
	})
	t.Cleanup(func() { delete(registry, "stub") })

	load, err := Get("stub")
	require.NoError(t, err)
	c, err := load("")
	require.NoError(t, err)
	assert.Equal(t, "stub", c.Name())

	_, err = Get("nope")
	require.Error(t, err)

	assert.Contains(t, Kinds(), "stub")
}

func TestOpen(t *testing.T) {
	Register("stub", func(dir string) (Classifier, error) {
		return &stubClassifier{labels: []string{"terminations"}}, nil
	})
	t.Cleanup(func() { delete(registry, "stub") })

	dir := t.TempDir()
	manifest := []byte(`{"model": "stub"}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), manifest, 0o644))

	c, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"terminations"}, c.Labels())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(t.TempDir())
	require.Error(t, err, "missing manifest")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(`{}`), 0o644))
	_, err = Open(dir)
	require.Error(t, err, "manifest without a model kind")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(`{"model": "missing"}`), 0o644))
	_, err = Open(dir)
	require.Error(t, err, "unregistered kind")
}
