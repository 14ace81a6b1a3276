package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexblob/internal/emotion"
)

func writeTestConfig(t *testing.T) (path, dir string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "config.yaml")

	cfg := `engine:
  transition_duration: 200ms
  workers: 2
geometry:
  width_segments: 8
  height_segments: 4
  cloud_points: 100
presets:
  file: ` + filepath.Join(dir, "emotions.json") + `
  watch: false
  persist: false
server:
  enabled: false
logging:
  dir: ` + filepath.Join(dir, "logs") + `
  console: false
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSnapshotWritesGLB(t *testing.T) {
	cfgPath, dir := writeTestConfig(t)
	out := filepath.Join(dir, "love.glb")

	stdout, err := execute(t, "--config", cfgPath, "snapshot", "--preset", "Love", "--time", "500ms", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Love")
	assert.Contains(t, stdout, "bounds [")

	doc, err := gltf.Open(out)
	require.NoError(t, err)
	require.Len(t, doc.Scenes, 1)
	assert.Len(t, doc.Scenes[0].Nodes, 1)
	assert.Len(t, doc.Meshes, 2)
}

func TestSnapshotUnknownPreset(t *testing.T) {
	cfgPath, dir := writeTestConfig(t)

	_, err := execute(t, "--config", cfgPath, "snapshot", "--preset", "Nope", "--out", filepath.Join(dir, "x.glb"))
	assert.ErrorIs(t, err, emotion.ErrPresetNotFound)
}

func TestPresetsList(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	stdout, err := execute(t, "--config", cfgPath, "presets", "list", "--field", "ribAmp,noiseSpeed")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Neutrality")
	assert.Contains(t, stdout, "Boredom")
	assert.Contains(t, stdout, "NOISESPEED")

	_, err = execute(t, "--config", cfgPath, "presets", "list", "--field", "color")
	assert.ErrorContains(t, err, "unknown field")
}

func TestPresetsRoute(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	stdout, err := execute(t, "--config", cfgPath, "presets", "route", "JOY", "meh")
	require.NoError(t, err)
	assert.Contains(t, stdout, "JOY\tJoy\n")
	assert.Contains(t, stdout, "meh\t-\n")

	stdout, err = execute(t, "--config", cfgPath, "presets", "route")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Neutrality\tneutrality\n")
}

func TestPresetsExportDoesNotPersist(t *testing.T) {
	cfgPath, dir := writeTestConfig(t)
	out := filepath.Join(dir, "export.json")

	_, err := execute(t, "--config", cfgPath, "presets", "export", "--out", out)
	require.NoError(t, err)

	exported, err := emotion.LoadPresetFile(out)
	require.NoError(t, err)
	assert.True(t, exported.Equal(emotion.DefaultPresets()))
	assert.NoFileExists(t, filepath.Join(dir, "emotions.json"))
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	_, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err)

	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)

	stdout, err := execute(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, stdout, "engine.neutral_preset: Neutrality")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "presets", "list")
	assert.Error(t, err)
}
