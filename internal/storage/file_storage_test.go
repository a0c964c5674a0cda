package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWithinRejectsEscapes(t *testing.T) {
	root := t.TempDir()

	cases := []string{"../secret", "a/../../b", "/etc/passwd", "..\\x"}
	for _, p := range cases {
		_, err := ResolveWithin(root, p)
		assert.ErrorIs(t, err, ErrOutsideRoot, p)
	}

	got, err := ResolveWithin(root, "Assets", "bg/room.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "Assets", "bg", "room.png"), got)

	got, err = ResolveWithin(root, "a/../b.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.png"), got)
}

func TestFileStorageSaveAndList(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, fs.SaveFile("demo/Chapters/ch1.yaml", []byte("events: []\n")))
	require.NoError(t, fs.SaveYAMLFile("demo/story_config.yaml", map[string]string{"intro_chapter": "ch1.yaml"}))
	require.NoError(t, os.MkdirAll(filepath.Join(fs.BaseDir, "other"), 0755))

	assert.True(t, fs.FileExists("demo", "Chapters/ch1.yaml"))
	assert.False(t, fs.FileExists("demo", "Chapters"))
	assert.True(t, fs.DirExists("demo", "Chapters"))
	assert.False(t, fs.DirExists("../"))

	dirs, err := fs.ListDirs()
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "other"}, dirs)

	content, err := os.ReadFile(filepath.Join(fs.BaseDir, "demo", "story_config.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "intro_chapter: ch1.yaml")

	_, err = os.Stat(filepath.Join(fs.BaseDir, "demo", "Chapters", "ch1.yaml.tmp"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, fs.SaveFile("../escape.txt", []byte("x")), ErrOutsideRoot)
}
