package settings

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/cfg/valkey_insight")

	assert.Equal(t, "false", s.Get("enabled", "false"))
	s.Set("enabled", "true")
	s.SetLanguage("German")
	require.NoError(t, s.AddServer("prod", "valkey://10.0.0.5:6379"))
	require.NoError(t, s.Save())

	loaded, err := Open(fs, "/cfg/valkey_insight")
	require.NoError(t, err)
	assert.Equal(t, "true", loaded.Get("enabled", "false"))
	assert.Equal(t, "german", loaded.Language())
	url, ok := loaded.Server("prod")
	require.True(t, ok)
	assert.Equal(t, "valkey://10.0.0.5:6379", url)
}

func TestLoadSkipsCommentsAndBlanks(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := "# comment\n\nlanguage = english\nbroken-line-without-equals\ntheme=dark\n"
	require.NoError(t, afero.WriteFile(fs, "/cfg/settings.vks", []byte(content), 0600))

	s, err := Open(fs, "/cfg")
	require.NoError(t, err)
	assert.Equal(t, "english", s.Get("language", ""))
	assert.Equal(t, "dark", s.Get("theme", ""))
	assert.Equal(t, "unset", s.Get("broken-line-without-equals", "unset"))
}

func TestMissingFilesAreEmpty(t *testing.T) {
	s, err := Open(afero.NewMemMapFs(), "/nowhere")
	require.NoError(t, err)
	assert.Empty(t, s.Servers())
	assert.Equal(t, "english", s.Language())
}

func TestAddServerDoesNotOverwrite(t *testing.T) {
	s := New(afero.NewMemMapFs(), "/cfg")
	require.NoError(t, s.AddServer("prod", "valkey://a:6379"))
	err := s.AddServer("prod", "valkey://b:6379")
	require.Error(t, err)
	url, _ := s.Server("prod")
	assert.Equal(t, "valkey://a:6379", url)
}

func TestUpdateAndDeleteServerPersist(t *testing.T) {
	fs := afero.NewMemMapFs()
	s := New(fs, "/cfg")
	require.NoError(t, s.AddServer("prod", "valkey://a:6379"))
	require.NoError(t, s.Save())

	require.Error(t, s.UpdateServer("nope", "valkey://x:1"))
	require.NoError(t, s.UpdateServer("prod", "valkey://b:6379"))

	reloaded, err := Open(fs, "/cfg")
	require.NoError(t, err)
	url, _ := reloaded.Server("prod")
	assert.Equal(t, "valkey://b:6379", url)

	require.NoError(t, s.DeleteServer("prod"))
	reloaded, err = Open(fs, "/cfg")
	require.NoError(t, err)
	assert.Empty(t, reloaded.Servers())
}
