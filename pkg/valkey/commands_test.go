package valkey

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const getJSON = `{
  "GET": {
    "summary": "Get the value of a key",
    "arguments": [{"name": "key", "type": "key"}]
  }
}`

const clientListJSON = `{
  "LIST": {
    "summary": "Lists client connections",
    "container": "CLIENT",
    "arguments": [
      {"name": "normal", "token": "TYPE", "arguments": [{"name": "filter"}]}
    ]
  }
}`

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/cmds/get.json", []byte(getJSON), 0644))
	require.NoError(t, afero.WriteFile(fs, "/cmds/client-list.json", []byte(clientListJSON), 0644))
	require.NoError(t, afero.WriteFile(fs, "/cmds/broken.json", []byte("{not json"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/cmds/readme.txt", []byte("ignored"), 0644))
	r, err := LoadRegistry(fs, "/cmds")
	require.NoError(t, err)
	return r
}

func TestLoadRegistry(t *testing.T) {
	r := testRegistry(t)
	all := r.All()
	require.Len(t, all, 2)
	// Sorted by full name; container prefixes the command name.
	assert.Equal(t, "CLIENT LIST", all[0].FullName)
	assert.Equal(t, "GET", all[1].FullName)
	assert.Equal(t, "Get the value of a key", all[1].Summary)
	assert.Equal(t, "<key>", all[1].Arguments)
	assert.Equal(t, "TYPE <filter>", all[0].Arguments)
}

func TestLoadRegistryMissingDir(t *testing.T) {
	r, err := LoadRegistry(afero.NewMemMapFs(), "/nowhere")
	require.NoError(t, err)
	assert.Empty(t, r.All())
}

func TestSuggest(t *testing.T) {
	r := testRegistry(t)
	assert.Empty(t, r.Suggest(""))
	assert.Len(t, r.Suggest("cli"), 1)
	assert.Equal(t, "GET", r.Suggest("ge")[0].FullName)
	assert.Empty(t, r.Suggest("ZADD"))
}

func TestLookup(t *testing.T) {
	r := testRegistry(t)
	cmd, ok := r.Lookup("client list")
	require.True(t, ok)
	assert.Equal(t, "Lists client connections", cmd.Summary)
	_, ok = r.Lookup("HGETALL")
	assert.False(t, ok)
}
