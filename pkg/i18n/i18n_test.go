package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/resources"
)

func newTestTranslator(t *testing.T, vars expand.StringMap) *Translator {
	t.Helper()
	resources.MustOpen()
	tr, err := NewVar(vars)
	require.NoError(t, err)
	require.NoError(t, tr.SetLanguage("en"))
	return tr
}

func TestGetAndFormat(t *testing.T) {
	tr := newTestTranslator(t, expand.StringMap{"product": "Valkey Insight"})

	assert.Equal(t, "Build failed", tr.Get("build_failed"))
	assert.Equal(t,
		"Building deb package for Valkey Insight 1.2.3",
		tr.Format("building", expand.StringMap{"format": "deb", "version": "1.2.3"}),
	)
}

func TestUnknownKeyFallsBackToKey(t *testing.T) {
	tr := newTestTranslator(t, nil)
	assert.Equal(t, "no_such_key", tr.Get("no_such_key"))
}

func TestLanguages(t *testing.T) {
	tr := newTestTranslator(t, nil)
	langs := tr.Languages()
	require.NotEmpty(t, langs)
	assert.Equal(t, "en", langs[0])
	assert.Contains(t, langs, "de")
}

func TestSetLanguage(t *testing.T) {
	tr := newTestTranslator(t, nil)
	require.NoError(t, tr.SetLanguage("de"))
	assert.Equal(t, "Paketbau fehlgeschlagen", tr.Get("build_failed"))
	assert.Error(t, tr.SetLanguage("xx"))
}

func TestSetLanguageByDisplayName(t *testing.T) {
	tr := newTestTranslator(t, nil)

	// The settings store persists the lowercased display name.
	require.NoError(t, tr.SetLanguage("english"))
	assert.Equal(t, "en", tr.Language())
	require.NoError(t, tr.SetLanguage("Deutsch"))
	assert.Equal(t, "de", tr.Language())
	assert.Error(t, tr.SetLanguage("klingon"))
}
