// Package i18n localizes the user-facing CLI messages. Catalogs are
// YAML files in the languages resource box, one per IETF language code;
// the start-up language is matched against the system locale.
package i18n

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cloudfoundry/jibber_jabber"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v2"

	"github.com/valkey-insight/vkpack/pkg/expand"
	"github.com/valkey-insight/vkpack/pkg/resources"
)

// DefaultLanguage is used when the system locale matches no catalog.
const DefaultLanguage = "en"

var languageFilePattern = regexp.MustCompile(`(?:.*/)?([^/]+)\.ya?ml$`)

// Translator resolves message keys to localized strings.
type Translator struct {
	language    string
	langStrings map[string]expand.StringMap
	variables   expand.StringMap
}

// New returns a Translator without any variable lookup.
func New() (*Translator, error) { return NewVar(expand.StringMap{}) }

// NewVar returns a Translator whose strings may refer to the given
// variables. It loads every language catalog from the resource box and
// selects the language matching the system locale.
func NewVar(variables expand.StringMap) (*Translator, error) {
	catalogs, err := resources.Languages()
	if err != nil {
		return nil, err
	}
	languages := make(map[string]expand.StringMap)
	for filename, content := range catalogs {
		m := languageFilePattern.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		langStrings := make(expand.StringMap)
		if err := yaml.Unmarshal([]byte(content), langStrings); err != nil {
			return nil, errors.Wrapf(err, "parse language file %s", filename)
		}
		languages[m[1]] = langStrings
	}
	t := &Translator{langStrings: languages, variables: variables}
	if err := t.SetLanguage(t.locale()); err != nil {
		if err := t.SetLanguage(DefaultLanguage); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Get returns the localized string for a given message key, with the
// translator's variables expanded.
func (t *Translator) Get(key string) string {
	return t.expandString(t.raw(key), t.variables)
}

// Format returns the localized string for key with per-call variables
// merged over the translator's own.
func (t *Translator) Format(key string, vars expand.StringMap) string {
	return t.expandString(t.raw(key), expand.Merge(t.variables, vars))
}

// Language returns the identifier (e.g. "en") of the current language.
func (t *Translator) Language() string { return t.language }

// Languages returns the identifiers of all available languages, the
// default language first, the rest sorted alphabetically.
func (t *Translator) Languages() (languages []string) {
	hasDefault := false
	for lang := range t.langStrings {
		if lang != DefaultLanguage {
			languages = append(languages, lang)
		} else {
			hasDefault = true
		}
	}
	sort.Strings(languages)
	if hasDefault {
		languages = append([]string{DefaultLanguage}, languages...)
	}
	return languages
}

// SetLanguage sets the translator's language by its code (e.g. "en")
// or, case-insensitively, by its display name (e.g. "english"), the
// form the settings store persists.
func (t *Translator) SetLanguage(lang string) error {
	if _, ok := t.langStrings[lang]; ok {
		t.language = lang
		return nil
	}
	for code, catalog := range t.langStrings {
		if strings.EqualFold(catalog["_language_display"], lang) {
			t.language = code
			return nil
		}
	}
	return errors.Errorf("no language %q", lang)
}

// locale returns the best catalog match for the current system locale.
func (t *Translator) locale() string {
	languageTags := []language.Tag{language.Raw.Make(DefaultLanguage)}
	for languageTag := range t.langStrings {
		if languageTag != DefaultLanguage && languageTag != "" {
			languageTags = append(languageTags, language.Raw.Make(languageTag))
		}
	}
	locale, _ := jibber_jabber.DetectIETF()
	match, _, _ := language.NewMatcher(languageTags).Match(language.Make(locale))
	return match.String()
}

// raw returns the unexpanded string for key, falling back to the
// default language, then to the key itself so a missing translation is
// at least traceable in the output.
func (t *Translator) raw(key string) string {
	if value, ok := t.langStrings[t.language][key]; ok {
		return value
	}
	if value, ok := t.langStrings[DefaultLanguage][key]; ok {
		return value
	}
	return key
}

// expandString expands variables leniently: a string referring to an
// unknown variable is returned unexpanded rather than dropped, message
// lookup must never fail a build.
func (t *Translator) expandString(str string, vars expand.StringMap) string {
	expanded, err := expand.Expand(str, vars)
	if err != nil {
		return str
	}
	return expanded
}
