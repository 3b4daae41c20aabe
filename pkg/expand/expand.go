// Package expand substitutes template variables into the packaging text
// files: the Debian control file, the RPM spec, the Flatpak manifest and
// the NSIS installer script.
package expand

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

// StringMap holds template variables by name.
type StringMap map[string]string

var functions = template.FuncMap{
	"replace": func(from, to, input string) string { return strings.Replace(input, from, to, -1) },
	"trim":    func(input string) string { return strings.Trim(input, " \r\n\t") },
	"split":   func(sep, input string) []string { return strings.Split(input, sep) },
	"join":    func(sep string, input []string) string { return strings.Join(input, sep) },
	"upper":   strings.ToUpper,
	"lower":   strings.ToLower,
	"title":   strings.ToTitle,
}

// Expand takes a string with template variables like {{.version}} and
// expands them with the given map. A reference to a variable that is not
// in the map is an error: a package file with a raw template marker (or
// an empty version field) left in it must never reach a packaging tool.
func Expand(str string, variables StringMap) (string, error) {
	templ, err := template.New("").Funcs(functions).Option("missingkey=error").Parse(str)
	if err != nil {
		return "", errors.Wrap(err, "invalid template")
	}
	var buf bytes.Buffer
	if err := templ.Execute(&buf, variables); err != nil {
		return "", errors.Wrap(err, "expand template")
	}
	return buf.String(), nil
}

// Merge combines several variable maps into a single one. Duplicate keys
// are overridden by the value in the last map which has the key.
func Merge(varMaps ...StringMap) StringMap {
	merged := make(StringMap)
	for _, vars := range varMaps {
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged
}
