package valkey

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// maxSuggestions caps prefix completion results.
const maxSuggestions = 10

// Command is one documented server command.
type Command struct {
	FullName  string
	Summary   string
	Arguments string
}

// Registry holds the command documentation loaded from the upstream
// per-command JSON files, sorted by full name.
type Registry struct {
	commands []Command
}

// CommandsDir locates the command documentation directory. Inside a
// Flatpak sandbox the files live under /app, installed packages put
// them under /usr/share, and a development checkout uses ./commands.
func CommandsDir(fs afero.Fs) string {
	if ok, _ := afero.Exists(fs, "/.flatpak-info"); ok {
		return "/app/share/valkey_insight/commands"
	}
	if ok, _ := afero.DirExists(fs, "/usr/share/valkey_insight/commands"); ok {
		return "/usr/share/valkey_insight/commands"
	}
	return "commands"
}

type commandDefinition struct {
	Summary   string     `json:"summary"`
	Container string     `json:"container"`
	Arguments []argument `json:"arguments"`
}

type argument struct {
	Name      string     `json:"name"`
	Token     string     `json:"token"`
	Arguments []argument `json:"arguments"`
}

// LoadRegistry reads every *.json file in dir. A missing directory is
// an empty registry, not an error; unparseable files are skipped.
func LoadRegistry(fs afero.Fs, dir string) (*Registry, error) {
	r := &Registry{}
	ok, err := afero.DirExists(fs, dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return r, nil
	}
	entries, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		content, err := afero.ReadFile(fs, filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		if cmd, ok := parseCommandJSON(content); ok {
			r.commands = append(r.commands, cmd)
		}
	}
	sort.Slice(r.commands, func(i, j int) bool {
		return r.commands[i].FullName < r.commands[j].FullName
	})
	return r, nil
}

// parseCommandJSON reads one upstream command file: a single-key
// object mapping the command name to its definition.
func parseCommandJSON(content []byte) (Command, bool) {
	var file map[string]commandDefinition
	if err := json.Unmarshal(content, &file); err != nil {
		return Command{}, false
	}
	names := make([]string, 0, len(file))
	for name := range file {
		names = append(names, name)
	}
	if len(names) == 0 {
		return Command{}, false
	}
	sort.Strings(names)
	name := names[0]
	def := file[name]

	fullName := strings.ToUpper(name)
	if def.Container != "" {
		fullName = strings.ToUpper(def.Container) + " " + fullName
	}
	var tokens []string
	collectArgumentTokens(def.Arguments, &tokens)
	return Command{
		FullName:  fullName,
		Summary:   def.Summary,
		Arguments: strings.Join(tokens, " "),
	}, true
}

func collectArgumentTokens(args []argument, out *[]string) {
	for _, arg := range args {
		if arg.Token != "" {
			*out = append(*out, arg.Token)
		} else {
			*out = append(*out, "<"+arg.Name+">")
		}
		if len(arg.Arguments) > 0 {
			collectArgumentTokens(arg.Arguments, out)
		}
	}
}

// Suggest returns up to maxSuggestions commands whose full name starts
// with the input, case-insensitively.
func (r *Registry) Suggest(input string) []Command {
	if input == "" {
		return nil
	}
	upper := strings.ToUpper(input)
	var out []Command
	for _, cmd := range r.commands {
		if strings.HasPrefix(cmd.FullName, upper) {
			out = append(out, cmd)
			if len(out) == maxSuggestions {
				break
			}
		}
	}
	return out
}

// Lookup finds a command by its exact full name.
func (r *Registry) Lookup(name string) (Command, bool) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for _, cmd := range r.commands {
		if cmd.FullName == upper {
			return cmd, true
		}
	}
	return Command{}, false
}

// All returns every command, sorted.
func (r *Registry) All() []Command {
	return r.commands
}
