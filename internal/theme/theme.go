package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// importRegex matches @import "file.css"; or @import 'file.css'; or @import url("file.css");
var importRegex = regexp.MustCompile(`@import\s+(?:url\s*\(\s*)?["']([^"']+)["']\s*\)?;?`)

// Theme is a resolved stylesheet.
type Theme struct {
	Name    string    // Theme name without .css extension
	Path    string    // User file, empty for bundled themes
	CSS     string    // Stylesheet with imports inlined
	ModTime time.Time // Modification time of Path
}

// Bundled reports whether the theme came from the embedded set.
func (t *Theme) Bundled() bool {
	return t.Path == ""
}

// ThemesDir returns the path to the user's themes directory.
func ThemesDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "overlayd", "themes"), nil
}

// Resolve finds a theme by name. A file in themesDir overrides the bundled
// theme of the same name; an unknown name falls back to the default theme
// and reports found=false.
func Resolve(name, themesDir string) (theme *Theme, found bool, err error) {
	if name == "" {
		name = DefaultThemeName
	}

	if themesDir != "" {
		path := filepath.Join(themesDir, name+".css")
		if _, statErr := os.Stat(path); statErr == nil {
			t, loadErr := Load(name, path)
			if loadErr == nil {
				return t, true, nil
			}
			err = fmt.Errorf("user theme %q: %w", name, loadErr)
		}
	}

	if css, ok := Embedded(name); ok {
		return &Theme{Name: name, CSS: ProcessImports(css, "", nil)}, true, err
	}

	css, _ := Embedded(DefaultThemeName)
	return &Theme{Name: DefaultThemeName, CSS: ProcessImports(css, "", nil)}, false, err
}

// Load reads a theme file and inlines its imports.
func Load(name, path string) (*Theme, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	css, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &Theme{
		Name:    name,
		Path:    path,
		CSS:     ProcessImports(string(css), filepath.Dir(path), nil),
		ModTime: info.ModTime(),
	}, nil
}

// Reload rereads a user theme. Returns true if the CSS changed.
func (t *Theme) Reload() (bool, error) {
	if t.Bundled() {
		return false, nil
	}

	fresh, err := Load(t.Name, t.Path)
	if err != nil {
		return false, err
	}

	changed := fresh.CSS != t.CSS
	t.CSS = fresh.CSS
	t.ModTime = fresh.ModTime
	return changed, nil
}

// ProcessImports resolves and inlines @import statements in CSS.
// Imports are resolved relative to baseDir, falling back to the bundled
// partials and themes. The seen map prevents circular imports.
func ProcessImports(css string, baseDir string, seen map[string]bool) string {
	if seen == nil {
		seen = make(map[string]bool)
	}

	return importRegex.ReplaceAllStringFunc(css, func(match string) string {
		submatch := importRegex.FindStringSubmatch(match)
		if len(submatch) < 2 {
			return match
		}
		importPath := submatch[1]

		fullPath := importPath
		if !filepath.IsAbs(importPath) {
			fullPath = filepath.Join(baseDir, importPath)
		}

		if seen[fullPath] {
			return "/* circular import prevented: " + importPath + " */"
		}
		seen[fullPath] = true

		imported, err := os.ReadFile(fullPath)
		if err != nil {
			baseName := filepath.Base(importPath)
			if strings.HasPrefix(baseName, "_") {
				if partial, ok := embeddedPartial(baseName); ok {
					return "/* imported (embedded): " + importPath + " */\n" + partial
				}
			}
			if bundled, ok := Embedded(strings.TrimSuffix(baseName, ".css")); ok {
				return "/* imported (embedded): " + importPath + " */\n" + bundled
			}
			return "/* import failed: " + importPath + " */"
		}

		return "/* imported: " + importPath + " */\n" + ProcessImports(string(imported), filepath.Dir(fullPath), seen)
	})
}

// List returns bundled theme names followed by user themes not already
// bundled.
func List(themesDir string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range ListEmbedded() {
		seen[name] = true
		names = append(names, name)
	}

	if themesDir == "" {
		return names
	}
	entries, err := os.ReadDir(themesDir)
	if err != nil {
		return names
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") || filepath.Ext(name) != ".css" {
			continue
		}
		themeName := strings.TrimSuffix(name, ".css")
		if !seen[themeName] {
			seen[themeName] = true
			names = append(names, themeName)
		}
	}
	return names
}
