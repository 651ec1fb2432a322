// Package pathalias rewrites tsconfig "paths" aliases in import and export
// declarations to relative specifiers at compile time.
package pathalias

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultExtensions are tried when resolving an alias target.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx"}

type mappingEntry struct {
	pattern string
	paths   []string
}

// Matcher resolves module specifiers through tsconfig path mappings the way
// tsconfig-paths does: patterns with the longest prefix before "*" are tried
// first, each substitution in order, and every candidate is probed as a
// file, with each extension, through package.json "main", and as a
// directory index.
type Matcher struct {
	entries    []mappingEntry
	Extensions []string
}

// NewMatcher builds a matcher for an absolute baseURL. With addMatchAll a
// catch-all "*" mapping to baseURL/* is appended unless paths defines one.
func NewMatcher(baseURL string, paths map[string][]string, addMatchAll bool) *Matcher {
	keys := make([]string, 0, len(paths))
	for k := range paths {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	sort.SliceStable(keys, func(i, j int) bool {
		return prefixLength(keys[i]) > prefixLength(keys[j])
	})

	entries := make([]mappingEntry, 0, len(keys)+1)
	for _, key := range keys {
		resolved := make([]string, 0, len(paths[key]))
		for _, p := range paths[key] {
			if !filepath.IsAbs(p) {
				p = filepath.Join(baseURL, p)
			}
			resolved = append(resolved, p)
		}
		entries = append(entries, mappingEntry{pattern: key, paths: resolved})
	}
	if _, ok := paths["*"]; !ok && addMatchAll {
		entries = append(entries, mappingEntry{
			pattern: "*",
			paths:   []string{strings.TrimSuffix(baseURL, string(filepath.Separator)) + string(filepath.Separator) + "*"},
		})
	}
	return &Matcher{entries: entries, Extensions: DefaultExtensions}
}

// prefixLength is the length before "*". Exact patterns rank as zero.
func prefixLength(pattern string) int {
	if i := strings.Index(pattern, "*"); i > 0 {
		return i
	}
	return 0
}

// Match returns the resolved path of specifier, without extension for
// extension and index candidates. Relative specifiers never match.
func (m *Matcher) Match(specifier string) (string, bool) {
	if specifier == "" || specifier[0] == '.' {
		return "", false
	}
	for _, entry := range m.entries {
		star, ok := matchStar(entry.pattern, specifier)
		if !ok {
			continue
		}
		for _, physical := range entry.paths {
			candidate := strings.Replace(physical, "*", star, 1)
			if resolved, ok := m.probe(candidate); ok {
				return resolved, true
			}
		}
	}
	return "", false
}

func matchStar(pattern, search string) (string, bool) {
	if pattern == search {
		return "", true
	}
	i := strings.Index(pattern, "*")
	if i < 0 {
		return "", false
	}
	prefix, suffix := pattern[:i], pattern[i+1:]
	if len(search) < len(prefix)+len(suffix) ||
		!strings.HasPrefix(search, prefix) || !strings.HasSuffix(search, suffix) {
		return "", false
	}
	return search[len(prefix) : len(search)-len(suffix)], true
}

func (m *Matcher) probe(candidate string) (string, bool) {
	if isFile(candidate) {
		return candidate, true
	}
	for _, ext := range m.Extensions {
		if isFile(candidate + ext) {
			return candidate, true
		}
	}
	if main, ok := packageMain(candidate); ok {
		for _, path := range append([]string{main}, withExtensions(main, m.Extensions)...) {
			if isFile(path) {
				return removeExtension(main), true
			}
		}
	}
	index := filepath.Join(candidate, "index")
	for _, ext := range m.Extensions {
		if isFile(index + ext) {
			return index, true
		}
	}
	return "", false
}

func packageMain(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return "", false
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil || pkg.Main == "" {
		return "", false
	}
	return filepath.Join(dir, pkg.Main), true
}

func withExtensions(path string, exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		out = append(out, path+ext)
	}
	return out
}

func removeExtension(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
