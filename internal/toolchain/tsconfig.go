package toolchain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-viper/mapstructure/v2"

	verrors "github.com/conneroisu/venok/internal/errors"
)

// CompilerOptions is the subset of tsconfig compilerOptions the build
// pipeline acts on. Path-valued options are absolute once parsed. Raw keeps
// every option as written (after extends resolution) for consumers that need
// the rest.
type CompilerOptions struct {
	OutDir                 string              `json:"outDir"`
	RootDir                string              `json:"rootDir"`
	BaseURL                string              `json:"baseUrl"`
	DeclarationDir         string              `json:"declarationDir"`
	TsBuildInfoFile        string              `json:"tsBuildInfoFile"`
	Paths                  map[string][]string `json:"paths"`
	Target                 string              `json:"target"`
	Module                 string              `json:"module"`
	JSX                    string              `json:"jsx"`
	Declaration            bool                `json:"declaration"`
	SourceMap              bool                `json:"sourceMap"`
	InlineSourceMap        bool                `json:"inlineSourceMap"`
	ExperimentalDecorators bool                `json:"experimentalDecorators"`
	EmitDecoratorMetadata  bool                `json:"emitDecoratorMetadata"`
	Incremental            bool                `json:"incremental"`
	Composite              bool                `json:"composite"`
	AllowJs                bool                `json:"allowJs"`
	NoEmit                 bool                `json:"noEmit"`
	RemoveComments         bool                `json:"removeComments"`

	Raw map[string]any `json:"-"`
}

// ProjectReference is an entry of the tsconfig "references" array.
type ProjectReference struct {
	Path string `json:"path"`
}

// ParsedCommandLine is a tsconfig file resolved into options and root files.
type ParsedCommandLine struct {
	ConfigPath        string
	Options           CompilerOptions
	FileNames         []string
	ProjectReferences []ProjectReference
}

// ConfigProvider reads tsconfig files relative to a workspace directory.
type ConfigProvider struct {
	Dir string
}

// NewConfigProvider creates a provider for the workspace at dir.
func NewConfigProvider(dir string) *ConfigProvider {
	return &ConfigProvider{Dir: dir}
}

// GetByConfigFilename parses the tsconfig at name, following extends chains
// and expanding files/include/exclude into absolute root file names.
func (p *ConfigProvider) GetByConfigFilename(name string) (*ParsedCommandLine, error) {
	configPath := name
	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(p.Dir, name)
	}
	if _, err := os.Stat(configPath); err != nil {
		return nil, verrors.Configuration(nil,
			"Could not find TypeScript configuration file %q. Please, ensure that you are running this command in the appropriate directory (inside Venok workspace).",
			name)
	}

	merged, err := p.readChain(configPath, map[string]bool{})
	if err != nil {
		return nil, verrors.Configuration(err, "failed to parse TypeScript configuration file %q", name)
	}

	var opts CompilerOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(merged.compilerOptions); err != nil {
		return nil, verrors.Configuration(err, "invalid compilerOptions in %q", name)
	}
	opts.Raw = merged.compilerOptions

	fileNames, err := expandFiles(merged, &opts)
	if err != nil {
		return nil, verrors.Configuration(err, "failed to expand source files of %q", name)
	}

	return &ParsedCommandLine{
		ConfigPath:        configPath,
		Options:           opts,
		FileNames:         fileNames,
		ProjectReferences: merged.references,
	}, nil
}

type tsconfigFile struct {
	Extends         any                `json:"extends"`
	CompilerOptions map[string]any     `json:"compilerOptions"`
	Files           []string           `json:"files"`
	Include         []string           `json:"include"`
	Exclude         []string           `json:"exclude"`
	References      []ProjectReference `json:"references"`
}

// resolvedConfig accumulates an extends chain. File lists keep the directory
// of the config that declared them because their patterns are relative to it.
type resolvedConfig struct {
	compilerOptions map[string]any
	files           []string
	filesDir        string
	include         []string
	includeDir      string
	exclude         []string
	excludeDir      string
	hasFiles        bool
	hasInclude      bool
	hasExclude      bool
	references      []ProjectReference
}

var pathOptions = []string{"outDir", "rootDir", "baseUrl", "declarationDir", "tsBuildInfoFile"}

func (p *ConfigProvider) readChain(path string, seen map[string]bool) (*resolvedConfig, error) {
	if seen[path] {
		return nil, fmt.Errorf("circular extends through %s", path)
	}
	seen[path] = true

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file tsconfigFile
	if err := json.Unmarshal(StripJSONC(data), &file); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)

	result := &resolvedConfig{compilerOptions: map[string]any{}}
	for _, base := range extendsList(file.Extends) {
		basePath, err := resolveExtends(dir, base)
		if err != nil {
			return nil, err
		}
		parent, err := p.readChain(basePath, seen)
		if err != nil {
			return nil, err
		}
		result.inherit(parent)
	}

	for key, value := range file.CompilerOptions {
		if s, ok := value.(string); ok && isPathOption(key) && !filepath.IsAbs(s) {
			value = filepath.Join(dir, s)
		}
		result.compilerOptions[key] = value
	}
	if file.Files != nil {
		result.files, result.filesDir, result.hasFiles = file.Files, dir, true
	}
	if file.Include != nil {
		result.include, result.includeDir, result.hasInclude = file.Include, dir, true
	}
	if file.Exclude != nil {
		result.exclude, result.excludeDir, result.hasExclude = file.Exclude, dir, true
	}
	if file.References != nil {
		result.references = make([]ProjectReference, 0, len(file.References))
		for _, ref := range file.References {
			refPath := ref.Path
			if !filepath.IsAbs(refPath) {
				refPath = filepath.Join(dir, refPath)
			}
			result.references = append(result.references, ProjectReference{Path: refPath})
		}
	}
	if !result.hasInclude && !result.hasFiles {
		result.includeDir = dir
	}
	if !result.hasExclude {
		result.excludeDir = dir
	}
	if result.filesDir == "" {
		result.filesDir = dir
	}
	return result, nil
}

func (r *resolvedConfig) inherit(parent *resolvedConfig) {
	for k, v := range parent.compilerOptions {
		r.compilerOptions[k] = v
	}
	if parent.hasFiles {
		r.files, r.filesDir, r.hasFiles = parent.files, parent.filesDir, true
	}
	if parent.hasInclude {
		r.include, r.includeDir, r.hasInclude = parent.include, parent.includeDir, true
	}
	if parent.hasExclude {
		r.exclude, r.excludeDir, r.hasExclude = parent.exclude, parent.excludeDir, true
	}
}

func isPathOption(key string) bool {
	for _, k := range pathOptions {
		if k == key {
			return true
		}
	}
	return false
}

func extendsList(v any) []string {
	switch e := v.(type) {
	case string:
		return []string{e}
	case []any:
		out := make([]string, 0, len(e))
		for _, item := range e {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// resolveExtends finds a base config either relative to dir or as a package
// under node_modules, walking up from dir.
func resolveExtends(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") {
		candidate := name
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(dir, name)
		}
		for _, c := range []string{candidate, candidate + ".json"} {
			if fileExists(c) {
				return c, nil
			}
		}
		return "", fmt.Errorf("extended config %q not found", name)
	}

	for current := dir; ; current = filepath.Dir(current) {
		base := filepath.Join(current, "node_modules", name)
		for _, c := range []string{base, base + ".json", filepath.Join(base, "tsconfig.json")} {
			if fileExists(c) {
				return c, nil
			}
		}
		if filepath.Dir(current) == current {
			break
		}
	}
	return "", fmt.Errorf("extended config %q not found in node_modules", name)
}

var defaultExcludes = []string{"node_modules", "bower_components", "jspm_packages"}

func expandFiles(cfg *resolvedConfig, opts *CompilerOptions) ([]string, error) {
	seen := map[string]bool{}
	var result []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			result = append(result, path)
		}
	}

	for _, f := range cfg.files {
		path := f
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.filesDir, f)
		}
		add(filepath.Clean(path))
	}

	include := cfg.include
	if !cfg.hasInclude && !cfg.hasFiles {
		include = []string{"**/*"}
	}
	if len(include) == 0 {
		return result, nil
	}

	exclude := cfg.exclude
	excludeDir := cfg.excludeDir
	if !cfg.hasExclude {
		exclude = append([]string(nil), defaultExcludes...)
		if opts.OutDir != "" {
			if rel, err := filepath.Rel(excludeDir, opts.OutDir); err == nil {
				exclude = append(exclude, filepath.ToSlash(rel))
			}
		}
		if opts.DeclarationDir != "" {
			if rel, err := filepath.Rel(excludeDir, opts.DeclarationDir); err == nil {
				exclude = append(exclude, filepath.ToSlash(rel))
			}
		}
	}

	var matched []string
	fsys := os.DirFS(cfg.includeDir)
	for _, pattern := range include {
		pattern = normalizeIncludePattern(pattern)
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("include pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			abs := filepath.Join(cfg.includeDir, filepath.FromSlash(m))
			if !supportedExtension(abs, opts.AllowJs) || excluded(excludeDir, abs, exclude) {
				continue
			}
			matched = append(matched, abs)
		}
	}
	sort.Strings(matched)
	for _, m := range matched {
		add(m)
	}
	return result, nil
}

// normalizeIncludePattern treats a pattern whose last segment has neither an
// extension nor a wildcard as a directory.
func normalizeIncludePattern(pattern string) string {
	pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
	last := pattern[strings.LastIndex(pattern, "/")+1:]
	if !strings.ContainsAny(last, ".*?") {
		return strings.TrimSuffix(pattern, "/") + "/**/*"
	}
	return pattern
}

func excluded(dir, abs string, patterns []string) bool {
	rel, err := filepath.Rel(dir, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range patterns {
		p = strings.TrimSuffix(strings.TrimPrefix(filepath.ToSlash(p), "./"), "/")
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p+"/**", rel); ok {
			return true
		}
	}
	return false
}

func supportedExtension(path string, allowJs bool) bool {
	switch {
	case strings.HasSuffix(path, ".d.ts"), strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".tsx"):
		return true
	case allowJs && (strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".jsx")):
		return true
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
