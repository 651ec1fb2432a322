// Package config models the resolved workspace configuration consumed by the
// build orchestration core.
//
// The workspace file (venok-cli.json and friends) is JSON. It is decoded with
// case-preserving JSON parsing and mapstructure decode hooks so that plugin
// options keep their exact key spelling; tool-level settings such as the log
// level are handled by viper in the cmd package instead. By the time a Config
// reaches a compiler driver every recognized option carries a value.
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
)

// BuilderType selects the compiler driver family.
type BuilderType string

const (
	BuilderTsc BuilderType = "tsc"
	BuilderSwc BuilderType = "swc"
)

// AvailableBuilders lists the builder types a configuration may select.
var AvailableBuilders = []BuilderType{BuilderTsc, BuilderSwc}

// Valid reports whether b is a known builder type.
func (b BuilderType) Valid() bool {
	for _, known := range AvailableBuilders {
		if b == known {
			return true
		}
	}
	return false
}

// BuilderOptions holds driver-specific builder settings. The swc fields
// override the derived swc command line options when set.
type BuilderOptions struct {
	ConfigPath string `json:"configPath,omitempty" yaml:"configPath,omitempty"`
	SwcrcPath  string `json:"swcrcPath,omitempty" yaml:"swcrcPath,omitempty"`

	OutDir            string   `json:"outDir,omitempty" yaml:"outDir,omitempty"`
	Filenames         []string `json:"filenames,omitempty" yaml:"filenames,omitempty"`
	Extensions        []string `json:"extensions,omitempty" yaml:"extensions,omitempty"`
	Sync              bool     `json:"sync,omitempty" yaml:"sync,omitempty"`
	CopyFiles         bool     `json:"copyFiles,omitempty" yaml:"copyFiles,omitempty"`
	IncludeDotfiles   bool     `json:"includeDotfiles,omitempty" yaml:"includeDotfiles,omitempty"`
	Quiet             bool     `json:"quiet,omitempty" yaml:"quiet,omitempty"`
	StripLeadingPaths *bool    `json:"stripLeadingPaths,omitempty" yaml:"stripLeadingPaths,omitempty"`
}

// Builder is the builder descriptor. A bare string in the file decodes to {type}.
type Builder struct {
	Type    BuilderType    `json:"type" yaml:"type"`
	Options BuilderOptions `json:"options,omitempty" yaml:"options,omitempty"`
}

// AssetEntry describes files copied verbatim into the output directory.
// A bare glob string decodes to {include}.
type AssetEntry struct {
	Include     string `json:"include" yaml:"include"`
	Exclude     string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	OutDir      string `json:"outDir,omitempty" yaml:"outDir,omitempty"`
	Flat        bool   `json:"flat,omitempty" yaml:"flat,omitempty"`
	WatchAssets bool   `json:"watchAssets,omitempty" yaml:"watchAssets,omitempty"`
}

// CompilerOptions is the compilerOptions section of the workspace file.
type CompilerOptions struct {
	TsConfigPath  string        `json:"tsConfigPath,omitempty" yaml:"tsConfigPath,omitempty"`
	Builder       Builder       `json:"builder" yaml:"builder"`
	TypeCheck     bool          `json:"typeCheck" yaml:"typeCheck"`
	Plugins       []PluginEntry `json:"plugins" yaml:"plugins"`
	Assets        []AssetEntry  `json:"assets" yaml:"assets"`
	WatchAssets   bool          `json:"watchAssets" yaml:"watchAssets"`
	DeleteOutDir  bool          `json:"deleteOutDir" yaml:"deleteOutDir"`
	ManualRestart bool          `json:"manualRestart" yaml:"manualRestart"`
}

// ProjectConfig holds the per-application overrides of a monorepo.
type ProjectConfig struct {
	Type            string         `json:"type,omitempty" yaml:"type,omitempty"`
	Root            string         `json:"root,omitempty" yaml:"root,omitempty"`
	EntryFile       string         `json:"entryFile,omitempty" yaml:"entryFile,omitempty"`
	SourceRoot      string         `json:"sourceRoot,omitempty" yaml:"sourceRoot,omitempty"`
	CompilerOptions map[string]any `json:"compilerOptions,omitempty" yaml:"compilerOptions,omitempty"`
}

// Config is the fully populated workspace configuration.
type Config struct {
	Language        string                   `json:"language" yaml:"language"`
	SourceRoot      string                   `json:"sourceRoot" yaml:"sourceRoot"`
	Collection      string                   `json:"collection" yaml:"collection"`
	EntryFile       string                   `json:"entryFile" yaml:"entryFile"`
	Exec            string                   `json:"exec" yaml:"exec"`
	Monorepo        bool                     `json:"monorepo" yaml:"monorepo"`
	Projects        map[string]ProjectConfig `json:"projects" yaml:"projects"`
	CompilerOptions CompilerOptions          `json:"compilerOptions" yaml:"compilerOptions"`
	GenerateOptions map[string]any           `json:"generateOptions" yaml:"generateOptions"`

	// rawCompilerOptions keeps the undecoded root compilerOptions so per-project
	// overrides can be applied key by key.
	rawCompilerOptions map[string]any
}

// ForApp returns the configuration as seen by one application: a project's
// sourceRoot and each key of its compilerOptions replace the root values.
// An empty or unknown app name yields a copy of the root configuration.
func (c *Config) ForApp(app string) (*Config, error) {
	resolved := *c
	project, ok := c.Projects[app]
	if app == "" || !ok {
		return &resolved, nil
	}
	if project.SourceRoot != "" {
		resolved.SourceRoot = project.SourceRoot
	}
	if project.EntryFile != "" {
		resolved.EntryFile = project.EntryFile
	}
	if len(project.CompilerOptions) > 0 {
		merged := maps.Clone(c.rawCompilerOptions)
		if merged == nil {
			merged = make(map[string]any)
		}
		maps.Copy(merged, project.CompilerOptions)
		var opts CompilerOptions
		if err := decode(merged, &opts); err != nil {
			return nil, fmt.Errorf("project %q compilerOptions: %w", app, err)
		}
		if err := validateCompilerOptions(&opts); err != nil {
			return nil, fmt.Errorf("project %q: %w", app, err)
		}
		resolved.CompilerOptions = opts
		resolved.rawCompilerOptions = merged
	}
	return &resolved, nil
}

// Plugins returns the plugin entries effective for app.
func (c *Config) Plugins(app string) []PluginEntry {
	resolved, err := c.ForApp(app)
	if err != nil {
		return c.CompilerOptions.Plugins
	}
	return resolved.CompilerOptions.Plugins
}

// SourceRootFor returns the source root effective for app.
func (c *Config) SourceRootFor(app string) string {
	if p, ok := c.Projects[app]; ok && app != "" && p.SourceRoot != "" {
		return p.SourceRoot
	}
	return c.SourceRoot
}

// WithPlugins builds the minimal configuration a forked type-checker needs:
// a source root and the plugin list, attached to app when one is named.
func WithPlugins(sourceRoot, app string, plugins []PluginEntry) *Config {
	cfg := Defaults("")
	cfg.SourceRoot = sourceRoot
	raw := map[string]any{"plugins": pluginsToRaw(plugins)}
	if app == "" {
		cfg.CompilerOptions.Plugins = plugins
		cfg.rawCompilerOptions = raw
		return cfg
	}
	cfg.Projects = map[string]ProjectConfig{
		app: {SourceRoot: sourceRoot, CompilerOptions: raw},
	}
	return cfg
}

func pluginsToRaw(plugins []PluginEntry) []any {
	raw := make([]any, 0, len(plugins))
	for _, p := range plugins {
		if p.Options == nil {
			raw = append(raw, p.Name)
			continue
		}
		raw = append(raw, map[string]any{"name": p.Name, "options": p.Options})
	}
	return raw
}

func validateCompilerOptions(opts *CompilerOptions) error {
	if !opts.Builder.Type.Valid() {
		return fmt.Errorf("invalid builder %q (available builders: %v)", opts.Builder.Type, AvailableBuilders)
	}
	for i, p := range opts.Plugins {
		if p.Name == "" {
			return fmt.Errorf("plugins[%d] has no name", i)
		}
	}
	return nil
}

// decode converts raw JSON-shaped data into out, accepting the string
// shorthand forms of builders, plugins and assets.
func decode(raw any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			shorthandHook(reflect.TypeOf(Builder{}), "type"),
			shorthandHook(reflect.TypeOf(PluginEntry{}), "name"),
			shorthandHook(reflect.TypeOf(AssetEntry{}), "include"),
		),
		TagName:          "json",
		WeaklyTypedInput: false,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

// shorthandHook expands a bare string into a single-key object for target.
func shorthandHook(target reflect.Type, key string) mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != target || from.Kind() != reflect.String {
			return data, nil
		}
		return map[string]any{key: data}, nil
	}
}

// clone deep-copies a JSON-shaped value through a marshal round trip.
func clone(v map[string]any) map[string]any {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return maps.Clone(v)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return maps.Clone(v)
	}
	return out
}
