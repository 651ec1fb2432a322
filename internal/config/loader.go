package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"

	verrors "github.com/conneroisu/venok/internal/errors"
)

// DefaultConfigNames are probed in order when no explicit file is given.
var DefaultConfigNames = []string{
	"venok-cli.json",
	".venokcli.json",
	".venok-cli.json",
	"venok.json",
}

const (
	tsconfigDefault      = "tsconfig.json"
	tsconfigBuildDefault = "tsconfig.build.json"
)

// Loader reads workspace configuration files relative to Dir.
type Loader struct {
	Dir   string
	Names []string
}

// NewLoader creates a Loader for the workspace rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir, Names: DefaultConfigNames}
}

// Load reads the workspace file and fills in defaults. An explicit name must
// exist; otherwise the first default name found is used, and a workspace with
// no file at all gets the defaults.
func (l *Loader) Load(name string) (*Config, error) {
	var (
		data []byte
		err  error
	)
	if name != "" {
		data, err = os.ReadFile(l.abs(name))
		if err != nil {
			return nil, verrors.Configuration(err, "failed to read configuration file %q", name)
		}
	} else {
		for _, candidate := range l.Names {
			data, err = os.ReadFile(l.abs(candidate))
			if err == nil {
				name = candidate
				break
			}
		}
		if data == nil {
			return Defaults(l.Dir), nil
		}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, verrors.Configuration(err, "failed to parse configuration file %q", name)
	}
	cfg, err := fromRaw(l.Dir, raw)
	if err != nil {
		return nil, verrors.Configuration(err, "invalid configuration file %q", name)
	}
	return cfg, nil
}

func (l *Loader) abs(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.Dir, name)
}

// Defaults returns the configuration used when no workspace file exists.
func Defaults(dir string) *Config {
	cfg, err := fromRaw(dir, nil)
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

func defaultRaw(dir string) map[string]any {
	return map[string]any{
		"language":   "ts",
		"sourceRoot": "src",
		"collection": "@venok/schematics",
		"entryFile":  "main",
		"exec":       "node",
		"monorepo":   false,
		"projects":   map[string]any{},
		"compilerOptions": map[string]any{
			"builder": map[string]any{
				"type":    string(BuilderTsc),
				"options": map[string]any{"configPath": DefaultTsconfigPath(dir)},
			},
			"typeCheck":     false,
			"plugins":       []any{},
			"assets":        []any{},
			"watchAssets":   false,
			"deleteOutDir":  false,
			"manualRestart": false,
		},
		"generateOptions": map[string]any{},
	}
}

// fromRaw overlays the file's top-level keys, and separately its
// compilerOptions keys, onto the defaults and decodes the result.
func fromRaw(dir string, file map[string]any) (*Config, error) {
	merged := defaultRaw(dir)
	defaultCompiler := merged["compilerOptions"].(map[string]any)
	maps.Copy(merged, clone(file))
	if fileCompiler, ok := merged["compilerOptions"].(map[string]any); ok && file != nil {
		compiler := maps.Clone(defaultCompiler)
		maps.Copy(compiler, fileCompiler)
		merged["compilerOptions"] = compiler
	}

	cfg := &Config{}
	if err := decode(merged, cfg); err != nil {
		return nil, err
	}
	if err := validateCompilerOptions(&cfg.CompilerOptions); err != nil {
		return nil, err
	}
	cfg.rawCompilerOptions, _ = merged["compilerOptions"].(map[string]any)
	return cfg, nil
}

// DefaultTsconfigPath prefers tsconfig.build.json when it exists in dir.
func DefaultTsconfigPath(dir string) string {
	if _, err := os.Stat(filepath.Join(dir, tsconfigBuildDefault)); err == nil {
		return tsconfigBuildDefault
	}
	return tsconfigDefault
}
