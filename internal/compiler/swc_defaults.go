package compiler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/toolchain"
)

// DefaultSwcrc is read from the workspace when no swcrcPath is configured.
const DefaultSwcrc = ".swcrc"

// DefaultOutDir is used when tsconfig sets no outDir.
const DefaultOutDir = "dist"

// SwcCliOptions are the swc command line settings.
type SwcCliOptions struct {
	OutDir            string
	Filenames         []string
	Extensions        []string
	Sync              bool
	CopyFiles         bool
	IncludeDotfiles   bool
	Quiet             bool
	Watch             bool
	StripLeadingPaths bool
}

// Args renders the options as swc arguments.
func (o SwcCliOptions) Args() []string {
	args := append([]string{}, o.Filenames...)
	args = append(args, "--out-dir", o.OutDir)
	if len(o.Extensions) > 0 {
		args = append(args, "--extensions", strings.Join(o.Extensions, ","))
	}
	flags := []struct {
		on   bool
		flag string
	}{
		{o.Sync, "--sync"},
		{o.CopyFiles, "--copy-files"},
		{o.IncludeDotfiles, "--include-dotfiles"},
		{o.Quiet, "--quiet"},
		{o.Watch, "--watch"},
		{o.StripLeadingPaths, "--strip-leading-paths"},
	}
	for _, f := range flags {
		if f.on {
			args = append(args, f.flag)
		}
	}
	return args
}

// apply overlays the command line settings from the builder options.
func (o *SwcCliOptions) apply(b config.BuilderOptions) {
	if b.OutDir != "" {
		o.OutDir = filepath.ToSlash(b.OutDir)
	}
	if len(b.Filenames) > 0 {
		o.Filenames = b.Filenames
	}
	if len(b.Extensions) > 0 {
		o.Extensions = b.Extensions
	}
	o.Sync = o.Sync || b.Sync
	o.CopyFiles = o.CopyFiles || b.CopyFiles
	o.IncludeDotfiles = o.IncludeDotfiles || b.IncludeDotfiles
	o.Quiet = o.Quiet || b.Quiet
	if b.StripLeadingPaths != nil {
		o.StripLeadingPaths = *b.StripLeadingPaths
	}
}

// SwcOptions are the computed swc settings for one application.
type SwcOptions struct {
	// Swcrc is the .swcrc-shaped transform configuration.
	Swcrc map[string]any
	Cli   SwcCliOptions
}

// SwcDefaults derives swc settings from the tsconfig compiler options and the
// application's source root.
func SwcDefaults(ts *toolchain.CompilerOptions, sourceRoot, cwd string) SwcOptions {
	if ts == nil {
		ts = &toolchain.CompilerOptions{}
	}
	jsc := map[string]any{
		"target": "es2021",
		"parser": map[string]any{
			"syntax":        "typescript",
			"decorators":    true,
			"dynamicImport": true,
		},
		"transform": map[string]any{
			"legacyDecorator":         true,
			"decoratorMetadata":       true,
			"useDefineForClassFields": false,
		},
		"keepClassNames": true,
	}
	if ts.BaseURL != "" {
		jsc["baseUrl"] = ts.BaseURL
	}
	if len(ts.Paths) > 0 {
		paths := make(map[string]any, len(ts.Paths))
		for key, targets := range ts.Paths {
			list := make([]any, len(targets))
			for i, t := range targets {
				list[i] = t
			}
			paths[key] = list
		}
		jsc["paths"] = paths
	}

	swcrc := map[string]any{
		"module": map[string]any{"type": "commonjs"},
		"jsc":    jsc,
		"minify": false,
	}
	switch {
	case ts.SourceMap:
		swcrc["sourceMaps"] = true
	case ts.InlineSourceMap:
		swcrc["sourceMaps"] = "inline"
	}

	outDir := DefaultOutDir
	if ts.OutDir != "" {
		outDir = ts.OutDir
		if rel, err := filepath.Rel(cwd, ts.OutDir); err == nil && filepath.IsAbs(ts.OutDir) && !strings.HasPrefix(rel, "..") {
			outDir = rel
		}
	}
	if sourceRoot == "" {
		sourceRoot = "src"
	}

	return SwcOptions{
		Swcrc: swcrc,
		Cli: SwcCliOptions{
			OutDir:            filepath.ToSlash(outDir),
			Filenames:         []string{filepath.ToSlash(sourceRoot)},
			Extensions:        []string{".js", ".ts"},
			StripLeadingPaths: true,
		},
	}
}

// LoadSwcrc reads the swc rc file. An explicitly configured path must exist
// and parse; a missing default file yields an empty override.
func LoadSwcrc(cwd, explicitPath string) (map[string]any, error) {
	name := explicitPath
	if name == "" {
		name = DefaultSwcrc
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err == nil {
		var rc map[string]any
		if err = json.Unmarshal(toolchain.StripJSONC(data), &rc); err == nil {
			if rc == nil {
				rc = map[string]any{}
			}
			return rc, nil
		}
	}
	if explicitPath != "" {
		return nil, verrors.Configuration(err,
			"Failed to load %q. Please, check if the file exists and is valid JSON.", explicitPath)
	}
	return map[string]any{}, nil
}

// ResolveSwcOptions computes defaults for appName and merges the rc file
// over them.
func ResolveSwcOptions(cfg *config.Config, appName, cwd string, ts *toolchain.CompilerOptions) (SwcOptions, error) {
	resolved, err := cfg.ForApp(appName)
	if err != nil {
		return SwcOptions{}, err
	}
	opts := SwcDefaults(ts, resolved.SourceRoot, cwd)
	opts.Cli.apply(resolved.CompilerOptions.Builder.Options)
	rc, err := LoadSwcrc(cwd, resolved.CompilerOptions.Builder.Options.SwcrcPath)
	if err != nil {
		return SwcOptions{}, err
	}
	merged, _ := DeepMerge(opts.Swcrc, rc).(map[string]any)
	opts.Swcrc = merged
	return opts, nil
}
