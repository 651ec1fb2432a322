package compiler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/toolchain"
)

func TestSwcDefaults(t *testing.T) {
	opts := SwcDefaults(nil, "", "/work")

	assert.Equal(t, SwcCliOptions{
		OutDir:            "dist",
		Filenames:         []string{"src"},
		Extensions:        []string{".js", ".ts"},
		StripLeadingPaths: true,
	}, opts.Cli)
	assert.Equal(t, map[string]any{"type": "commonjs"}, opts.Swcrc["module"])
	assert.Equal(t, false, opts.Swcrc["minify"])
	assert.NotContains(t, opts.Swcrc, "sourceMaps")

	jsc := opts.Swcrc["jsc"].(map[string]any)
	assert.Equal(t, true, jsc["keepClassNames"])
	assert.Equal(t, map[string]any{"syntax": "typescript", "decorators": true, "dynamicImport": true}, jsc["parser"])
	assert.Equal(t, true, jsc["transform"].(map[string]any)["legacyDecorator"])
	assert.Equal(t, true, jsc["transform"].(map[string]any)["decoratorMetadata"])
	assert.NotContains(t, jsc, "baseUrl")
	assert.NotContains(t, jsc, "paths")
}

func TestSwcDefaultsFromTsconfig(t *testing.T) {
	cwd := filepath.Join(string(filepath.Separator), "work")
	opts := SwcDefaults(&toolchain.CompilerOptions{
		OutDir:    filepath.Join(cwd, "build", "api"),
		BaseURL:   cwd,
		Paths:     map[string][]string{"@app/*": {"src/app/*"}},
		SourceMap: true,
	}, "apps/api/src", cwd)

	assert.Equal(t, "build/api", opts.Cli.OutDir)
	assert.Equal(t, []string{"apps/api/src"}, opts.Cli.Filenames)
	assert.Equal(t, true, opts.Swcrc["sourceMaps"])
	jsc := opts.Swcrc["jsc"].(map[string]any)
	assert.Equal(t, cwd, jsc["baseUrl"])
	assert.Equal(t, map[string]any{"@app/*": []any{"src/app/*"}}, jsc["paths"])

	inline := SwcDefaults(&toolchain.CompilerOptions{InlineSourceMap: true}, "src", cwd)
	assert.Equal(t, "inline", inline.Swcrc["sourceMaps"])

	outside := SwcDefaults(&toolchain.CompilerOptions{OutDir: filepath.Join(string(filepath.Separator), "elsewhere", "out")}, "src", cwd)
	assert.Equal(t, filepath.ToSlash(filepath.Join(string(filepath.Separator), "elsewhere", "out")), outside.Cli.OutDir)
}

func TestSwcCliArgs(t *testing.T) {
	opts := SwcCliOptions{
		OutDir:            "dist",
		Filenames:         []string{"src"},
		Extensions:        []string{".js", ".ts"},
		Watch:             true,
		CopyFiles:         true,
		StripLeadingPaths: true,
	}
	assert.Equal(t, []string{
		"src", "--out-dir", "dist", "--extensions", ".js,.ts",
		"--copy-files", "--watch", "--strip-leading-paths",
	}, opts.Args())
}

func TestLoadSwcrc(t *testing.T) {
	t.Run("missing default file is empty", func(t *testing.T) {
		rc, err := LoadSwcrc(t.TempDir(), "")
		require.NoError(t, err)
		assert.Empty(t, rc)
	})

	t.Run("malformed default file is empty", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{".swcrc": "{not json"})
		rc, err := LoadSwcrc(dir, "")
		require.NoError(t, err)
		assert.Empty(t, rc)
	})

	t.Run("default file with comments", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{".swcrc": `{
			// loose target
			"jsc": {"target": "es2022",},
		}`})
		rc, err := LoadSwcrc(dir, "")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"jsc": map[string]any{"target": "es2022"}}, rc)
	})

	t.Run("explicit missing file is a configuration error", func(t *testing.T) {
		_, err := LoadSwcrc(t.TempDir(), "config/.swcrc")
		require.Error(t, err)
		assert.True(t, verrors.IsKind(err, verrors.KindConfiguration))
		assert.Contains(t, err.Error(), `"config/.swcrc"`)
	})

	t.Run("explicit malformed file is a configuration error", func(t *testing.T) {
		dir := t.TempDir()
		writeTree(t, dir, map[string]string{"swc.json": "[1,"})
		_, err := LoadSwcrc(dir, "swc.json")
		require.Error(t, err)
		assert.True(t, verrors.IsKind(err, verrors.KindConfiguration))
	})
}

func TestResolveSwcOptionsMergesRcFile(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"venok-cli.json": `{"compilerOptions": {"builder": {"type": "swc", "options": {"swcrcPath": "swc/.swcrc"}}}}`,
		"swc/.swcrc":     `{"jsc": {"parser": {"tsx": true}, "target": "es2022"}, "minify": true}`,
	})
	opts, err := ResolveSwcOptions(loadConfig(t, env.dir), "", env.dir, nil)
	require.NoError(t, err)

	jsc := opts.Swcrc["jsc"].(map[string]any)
	assert.Equal(t, "es2022", jsc["target"])
	assert.Equal(t, map[string]any{"syntax": "typescript", "decorators": true, "dynamicImport": true, "tsx": true}, jsc["parser"])
	assert.Equal(t, true, jsc["keepClassNames"])
	assert.Equal(t, true, opts.Swcrc["minify"])
}

func TestResolveSwcOptionsAppliesBuilderCliOptions(t *testing.T) {
	env := newTestEnv(t, map[string]string{
		"venok-cli.json": `{"compilerOptions": {"builder": {"type": "swc", "options": {
			"outDir": "build",
			"extensions": [".ts"],
			"sync": true,
			"copyFiles": true,
			"includeDotfiles": true,
			"quiet": true,
			"stripLeadingPaths": false
		}}}}`,
	})
	opts, err := ResolveSwcOptions(loadConfig(t, env.dir), "", env.dir, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"src", "--out-dir", "build", "--extensions", ".ts",
		"--sync", "--copy-files", "--include-dotfiles", "--quiet",
	}, opts.Cli.Args())
}
