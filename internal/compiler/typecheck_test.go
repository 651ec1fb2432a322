package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/plugins"
	"github.com/conneroisu/venok/internal/toolchain"
	"github.com/conneroisu/venok/internal/ui"
)

func TestTypeCheckArgsRoundTrip(t *testing.T) {
	in := TypeCheckArgs{
		TsconfigPath: "apps/api/tsconfig.app.json",
		AppName:      "api",
		SourceRoot:   "apps/api/src",
		Plugins: []config.PluginEntry{
			{Name: "@venok/swagger"},
			{Name: "./tools/meta", Options: map[string]any{"introspect": true}},
		},
	}
	args, err := in.Args()
	require.NoError(t, err)
	require.Len(t, args, 4)
	assert.Equal(t, `["@venok/swagger",{"name":"./tools/meta","options":{"introspect":true}}]`, args[3])

	out, err := ParseTypeCheckArgs(args)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTypeCheckArgsWithoutApp(t *testing.T) {
	args, err := TypeCheckArgs{TsconfigPath: "tsconfig.json", SourceRoot: "src"}.Args()
	require.NoError(t, err)
	assert.Equal(t, []string{"tsconfig.json", "undefined", "src", "[]"}, args)

	out, err := ParseTypeCheckArgs(args)
	require.NoError(t, err)
	assert.Equal(t, "", out.AppName)
	assert.Empty(t, out.Plugins)

	cfg := out.Config()
	resolved, err := cfg.ForApp("")
	require.NoError(t, err)
	assert.Equal(t, "src", resolved.SourceRoot)
}

func TestParseTypeCheckArgsRejectsBadInput(t *testing.T) {
	_, err := ParseTypeCheckArgs([]string{"tsconfig.json", "undefined"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 4 arguments")

	_, err = ParseTypeCheckArgs([]string{"tsconfig.json", "undefined", "src", "{not json"})
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindConfiguration))
}

// fileCounter records the base names of the files it visits.
type fileCounter struct{ files []string }

func (f *fileCounter) Visit(sf *toolchain.SourceFile) {
	f.files = append(f.files, filepath.Base(sf.FileName))
}

func (f *fileCounter) Collect() map[string]any {
	return map[string]any{"files": f.files}
}

func metadataWorkspace() map[string]string {
	return map[string]string{
		"venok-cli.json": `{"compilerOptions": {"plugins": ["meta"]}}`,
		"tsconfig.json":  `{"compilerOptions": {"outDir": "dist"}, "include": ["src"]}`,
		"src/main.ts":    "export const x = 1;\n",
	}
}

func registerMeta(registry *plugins.Registry) {
	registry.Register("meta", &plugins.Module{
		ReadonlyVisitor: func(map[string]any) plugins.ReadonlyVisitor { return &fileCounter{} },
	})
}

func TestForkedTypeCheckerGeneratesMetadata(t *testing.T) {
	env := newTestEnv(t, metadataWorkspace())
	registerMeta(env.registry)
	fakeBin(t, env.dir, "tsc", cleanTsc)

	err := NewForkedTypeChecker(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", false)
	require.NoError(t, err)

	assert.Contains(t, env.out.String(), ui.FoundNoIssuesGeneratingMetadata)
	metadata := readFile(t, filepath.Join(env.dir, "src", plugins.MetadataFileName))
	assert.Contains(t, metadata, `"meta"`)
	assert.Contains(t, metadata, `"main.ts"`)
}

func TestForkedTypeCheckerSkipsMetadataWithoutVisitors(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	fakeBin(t, env.dir, "tsc", cleanTsc)

	err := NewForkedTypeChecker(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", false)
	require.NoError(t, err)

	assert.Contains(t, env.out.String(), ui.FoundNoIssuesMetadataSkipped)
	assert.NoFileExists(t, filepath.Join(env.dir, "src", plugins.MetadataFileName))
}

func TestForkedTypeCheckerReturnsPipelineErrors(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	t.Setenv("PATH", t.TempDir())

	err := NewForkedTypeChecker(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", false)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindToolchainMissing))
}

func TestForkedTypeCheckerWatchLogsPipelineErrors(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	t.Setenv("PATH", t.TempDir())

	err := NewForkedTypeChecker(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", true)
	require.NoError(t, err)
	assert.Contains(t, env.errOut.String(), toolchain.InstallTypeScript)
}

func TestForkedTypeCheckerWatchReportsEveryCycle(t *testing.T) {
	env := newTestEnv(t, metadataWorkspace())
	registerMeta(env.registry)
	fakeBin(t, env.dir, "tsc", `echo "src/main.ts(1,14): error TS2322: Type 'string' is not assignable to type 'number'."
echo "Found 1 error. Watching for file changes."
exec sleep 60
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewForkedTypeChecker(env.base).Run(ctx, loadConfig(t, env.dir), "tsconfig.json", "", true)
	}()

	metadataPath := filepath.Join(env.dir, "src", plugins.MetadataFileName)
	require.Eventually(t, func() bool {
		_, err := os.Stat(metadataPath)
		return err == nil
	}, 10*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("type checker did not stop")
	}
	assert.Contains(t, env.out.String(), ui.GeneratingMetadata)
	assert.Contains(t, env.out.String(), "Found 1 error(s). Watching for file changes.")
	assert.Contains(t, env.errOut.String(), "TS2322")
}
