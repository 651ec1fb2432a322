package compiler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/toolchain"
	"github.com/conneroisu/venok/internal/ui"
)

// recordingSwc stores its arguments and the config file it was given in the
// working directory, then emits one file.
const recordingSwc = `config=""
prev=""
for arg in "$@"; do
  if [ "$prev" = "--config-file" ]; then config="$arg"; fi
  prev="$arg"
done
echo "$@" > swc-args.txt
cp "$config" swc-config.json
mkdir -p dist
echo 'exports.x = 1;' > dist/main.js
echo "Successfully compiled: 1 file with swc (1.02ms)"
`

var swcWorkspace = map[string]string{
	"tsconfig.json": `{"compilerOptions": {"outDir": "dist", "sourceMap": true}, "include": ["src"]}`,
	"src/main.ts":   "export const x: number = 1;\n",
}

type closeRecorder struct{ closed int }

func (c *closeRecorder) CloseWatchers() { c.closed++ }

func swcConfigFor(t *testing.T, dir string) map[string]any {
	t.Helper()
	var rc map[string]any
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(dir, "swc-config.json"))), &rc))
	return rc
}

func TestSwcDriverTranspilesWithMergedOptions(t *testing.T) {
	files := map[string]string{
		".swcrc": `{"jsc": {"target": "es2022"}, "minify": true}`,
	}
	for k, v := range swcWorkspace {
		files[k] = v
	}
	env := newTestEnv(t, files)
	fakeBin(t, env.dir, "swc", recordingSwc)

	var calls int
	err := NewSwcDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "",
		Extras{TsOptions: &toolchain.CompilerOptions{OutDir: filepath.Join(env.dir, "dist"), SourceMap: true}},
		func() { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	rc := swcConfigFor(t, env.dir)
	assert.Equal(t, true, rc["minify"])
	assert.Equal(t, true, rc["sourceMaps"])
	jsc := rc["jsc"].(map[string]any)
	assert.Equal(t, "es2022", jsc["target"])
	assert.Equal(t, true, jsc["keepClassNames"])

	args := strings.Fields(readFile(t, filepath.Join(env.dir, "swc-args.txt")))
	require.Len(t, args, 9)
	assert.Equal(t, []string{"src", "--out-dir", "dist", "--extensions", ".js,.ts", "--strip-leading-paths", "--config-file"}, args[:7])
	assert.Equal(t, "--no-swcrc", args[len(args)-1])
	assert.NoFileExists(t, args[7], "temporary config is removed after the run")

	assert.Contains(t, env.out.String(), "Successfully compiled")
	assert.FileExists(t, filepath.Join(env.dir, "dist", "main.js"))
}

func TestSwcDriverClosesAssetWatchersWithoutOnSuccess(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	fakeBin(t, env.dir, "swc", recordingSwc)

	assets := &closeRecorder{}
	err := NewSwcDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{Assets: assets}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, assets.closed)
}

func TestSwcDriverExplicitSwcrcMustExist(t *testing.T) {
	files := map[string]string{
		"venok-cli.json": `{"compilerOptions": {"builder": {"type": "swc", "options": {"swcrcPath": "config/.swcrc"}}}}`,
	}
	for k, v := range swcWorkspace {
		files[k] = v
	}
	env := newTestEnv(t, files)
	fakeBin(t, env.dir, "swc", recordingSwc)

	err := NewSwcDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, func() {
		t.Fatal("onSuccess called")
	})
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindConfiguration))
	assert.Contains(t, err.Error(), "config/.swcrc")
	assert.NoFileExists(t, filepath.Join(env.dir, "swc-args.txt"))
}

func TestSwcDriverMissingToolchain(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	t.Setenv("PATH", t.TempDir())

	err := NewSwcDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, nil)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindToolchainMissing))
	assert.Contains(t, err.Error(), toolchain.InstallSwc)
}

func TestSwcDriverReportsTranspileDiagnostics(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	fakeBin(t, env.dir, "swc", `echo "x Expected ';', got 'foo'" >&2
exit 1
`)

	err := NewSwcDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, func() {
		t.Fatal("onSuccess called")
	})
	require.Error(t, err)
	var verr *verrors.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, verrors.KindDiagnostics, verr.Kind)
	assert.Equal(t, 1, verr.Count)
	assert.Contains(t, env.errOut.String(), "Expected ';'")
}

func TestSwcDriverTypeCheckIsAdvisory(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	fakeBin(t, env.dir, "swc", recordingSwc)
	fakeBin(t, env.dir, "tsc", failingTsc)

	var calls int
	err := NewSwcDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{TypeCheck: true}, func() { calls++ })
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Contains(t, env.errOut.String(), "TS2322")
	assert.Contains(t, env.out.String(), ui.MetadataGenerationSkipped)
	assert.FileExists(t, filepath.Join(env.dir, "dist", "main.js"))
}

func TestSwcDriverWatchRequiresSession(t *testing.T) {
	env := newTestEnv(t, swcWorkspace)
	fakeBin(t, env.dir, "swc", recordingSwc)

	err := NewSwcDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{Watch: true}, nil)
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(env.dir, "swc-args.txt"))
	assert.True(t, os.IsNotExist(statErr))
}
