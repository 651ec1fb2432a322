package compiler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/plugins"
	"github.com/conneroisu/venok/internal/toolchain"
)

var aliasWorkspace = map[string]string{
	"tsconfig.json": `{
		"compilerOptions": {
			"outDir": "dist",
			"rootDir": "src",
			"baseUrl": ".",
			"module": "commonjs",
			"paths": {"@app/*": ["src/app/*"]}
		},
		"include": ["src"]
	}`,
	"src/main.ts":  "import { x } from '@app/x';\nconsole.log(x);\n",
	"src/app/x.ts": "export const x: number = 1;\n",
}

func TestTscDriverEmitsAndCallsOnSuccessOnce(t *testing.T) {
	env := newTestEnv(t, aliasWorkspace)
	fakeBin(t, env.dir, "tsc", cleanTsc)

	var calls int
	err := NewTscDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, func() { calls++ })
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Empty(t, env.errOut.String())
	main := readFile(t, filepath.Join(env.dir, "dist", "main.js"))
	assert.Contains(t, main, `"./app/x"`)
	assert.NotContains(t, main, "@app/x")
	assert.FileExists(t, filepath.Join(env.dir, "dist", "app", "x.js"))
}

func TestTscDriverRunsAliasRewriteBeforePlugins(t *testing.T) {
	files := map[string]string{
		"venok-cli.json": `{"compilerOptions": {"plugins": ["first", "second"]}}`,
	}
	for k, v := range aliasWorkspace {
		files[k] = v
	}
	env := newTestEnv(t, files)
	fakeBin(t, env.dir, "tsc", cleanTsc)

	var order []string
	recordingPlugin := func(name string) *plugins.Module {
		return &plugins.Module{
			Before: func(_ map[string]any, _ toolchain.Program) toolchain.Transformer {
				return func(sf *toolchain.SourceFile) error {
					if strings.HasSuffix(sf.FileName, "main.ts") {
						for _, spec := range sf.ModuleSpecifiers() {
							order = append(order, name+":"+spec.Value)
						}
					}
					return nil
				}
			},
		}
	}
	env.registry.Register("first", recordingPlugin("first"))
	env.registry.Register("second", recordingPlugin("second"))

	err := NewTscDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"first:./app/x", "second:./app/x"}, order)
}

func TestTscDriverReportsDiagnostics(t *testing.T) {
	env := newTestEnv(t, aliasWorkspace)
	fakeBin(t, env.dir, "tsc", failingTsc)

	called := false
	err := NewTscDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, func() { called = true })
	require.Error(t, err)

	assert.True(t, verrors.IsKind(err, verrors.KindDiagnostics))
	var vErr *verrors.Error
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 1, vErr.Count)
	assert.False(t, called)
	assert.Contains(t, env.errOut.String(), "TS2322")
	assert.Contains(t, env.out.String(), "Found 1 error(s).")
}

func TestTscDriverMissingToolchain(t *testing.T) {
	env := newTestEnv(t, aliasWorkspace)
	t.Setenv("PATH", t.TempDir())

	err := NewTscDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, nil)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindToolchainMissing))
	assert.Contains(t, err.Error(), toolchain.InstallTypeScript)
	assert.NoDirExists(t, filepath.Join(env.dir, "dist"))
}

func TestTscDriverMissingTsconfig(t *testing.T) {
	env := newTestEnv(t, nil)
	err := NewTscDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.build.json", "", Extras{}, nil)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindConfiguration))
}

func TestTscDriverUnknownPluginAbortsBeforeEmit(t *testing.T) {
	files := map[string]string{"venok-cli.json": `{"compilerOptions": {"plugins": ["missing"]}}`}
	for k, v := range aliasWorkspace {
		files[k] = v
	}
	env := newTestEnv(t, files)
	fakeBin(t, env.dir, "tsc", cleanTsc)

	err := NewTscDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, nil)
	require.Error(t, err)
	assert.True(t, verrors.IsKind(err, verrors.KindPluginNotInstalled))
	assert.NoDirExists(t, filepath.Join(env.dir, "dist"))
}

func TestTscWatchDriverRecompilesOnChange(t *testing.T) {
	env := newTestEnv(t, aliasWorkspace)
	fakeBin(t, env.dir, "tsc", cleanTsc)
	session := NewWatchSession(nil)
	defer session.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- NewTscWatchDriver(env.base).Run(ctx, loadConfig(t, env.dir), "tsconfig.json", "",
			Extras{Watch: true, PreserveWatchOutput: true, Session: session},
			func() { calls.Add(1) })
	}()

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, env.out.String(), "Found 0 errors. Watching for file changes.")
	assert.NotContains(t, env.out.String(), clearScreen)

	require.NoError(t, os.WriteFile(filepath.Join(env.dir, "src", "app", "x.ts"), []byte("export const x = 2;\n"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, readFile(t, filepath.Join(env.dir, "dist", "app", "x.js")), "2")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch driver did not stop")
	}
}

func TestTscWatchDriverRequiresSession(t *testing.T) {
	env := newTestEnv(t, aliasWorkspace)
	err := NewTscWatchDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{Watch: true}, nil)
	assert.Error(t, err)
}

func TestTscDriverRunsHooksOneFileAtATime(t *testing.T) {
	files := map[string]string{
		"tsconfig.json":  `{"compilerOptions": {"outDir": "dist", "rootDir": "src", "module": "commonjs"}, "include": ["src"]}`,
		"venok-cli.json": `{"compilerOptions": {"plugins": ["counter"]}}`,
	}
	for i := range 64 {
		files[fmt.Sprintf("src/file%02d.ts", i)] = fmt.Sprintf("export const n%d: number = %d;\n", i, i)
	}
	env := newTestEnv(t, files)
	fakeBin(t, env.dir, "tsc", cleanTsc)
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(8))

	// Plain map and slices: any concurrent hook call is a data race.
	seen := map[string]int{}
	var before, after []string
	var inFlight, overlaps atomic.Int32
	track := func(record func(string)) toolchain.Transformer {
		return func(sf *toolchain.SourceFile) error {
			if inFlight.Add(1) > 1 {
				overlaps.Add(1)
			}
			defer inFlight.Add(-1)
			time.Sleep(time.Millisecond)
			record(sf.FileName)
			return nil
		}
	}
	env.registry.Register("counter", &plugins.Module{
		Before: func(_ map[string]any, _ toolchain.Program) toolchain.Transformer {
			return track(func(name string) {
				seen[filepath.Base(name)]++
				before = append(before, strings.TrimSuffix(filepath.Base(name), ".ts"))
			})
		},
		After: func(_ map[string]any, _ toolchain.Program) toolchain.Transformer {
			return track(func(name string) {
				after = append(after, strings.TrimSuffix(filepath.Base(name), ".js"))
			})
		},
	})

	err := NewTscDriver(env.base).Run(context.Background(), loadConfig(t, env.dir), "tsconfig.json", "", Extras{}, nil)
	require.NoError(t, err)

	assert.Zero(t, overlaps.Load())
	assert.Len(t, seen, 64)
	assert.Len(t, before, 64)
	assert.Equal(t, before, after, "after hooks follow the declaration order of before hooks")
	assert.FileExists(t, filepath.Join(env.dir, "dist", "file63.js"))
}
