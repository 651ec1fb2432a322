package pathalias

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/venok/internal/toolchain"
)

func touch(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("export {}\n"), 0o644))
	}
}

func TestMatcher(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"src/app/users/users.service.ts",
		"src/app/shared/index.ts",
		"src/config.tsx",
		"libs/common/src/index.ts",
		"libs/common/src/special/only.ts",
		"libs/pkg/dist/main.js",
		"src/explicit.ts",
	)
	require.NoError(t, os.WriteFile(filepath.Join(root, "libs/pkg/package.json"), []byte(`{"main": "dist/main.js"}`), 0o644))

	m := NewMatcher(root, map[string][]string{
		"@app/*":            {"src/app/*"},
		"@common":           {"libs/common/src"},
		"@common/*":         {"libs/common/src/*"},
		"@common/special/*": {"libs/common/src/special/*"},
		"@pkg":              {"libs/pkg"},
		"@multi/*":          {"missing/*", "src/*"},
		"@file":             {"src/explicit.ts"},
	}, false)

	tests := []struct {
		specifier string
		want      string
		ok        bool
	}{
		{"@app/users/users.service", "src/app/users/users.service", true},
		{"@app/shared", "src/app/shared/index", true},
		{"@common", "libs/common/src/index", true},
		{"@common/special/only", "libs/common/src/special/only", true},
		{"@pkg", "libs/pkg/dist/main", true},
		{"@multi/config", "src/config", true},
		{"@file", "src/explicit.ts", true},
		{"@app/missing", "", false},
		{"./relative", "", false},
		{"lodash", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.specifier, func(t *testing.T) {
			got, ok := m.Match(tt.specifier)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, filepath.Join(root, filepath.FromSlash(tt.want)), got)
			}
		})
	}
}

func TestMatcherAddMatchAll(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "utils/strings.ts")

	withAll := NewMatcher(root, nil, true)
	got, ok := withAll.Match("utils/strings")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "utils", "strings"), got)

	_, ok = NewMatcher(root, nil, false).Match("utils/strings")
	assert.False(t, ok)
}

func TestMatchStar(t *testing.T) {
	star, ok := matchStar("@app/*", "@app/a/b")
	assert.True(t, ok)
	assert.Equal(t, "a/b", star)

	star, ok = matchStar("*.svc", "users.svc")
	assert.True(t, ok)
	assert.Equal(t, "users", star)

	_, ok = matchStar("@app/*", "@lib/a")
	assert.False(t, ok)

	star, ok = matchStar("@exact", "@exact")
	assert.True(t, ok)
	assert.Empty(t, star)
}

type externalSet map[string]bool

func (e externalSet) IsExternal(s string) bool { return e[s] }

func newWorkspace(t *testing.T) (string, *toolchain.CompilerOptions) {
	t.Helper()
	root := t.TempDir()
	touch(t, root,
		"src/main.ts",
		"src/app/app.module.ts",
		"src/app/users/users.service.ts",
		"src/common/guards/auth.guard.ts",
		"src/config/index.ts",
	)
	return root, &toolchain.CompilerOptions{
		BaseURL: root,
		Paths: map[string][]string{
			"@app/*":    {"src/app/*"},
			"@common/*": {"src/common/*"},
			"config":    {"src/config"},
		},
	}
}

func TestTransformRewritesAliases(t *testing.T) {
	root, opts := newWorkspace(t)
	tr := NewTransformer(opts, root).WithExternalResolver(externalSet{})

	sf := &toolchain.SourceFile{
		FileName: filepath.Join(root, "src", "app", "users", "users.service.ts"),
		Text: "import { AuthGuard } from '@common/guards/auth.guard';\n" +
			"import { AppModule } from \"@app/app.module\";\n" +
			"export * from '@app/users/users.service';\n" +
			"import { x } from './local';\n" +
			"import { Injectable } from '@venok/core';\n",
	}
	require.NoError(t, tr.Transform(sf))

	assert.Equal(t,
		"import { AuthGuard } from '../../common/guards/auth.guard';\n"+
			"import { AppModule } from \"../app.module\";\n"+
			"export * from './users.service';\n"+
			"import { x } from './local';\n"+
			"import { Injectable } from '@venok/core';\n",
		sf.Text)
}

func TestTransformForcesDotSlash(t *testing.T) {
	root, opts := newWorkspace(t)
	tr := NewTransformer(opts, root).WithExternalResolver(externalSet{})

	sf := &toolchain.SourceFile{
		FileName: filepath.Join(root, "src", "main.ts"),
		Text:     `import { AppModule } from "@app/app.module";`,
	}
	require.NoError(t, tr.Transform(sf))
	assert.Equal(t, `import { AppModule } from "./app/app.module";`, sf.Text)
}

func TestTransformExternalWins(t *testing.T) {
	root, opts := newWorkspace(t)

	sf := &toolchain.SourceFile{FileName: filepath.Join(root, "src", "main.ts"), Text: `import cfg from "config";`}
	require.NoError(t, NewTransformer(opts, root).WithExternalResolver(externalSet{"config": true}).Transform(sf))
	assert.Equal(t, `import cfg from "config";`, sf.Text)

	sf = &toolchain.SourceFile{FileName: filepath.Join(root, "src", "main.ts"), Text: `import cfg from "config";`}
	require.NoError(t, NewTransformer(opts, root).WithExternalResolver(externalSet{}).Transform(sf))
	assert.Equal(t, `import cfg from "./config/index";`, sf.Text)
}

func TestTransformExternalFromNodeModules(t *testing.T) {
	root, opts := newWorkspace(t)
	touch(t, root, "node_modules/config/package.json", "node_modules/config/lib/config.js")
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules/config/package.json"), []byte(`{"main": "lib/config.js"}`), 0o644))

	sf := &toolchain.SourceFile{FileName: filepath.Join(root, "src", "main.ts"), Text: `import cfg from "config";`}
	require.NoError(t, NewTransformer(opts, root).Transform(sf))
	assert.Equal(t, `import cfg from "config";`, sf.Text)
}

func TestTransformIsIdempotent(t *testing.T) {
	root, opts := newWorkspace(t)
	tr := NewTransformer(opts, root).WithExternalResolver(externalSet{})

	sf := &toolchain.SourceFile{
		FileName: filepath.Join(root, "src", "main.ts"),
		Text:     "import a from '@app/app.module';\nimport b from '@common/guards/auth.guard';\n",
	}
	require.NoError(t, tr.Transform(sf))
	once := sf.Text
	require.NoError(t, tr.Transform(sf))
	assert.Equal(t, once, sf.Text)
}

func TestTransformMissingBaseURLUsesCwd(t *testing.T) {
	root := t.TempDir()
	touch(t, root, "shared/util.ts", "src/main.ts")

	tr := NewTransformer(&toolchain.CompilerOptions{Paths: map[string][]string{"@shared/*": {"shared/*"}}}, root).
		WithExternalResolver(externalSet{})
	sf := &toolchain.SourceFile{FileName: filepath.Join(root, "src", "main.ts"), Text: `import u from "@shared/util";`}
	require.NoError(t, tr.Transform(sf))
	assert.Equal(t, `import u from "../shared/util";`, sf.Text)
}

func TestNodeModulesIsExternal(t *testing.T) {
	root := t.TempDir()
	touch(t, root,
		"node_modules/lodash/index.js",
		"node_modules/@scope/pkg/package.json",
		"node_modules/@scope/pkg/main.js",
		"node_modules/single.js",
	)
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules/@scope/pkg/package.json"), []byte(`{"main": "main.js"}`), 0o644))
	nested := filepath.Join(root, "apps", "api")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	nm := NodeModules{Dir: nested}
	assert.True(t, nm.IsExternal("lodash"))
	assert.True(t, nm.IsExternal("@scope/pkg"))
	assert.True(t, nm.IsExternal("single"))
	assert.False(t, nm.IsExternal("missing"))
	assert.False(t, nm.IsExternal("./lodash"))
	assert.False(t, nm.IsExternal("node:fs"))
}
