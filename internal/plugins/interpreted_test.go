package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/venok/internal/config"
	"github.com/conneroisu/venok/internal/toolchain"
)

const bannerPlugin = `package banner

import "strings"

func Before(options map[string]interface{}, fileNames []string) func(fileName, source string) (string, error) {
	prefix, _ := options["prefix"].(string)
	return func(fileName, source string) (string, error) {
		return prefix + strings.TrimSpace(source), nil
	}
}

func NewReadonlyVisitor(options map[string]interface{}) (func(fileName, source string), func() map[string]interface{}) {
	count := 0
	visit := func(fileName, source string) { count++ }
	collect := func() map[string]interface{} {
		return map[string]interface{}{"count": count, "readonly": options["readonly"]}
	}
	return visit, collect
}
`

func writePlugin(t *testing.T, dir, rel, src string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func TestInterpretedResolverLoadsPlugin(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "@acme/banner/plugin/banner.go", bannerPlugin)

	resolver := NewInterpretedResolver([]string{filepath.Join(root, "missing"), root}, nil)
	m, err := resolver.Resolve("@acme/banner")
	require.NoError(t, err)
	require.NotNil(t, m.Before)
	assert.Nil(t, m.After)
	require.NotNil(t, m.ReadonlyVisitor)

	sf := &toolchain.SourceFile{FileName: "a.ts", Text: "  const a = 1;  "}
	require.NoError(t, m.Before(map[string]any{"prefix": "/* x */ "}, nil)(sf))
	assert.Equal(t, "/* x */ const a = 1;", sf.Text)

	again, err := resolver.Resolve("@acme/banner")
	require.NoError(t, err)
	assert.Same(t, m, again, "resolved modules are cached")
}

func TestInterpretedPluginThroughLoader(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "banner/banner.go", bannerPlugin)

	loader := NewLoader(ChainResolver{NewRegistry(), NewInterpretedResolver([]string{root}, nil)}, nil)
	result, err := loader.Load([]config.PluginEntry{{Name: "banner"}}, Extras{PathToSource: "/w/src"})
	require.NoError(t, err)
	require.Len(t, result.BeforeHooks, 1)
	require.Len(t, result.ReadonlyVisitors, 1)

	v := result.ReadonlyVisitors[0]
	v.Visit(&toolchain.SourceFile{FileName: "a.ts"})
	v.Visit(&toolchain.SourceFile{FileName: "b.ts"})
	assert.Equal(t, map[string]any{"count": 2, "readonly": true}, v.Collect())
}

func TestInterpretedResolverRejectsBadSignature(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "bad/bad.go", "package bad\n\nfunc Before() string { return \"\" }\n")

	_, err := NewInterpretedResolver([]string{root}, nil).Resolve("bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestInterpretedResolverNotFound(t *testing.T) {
	_, err := NewInterpretedResolver([]string{t.TempDir()}, nil).Resolve("nothing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDefaultSearchPaths(t *testing.T) {
	t.Setenv(PluginPathEnv, "/opt/a"+string(os.PathListSeparator)+"/opt/b")
	paths := DefaultSearchPaths("/w")
	assert.Equal(t, []string{
		filepath.Join("/w", "plugins"),
		filepath.Join("/w", ".venok", "plugins"),
		"/opt/a",
		"/opt/b",
	}, paths)
}
