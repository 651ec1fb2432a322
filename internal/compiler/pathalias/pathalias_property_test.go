//go:build property

package pathalias

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/venok/internal/toolchain"
)

func TestAliasRewriteProperties(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"alpha", "beta", "gamma", "delta"} {
		path := filepath.Join(root, "src", "lib", name+".ts")
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("export {}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	opts := &toolchain.CompilerOptions{BaseURL: root, Paths: map[string][]string{"@lib/*": {"src/lib/*"}}}
	tr := NewTransformer(opts, root).WithExternalResolver(externalSet{})
	fileName := filepath.Join(root, "src", "app", "main.ts")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	specifier := gen.OneConstOf("@lib/alpha", "@lib/beta", "@lib/gamma", "@lib/delta", "@lib/missing", "./local", "../up", "@venok/core")

	properties.Property("rewriting twice equals rewriting once", prop.ForAll(
		func(specs []string) bool {
			var b strings.Builder
			for _, s := range specs {
				b.WriteString("import x from '" + s + "';\n")
			}
			sf := &toolchain.SourceFile{FileName: fileName, Text: b.String()}
			_ = tr.Transform(sf)
			once := sf.Text
			_ = tr.Transform(sf)
			return once == sf.Text
		},
		gen.SliceOf(specifier),
	))

	properties.Property("relative specifiers are never touched", prop.ForAll(
		func(name string) bool {
			src := "export * from './" + name + "';\n"
			sf := &toolchain.SourceFile{FileName: fileName, Text: src}
			_ = tr.Transform(sf)
			return sf.Text == src
		},
		gen.Identifier(),
	))

	properties.Property("only specifier text changes", prop.ForAll(
		func(specs []string) bool {
			var b strings.Builder
			for _, s := range specs {
				b.WriteString("import x from '" + s + "';\n")
			}
			sf := &toolchain.SourceFile{FileName: fileName, Text: b.String()}
			_ = tr.Transform(sf)
			return strings.Count(sf.Text, "import x from '") == len(specs) &&
				strings.Count(sf.Text, "\n") == len(specs)
		},
		gen.SliceOf(specifier),
	))

	properties.TestingRun(t)
}
