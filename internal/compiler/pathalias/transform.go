package pathalias

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/conneroisu/venok/internal/toolchain"
)

// Transformer rewrites aliased module specifiers to paths relative to the
// importing file.
type Transformer struct {
	matcher  *Matcher
	external ExternalResolver
}

// NewTransformer builds the rewrite for one compile from the resolved
// compiler options. A missing baseUrl means cwd.
func NewTransformer(options *toolchain.CompilerOptions, cwd string) *Transformer {
	baseURL := cwd
	var paths map[string][]string
	if options != nil {
		if options.BaseURL != "" {
			baseURL = options.BaseURL
		}
		paths = options.Paths
	}
	if !filepath.IsAbs(baseURL) {
		baseURL = filepath.Join(cwd, baseURL)
	}
	return &Transformer{
		matcher:  NewMatcher(baseURL, paths, true),
		external: NodeModules{Dir: cwd},
	}
}

// WithExternalResolver replaces the installed-dependency check.
func (t *Transformer) WithExternalResolver(r ExternalResolver) *Transformer {
	t.external = r
	return t
}

// Transform is a toolchain.Transformer. It never fails: a specifier that
// cannot be resolved is left as written.
func (t *Transformer) Transform(sf *toolchain.SourceFile) error {
	sf.RewriteModuleSpecifiers(func(spec toolchain.ModuleSpecifier) (string, bool) {
		return t.rewrite(sf.FileName, spec.Value)
	})
	return nil
}

func (t *Transformer) rewrite(fileName, specifier string) (result string, ok bool) {
	defer func() {
		if recover() != nil {
			result, ok = "", false
		}
	}()

	resolved, matched := t.matcher.Match(specifier)
	if !matched {
		return "", false
	}
	resolved = filepath.ToSlash(resolved)
	if t.external != nil && t.external.IsExternal(specifier) {
		return "", false
	}

	rel, err := filepath.Rel(filepath.Dir(fileName), filepath.FromSlash(resolved))
	if err != nil {
		return "", false
	}
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." || rel == "" {
		return "./", true
	}
	if strings.HasPrefix(rel, ".") {
		return rel, true
	}
	return "./" + rel, true
}
