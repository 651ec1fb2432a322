package plugins

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/toolchain"
)

// Exported symbols an interpreted plugin may define.
const (
	symbolBefore            = "Before"
	symbolAfter             = "After"
	symbolAfterDeclarations = "AfterDeclarations"
	symbolVisitor           = "NewReadonlyVisitor"
)

// PluginPathEnv lists extra plugin search directories.
const PluginPathEnv = "VENOK_PLUGIN_PATH"

const resolvedCacheSize = 64

// DefaultSearchPaths returns <cwd>/plugins, <cwd>/.venok/plugins and the
// entries of $VENOK_PLUGIN_PATH.
func DefaultSearchPaths(cwd string) []string {
	paths := []string{
		filepath.Join(cwd, "plugins"),
		filepath.Join(cwd, ".venok", "plugins"),
	}
	for _, p := range filepath.SplitList(os.Getenv(PluginPathEnv)) {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

// InterpretedResolver evaluates Go source plugins with yaegi. A plugin named
// "@scope/name" lives in <search path>/@scope/name/plugin or
// <search path>/@scope/name and exports any of:
//
//	func Before(options map[string]any, fileNames []string) func(fileName, source string) (string, error)
//	func After(options map[string]any, fileNames []string) func(fileName, source string) (string, error)
//	func AfterDeclarations(options map[string]any, fileNames []string) func(fileName, source string) (string, error)
//	func NewReadonlyVisitor(options map[string]any) (visit func(fileName, source string), collect func() map[string]any)
type InterpretedResolver struct {
	searchPaths []string
	cache       *lru.Cache[string, *Module]
	logger      logging.Logger
}

// NewInterpretedResolver creates a resolver over searchPaths.
func NewInterpretedResolver(searchPaths []string, logger logging.Logger) *InterpretedResolver {
	if logger == nil {
		logger = logging.Nop()
	}
	cache, err := lru.New[string, *Module](resolvedCacheSize)
	if err != nil {
		panic(err)
	}
	return &InterpretedResolver{
		searchPaths: searchPaths,
		cache:       cache,
		logger:      logger.WithComponent("plugins"),
	}
}

// Resolve implements Resolver.
func (r *InterpretedResolver) Resolve(name string) (*Module, error) {
	if m, ok := r.cache.Get(name); ok {
		return m, nil
	}
	for _, root := range r.searchPaths {
		for _, candidate := range candidates(name) {
			dir := filepath.Join(root, filepath.FromSlash(candidate))
			files := goSources(dir)
			if len(files) == 0 {
				continue
			}
			r.logger.Debug(context.Background(), "interpreting plugin", "name", name, "dir", dir)
			m, err := loadInterpreted(files)
			if err != nil {
				return nil, fmt.Errorf("plugin %s: %w", name, err)
			}
			r.cache.Add(name, m)
			return m, nil
		}
	}
	return nil, ErrNotFound
}

func goSources(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files
}

func loadInterpreted(files []string) (*Module, error) {
	pkg, err := packageName(files[0])
	if err != nil {
		return nil, err
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, err
	}
	for _, file := range files {
		if _, err := i.EvalPath(file); err != nil {
			return nil, fmt.Errorf("interpret %s: %w", file, err)
		}
	}

	m := &Module{}
	for symbol, bind := range map[string]*HookFactory{
		symbolBefore:            &m.Before,
		symbolAfter:             &m.After,
		symbolAfterDeclarations: &m.AfterDeclarations,
	} {
		fn, ok := lookup(i, pkg, symbol)
		if !ok {
			continue
		}
		factory, err := hookFromFunc(symbol, fn)
		if err != nil {
			return nil, err
		}
		*bind = factory
	}
	if fn, ok := lookup(i, pkg, symbolVisitor); ok {
		ctor, err := visitorFromFunc(fn)
		if err != nil {
			return nil, err
		}
		m.ReadonlyVisitor = ctor
	}
	return m, nil
}

func packageName(file string) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), file, nil, parser.PackageClauseOnly)
	if err != nil {
		return "", err
	}
	return f.Name.Name, nil
}

// lookup evaluates a package-level function, qualified unless the plugin is
// a main package.
func lookup(i *interp.Interpreter, pkg, symbol string) (reflect.Value, bool) {
	exprs := []string{symbol}
	if pkg != "main" {
		exprs = []string{pkg + "." + symbol, symbol}
	}
	for _, expr := range exprs {
		v, err := i.Eval(expr)
		if err == nil && v.IsValid() && v.Kind() == reflect.Func {
			return v, true
		}
	}
	return reflect.Value{}, false
}

var (
	optionsType   = reflect.TypeOf(map[string]any(nil))
	fileNamesType = reflect.TypeOf([]string(nil))
	stringType    = reflect.TypeOf("")
	errorType     = reflect.TypeOf((*error)(nil)).Elem()
)

func isTransformFunc(t reflect.Type) bool {
	return t.Kind() == reflect.Func &&
		t.NumIn() == 2 && t.In(0) == stringType && t.In(1) == stringType &&
		t.NumOut() == 2 && t.Out(0) == stringType && t.Out(1).Implements(errorType)
}

func hookFromFunc(symbol string, fn reflect.Value) (HookFactory, error) {
	t := fn.Type()
	if t.NumIn() != 2 || t.In(0) != optionsType || t.In(1) != fileNamesType ||
		t.NumOut() != 1 || !isTransformFunc(t.Out(0)) {
		return nil, fmt.Errorf("%s must be func(map[string]any, []string) func(string, string) (string, error), got %s", symbol, t)
	}
	return func(options map[string]any, program toolchain.Program) toolchain.Transformer {
		var fileNames []string
		if program != nil {
			fileNames = program.RootNames()
		}
		transform := fn.Call([]reflect.Value{reflect.ValueOf(options), reflect.ValueOf(fileNames)})[0]
		if transform.IsNil() {
			return nil
		}
		return func(sf *toolchain.SourceFile) error {
			out := transform.Call([]reflect.Value{reflect.ValueOf(sf.FileName), reflect.ValueOf(sf.Text)})
			if errVal := out[1]; !errVal.IsNil() {
				return errVal.Interface().(error)
			}
			sf.Text = out[0].String()
			return nil
		}
	}, nil
}

func visitorFromFunc(fn reflect.Value) (VisitorConstructor, error) {
	t := fn.Type()
	if t.NumIn() != 1 || t.In(0) != optionsType || t.NumOut() != 2 ||
		t.Out(0).Kind() != reflect.Func || t.Out(1).Kind() != reflect.Func {
		return nil, fmt.Errorf("%s must be func(map[string]any) (func(string, string), func() map[string]any), got %s", symbolVisitor, t)
	}
	return func(options map[string]any) ReadonlyVisitor {
		out := fn.Call([]reflect.Value{reflect.ValueOf(options)})
		return &interpretedVisitor{visit: out[0], collect: out[1]}
	}, nil
}

type interpretedVisitor struct {
	visit   reflect.Value
	collect reflect.Value
}

func (v *interpretedVisitor) Visit(sf *toolchain.SourceFile) {
	v.visit.Call([]reflect.Value{reflect.ValueOf(sf.FileName), reflect.ValueOf(sf.Text)})
}

func (v *interpretedVisitor) Collect() map[string]any {
	out := v.collect.Call(nil)
	if len(out) == 0 || !out[0].IsValid() {
		return nil
	}
	m, _ := out[0].Interface().(map[string]any)
	return m
}
