// Package plugins resolves compiler plugins by name and groups their hooks
// by emit phase.
//
// A plugin is a Module exposing any subset of four capabilities: a before
// transform factory, an after transform factory, an after-declarations
// transform factory and a readonly visitor constructor. Modules come from a
// Resolver: the static Registry for plugins compiled into the binary, and
// the InterpretedResolver for Go source plugins evaluated at runtime.
package plugins

import (
	"github.com/conneroisu/venok/internal/toolchain"
)

// HookFactory builds a transformer for one compile. options are the plugin
// entry's options; program is the compilation unit being emitted.
type HookFactory func(options map[string]any, program toolchain.Program) toolchain.Transformer

// VisitorConstructor creates a readonly visitor from merged options.
type VisitorConstructor func(options map[string]any) ReadonlyVisitor

// ReadonlyVisitor inspects source files without rewriting them and reports
// the metadata it collected.
type ReadonlyVisitor interface {
	Visit(sf *toolchain.SourceFile)
	Collect() map[string]any
}

// Module is a loaded plugin. Nil fields are capabilities it does not have.
type Module struct {
	Before            HookFactory
	After             HookFactory
	AfterDeclarations HookFactory
	ReadonlyVisitor   VisitorConstructor
}

// empty reports whether the module exposes no recognized capability.
func (m *Module) empty() bool {
	return m == nil ||
		(m.Before == nil && m.After == nil && m.AfterDeclarations == nil && m.ReadonlyVisitor == nil)
}

// Hook is a HookFactory with its plugin options already bound.
type Hook func(program toolchain.Program) toolchain.Transformer

// Visitor is a readonly visitor instance tagged with the plugin that made it.
type Visitor struct {
	Key string
	ReadonlyVisitor
}

// MultiCompilerPlugins is the loader output for one compile invocation. Each
// sequence keeps plugin declaration order.
type MultiCompilerPlugins struct {
	BeforeHooks            []Hook
	AfterHooks             []Hook
	AfterDeclarationsHooks []Hook
	ReadonlyVisitors       []*Visitor
}

// Transformers instantiates every hook against program.
func (m *MultiCompilerPlugins) Transformers(program toolchain.Program) toolchain.CustomTransformers {
	build := func(hooks []Hook) []toolchain.Transformer {
		out := make([]toolchain.Transformer, 0, len(hooks))
		for _, hook := range hooks {
			if t := hook(program); t != nil {
				out = append(out, t)
			}
		}
		return out
	}
	return toolchain.CustomTransformers{
		Before:            build(m.BeforeHooks),
		After:             build(m.AfterHooks),
		AfterDeclarations: build(m.AfterDeclarationsHooks),
	}
}
