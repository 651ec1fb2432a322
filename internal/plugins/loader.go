package plugins

import (
	"context"
	"maps"

	"dario.cat/mergo"

	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/toolchain"
)

// Extras are merged into readonly visitor options.
type Extras struct {
	PathToSource string
}

func (e Extras) asOptions() map[string]any {
	out := map[string]any{}
	if e.PathToSource != "" {
		out["pathToSource"] = e.PathToSource
	}
	return out
}

// Loader resolves plugin entries into hook sets.
type Loader struct {
	resolver Resolver
	logger   logging.Logger
}

// NewLoader creates a loader backed by resolver.
func NewLoader(resolver Resolver, logger logging.Logger) *Loader {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Loader{resolver: resolver, logger: logger.WithComponent("plugins")}
}

// Load resolves every entry, then binds each module's hooks with the entry
// options (an empty map for bare names). Readonly visitors are constructed
// immediately with {options..., extras..., readonly: true}. Resolution and
// validation failures abort the whole load.
func (l *Loader) Load(entries []config.PluginEntry, extras Extras) (*MultiCompilerPlugins, error) {
	modules := make([]*Module, len(entries))
	for i, entry := range entries {
		m, err := l.resolver.Resolve(entry.Name)
		if err != nil {
			return nil, verrors.PluginNotInstalled(entry.Name, err)
		}
		modules[i] = m
	}

	result := &MultiCompilerPlugins{}
	for i, m := range modules {
		name := entries[i].Name
		if m.empty() {
			return nil, verrors.InvalidPlugin(name)
		}
		options := maps.Clone(entries[i].Options)
		if options == nil {
			options = map[string]any{}
		}

		if m.Before != nil {
			result.BeforeHooks = append(result.BeforeHooks, bind(m.Before, options))
		}
		if m.After != nil {
			result.AfterHooks = append(result.AfterHooks, bind(m.After, options))
		}
		if m.AfterDeclarations != nil {
			result.AfterDeclarationsHooks = append(result.AfterDeclarationsHooks, bind(m.AfterDeclarations, options))
		}
		if m.ReadonlyVisitor != nil {
			visitorOptions := maps.Clone(options)
			if err := mergo.Merge(&visitorOptions, extras.asOptions(), mergo.WithOverride); err != nil {
				return nil, err
			}
			visitorOptions["readonly"] = true
			result.ReadonlyVisitors = append(result.ReadonlyVisitors, &Visitor{
				Key:             name,
				ReadonlyVisitor: m.ReadonlyVisitor(visitorOptions),
			})
		}
		l.logger.Debug(context.Background(), "plugin loaded", "name", name)
	}
	return result, nil
}

func bind(factory HookFactory, options map[string]any) Hook {
	return func(program toolchain.Program) toolchain.Transformer {
		return factory(options, program)
	}
}
