package cmd

import (
	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/plugins"
)

// builtinPlugins holds plugins compiled into the binary. Embedders register
// their modules here before Execute.
var builtinPlugins = plugins.NewRegistry()

// RegisterPlugin makes a compiled-in plugin available under name.
func RegisterPlugin(name string, module *plugins.Module) {
	builtinPlugins.Register(name, module)
}

// pluginResolver looks plugins up in the binary first, then as Go sources
// under the workspace search paths.
func pluginResolver(cwd string, logger logging.Logger) plugins.Resolver {
	return plugins.ChainResolver{
		builtinPlugins,
		plugins.NewInterpretedResolver(plugins.DefaultSearchPaths(cwd), logger),
	}
}
