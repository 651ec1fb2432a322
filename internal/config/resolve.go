package config

import verrors "github.com/conneroisu/venok/internal/errors"

// GetBuilder resolves the builder for app. A non-empty override (the
// --builder flag) wins over the configuration file.
func GetBuilder(cfg *Config, app string, override string) (Builder, error) {
	if override != "" {
		b := Builder{Type: BuilderType(override)}
		if !b.Type.Valid() {
			return Builder{}, invalidBuilder(override)
		}
		return b, nil
	}
	resolved, err := cfg.ForApp(app)
	if err != nil {
		return Builder{}, err
	}
	b := resolved.CompilerOptions.Builder
	if b.Type == "" {
		b.Type = BuilderTsc
	}
	return b, nil
}

// GetTscConfigPath resolves the tsconfig path for app with the precedence
// override > compilerOptions.tsConfigPath > builder.options.configPath (tsc
// builders only) > the workspace default.
func GetTscConfigPath(cfg *Config, dir, app, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	resolved, err := cfg.ForApp(app)
	if err != nil {
		return "", err
	}
	opts := resolved.CompilerOptions
	if opts.TsConfigPath != "" {
		return opts.TsConfigPath, nil
	}
	if opts.Builder.Type == BuilderTsc && opts.Builder.Options.ConfigPath != "" {
		return opts.Builder.Options.ConfigPath, nil
	}
	return DefaultTsconfigPath(dir), nil
}

func invalidBuilder(name string) error {
	return verrors.Configuration(nil, "invalid builder option: %s. Available builders: %v", name, AvailableBuilders)
}
