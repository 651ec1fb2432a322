package compiler

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/venok/internal/compiler/pathalias"
	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/logging"
	"github.com/conneroisu/venok/internal/toolchain"
)

// TscDriver type-checks and emits the whole program in process.
type TscDriver struct {
	*Base
}

// NewTscDriver creates the in-process driver.
func NewTscDriver(base *Base) *TscDriver {
	return &TscDriver{Base: base}
}

// Run compiles once. Diagnostics are printed and reported as a
// diagnostics error; onSuccess runs exactly once after a clean emit.
func (d *TscDriver) Run(ctx context.Context, cfg *config.Config, tsconfigPath, appName string, _ Extras, onSuccess func()) error {
	count, err := d.compile(ctx, cfg, tsconfigPath, appName)
	if err != nil {
		return err
	}
	if count > 0 {
		return verrors.Diagnostics(count)
	}
	if onSuccess != nil {
		onSuccess()
	}
	return nil
}

// compile emits the program and returns the number of diagnostics reported.
func (d *TscDriver) compile(ctx context.Context, cfg *config.Config, tsconfigPath, appName string) (int, error) {
	perf := logging.StartOperation(d.Logger, "tsc compile")

	parsed, err := d.Provider.GetByConfigFilename(tsconfigPath)
	if err != nil {
		return 0, err
	}
	program, err := d.TS.CreateProgram(parsed)
	if err != nil {
		return 0, err
	}
	loaded, err := d.LoadPlugins(cfg, tsconfigPath, appName)
	if err != nil {
		return 0, err
	}

	transformers := loaded.Transformers(program)
	alias := pathalias.NewTransformer(&parsed.Options, d.Cwd)
	transformers.Before = append([]toolchain.Transformer{alias.Transform}, transformers.Before...)

	var (
		preEmit []verrors.Diagnostic
		emitted *toolchain.EmitResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		preEmit, err = program.PreEmitDiagnostics(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		emitted, err = program.Emit(gctx, transformers)
		return err
	})
	if err := g.Wait(); err != nil {
		perf.EndWithError(ctx, err)
		return 0, err
	}

	diags := append(preEmit, emitted.Diagnostics...)
	d.Metrics.AddDiagnostics(string(config.BuilderTsc), len(diags))
	if len(diags) > 0 {
		d.Console.Diagnostics(verrors.FormatDiagnostics(diags))
		d.Console.Println(verrors.CountSummary(len(diags)))
	}
	d.Logger.Debug(ctx, "emit finished",
		"files", len(emitted.EmittedFiles),
		"skipped", emitted.Skipped,
		"diagnostics", len(diags))
	perf.End(ctx)
	return len(diags), nil
}
