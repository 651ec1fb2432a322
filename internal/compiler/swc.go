package compiler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/venok/internal/config"
	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/proc"
	"github.com/conneroisu/venok/internal/toolchain"
	"github.com/conneroisu/venok/internal/watcher"
)

// SwcDriver transpiles with the swc command line. Type checking, when
// requested, is advisory: diagnostics are reported but never block
// transpilation or onSuccess.
type SwcDriver struct {
	*Base
	Checker *ForkedTypeChecker
	// Executable locates the program to fork for watch-mode type checking.
	Executable func() (string, error)
	// ChildStdout and ChildStderr receive the forked type checker's output.
	ChildStdout io.Writer
	ChildStderr io.Writer

	parser *verrors.OutputParser
}

// NewSwcDriver creates the swc driver.
func NewSwcDriver(base *Base) *SwcDriver {
	return &SwcDriver{
		Base:        base,
		Checker:     NewForkedTypeChecker(base),
		Executable:  os.Executable,
		ChildStdout: os.Stdout,
		ChildStderr: os.Stderr,
		parser:      verrors.NewOutputParser(),
	}
}

// Run transpiles once, or starts swc in watch mode and blocks until ctx is
// done or the session shuts down.
func (d *SwcDriver) Run(ctx context.Context, cfg *config.Config, tsconfigPath, appName string, extras Extras, onSuccess func()) error {
	opts, err := ResolveSwcOptions(cfg, appName, d.Cwd, extras.TsOptions)
	if err != nil {
		return err
	}
	bin, err := toolchain.LookSwc(d.Cwd)
	if err != nil {
		return err
	}

	if extras.Watch {
		return d.watch(ctx, cfg, tsconfigPath, appName, bin, opts, extras, onSuccess)
	}

	if extras.TypeCheck {
		if err := d.Checker.Run(ctx, cfg, tsconfigPath, appName, false); err != nil {
			return err
		}
	}
	if err := d.runOnce(ctx, bin, opts); err != nil {
		return err
	}
	if onSuccess != nil {
		onSuccess()
	} else {
		extras.closeWatchers()
	}
	return nil
}

func (d *SwcDriver) runOnce(ctx context.Context, bin string, opts SwcOptions) error {
	configFile, err := writeSwcConfig(opts.Swcrc)
	if err != nil {
		return err
	}
	defer os.Remove(configFile)

	d.Console.Swc("Running...")
	cmd := exec.CommandContext(ctx, bin, swcArgs(opts, configFile)...)
	cmd.Dir = d.Cwd
	proc.DieWithParent(cmd)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start swc: %w", err)
	}
	d.stream(stdout, nil)

	if err := cmd.Wait(); err != nil {
		output := stderr.String()
		d.Console.Diagnostics(output)
		diags := d.parser.Parse(output)
		d.Metrics.AddDiagnostics(string(config.BuilderSwc), len(diags))
		if len(diags) > 0 {
			return verrors.Diagnostics(len(diags))
		}
		return fmt.Errorf("swc: %w", err)
	}
	return nil
}

func (d *SwcDriver) watch(ctx context.Context, cfg *config.Config, tsconfigPath, appName, bin string, opts SwcOptions, extras Extras, onSuccess func()) error {
	session := extras.Session
	if session == nil {
		return errors.New("swc watch: no watch session")
	}

	if extras.TypeCheck {
		if err := d.forkTypeChecker(session, cfg, tsconfigPath, appName); err != nil {
			return err
		}
	}

	configFile, err := writeSwcConfig(opts.Swcrc)
	if err != nil {
		return err
	}
	session.AddTempFile(configFile)

	opts.Cli.Watch = true
	d.Console.Swc("Running...")
	cmd := exec.Command(bin, swcArgs(opts, configFile)...)
	cmd.Dir = d.Cwd
	cmd.Stderr = d.ChildStderr
	cmd.WaitDelay = time.Second
	stdout, stdoutWriter := io.Pipe()
	cmd.Stdout = stdoutWriter
	waitResult, err := session.SpawnMonitored(cmd)
	if err != nil {
		stdout.Close()
		return fmt.Errorf("start swc: %w", err)
	}
	exited := make(chan error, 1)
	go func() {
		err := <-waitResult
		stdoutWriter.Close()
		exited <- err
	}()

	// swc's own watch mode does not say when a batch of writes is done, so
	// only the initial compile is awaited through its output.
	ready := make(chan struct{})
	var once sync.Once
	go d.stream(stdout, func(line string) {
		if strings.Contains(line, "compiled") || strings.Contains(line, "Failed") {
			once.Do(func() { close(ready) })
		}
	})

	select {
	case <-ready:
	case err := <-exited:
		return d.swcExited(session, err)
	case <-session.Done():
		return nil
	case <-ctx.Done():
		return nil
	}

	if onSuccess != nil {
		onSuccess()
		if err := d.watchOutDir(ctx, session, opts.Cli.OutDir, onSuccess); err != nil {
			return err
		}
	}

	select {
	case err := <-exited:
		return d.swcExited(session, err)
	case <-session.Done():
	case <-ctx.Done():
	}
	return nil
}

// swcExited turns the end of the swc watch process into the build result:
// nil when the session killed it, a toolchain failure otherwise.
func (d *SwcDriver) swcExited(session *WatchSession, err error) error {
	select {
	case <-session.Closing():
		return nil
	default:
	}
	return verrors.ToolchainFailed("@swc/cli", toolchain.InstallSwc, err)
}

// watchOutDir calls onChange once per quiet period after JavaScript files
// are added or changed under outDir.
func (d *SwcDriver) watchOutDir(ctx context.Context, session *WatchSession, outDir string, onChange func()) error {
	dir := outDir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(d.Cwd, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(d.Logger)
	if err != nil {
		return err
	}
	fw.AddFilter(watcher.GlobFilter(dir, "**/*.js"))
	debouncer := fw.Debounce(d.Clock, watcher.DefaultQuietPeriod, func() {
		d.Metrics.IncRebuildSignal(string(config.BuilderSwc))
		onChange()
	})
	session.AttachWatcher(fw, debouncer)
	if err := fw.AddRecursive(dir); err != nil {
		return err
	}
	fw.Start(ctx)
	return nil
}

func (d *SwcDriver) forkTypeChecker(session *WatchSession, cfg *config.Config, tsconfigPath, appName string) error {
	resolved, err := cfg.ForApp(appName)
	if err != nil {
		return err
	}
	args, err := TypeCheckArgs{
		TsconfigPath: tsconfigPath,
		AppName:      appName,
		SourceRoot:   resolved.SourceRoot,
		Plugins:      resolved.CompilerOptions.Plugins,
	}.Args()
	if err != nil {
		return err
	}
	exe, err := d.Executable()
	if err != nil {
		return fmt.Errorf("locate executable for type checker: %w", err)
	}

	cmd := exec.Command(exe, append([]string{TypeCheckCommand}, args...)...)
	cmd.Dir = d.Cwd
	cmd.Stdout = d.ChildStdout
	cmd.Stderr = d.ChildStderr
	if err := session.Spawn(cmd); err != nil {
		return fmt.Errorf("fork type checker: %w", err)
	}
	d.Logger.Debug(context.Background(), "forked type checker", "pid", cmd.Process.Pid)
	return nil
}

func (d *SwcDriver) stream(r io.Reader, onLine func(string)) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d.Console.Swc("%s", line)
		if onLine != nil {
			onLine(line)
		}
	}
}

func swcArgs(opts SwcOptions, configFile string) []string {
	return append(opts.Cli.Args(), "--config-file", configFile, "--no-swcrc")
}

// writeSwcConfig writes the merged options to a temporary file passed to swc
// with --config-file.
func writeSwcConfig(swcrc map[string]any) (string, error) {
	f, err := os.CreateTemp("", "venok-swcrc-*.json")
	if err != nil {
		return "", fmt.Errorf("create swc config: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(swcrc); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write swc config: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
