// Package toolchain adapts the external TypeScript toolchain to the build
// pipeline: tsconfig parsing, the Program model that compiler drivers and
// plugins operate on, type checking through the workspace tsc binary and
// in-process JavaScript emit through esbuild.
package toolchain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"golang.org/x/sync/errgroup"

	verrors "github.com/conneroisu/venok/internal/errors"
	"github.com/conneroisu/venok/internal/logging"
)

// TypeScript runs type checks through tsc and emits JavaScript in process.
type TypeScript struct {
	Dir    string
	Logger logging.Logger

	parser *verrors.OutputParser
	once   sync.Once
	tsc    string
	tscErr error
}

// NewTypeScript creates a toolchain for the workspace at dir.
func NewTypeScript(dir string, logger logging.Logger) *TypeScript {
	if logger == nil {
		logger = logging.Nop()
	}
	return &TypeScript{
		Dir:    dir,
		Logger: logger.WithComponent("typescript"),
		parser: verrors.NewOutputParser(),
	}
}

// Binary returns the tsc path, or a toolchain-missing error.
func (t *TypeScript) Binary() (string, error) {
	t.once.Do(func() {
		t.tsc, t.tscErr = LookTsc(t.Dir)
	})
	return t.tsc, t.tscErr
}

// CreateProgram builds a compilation unit from a parsed tsconfig.
func (t *TypeScript) CreateProgram(parsed *ParsedCommandLine) (Program, error) {
	if _, err := t.Binary(); err != nil {
		return nil, err
	}
	return &program{ts: t, parsed: parsed}, nil
}

// runTsc executes tsc and returns its output. Exit statuses 1 and 2 only
// mean that diagnostics were reported and are not errors here.
func (t *TypeScript) runTsc(ctx context.Context, args ...string) (string, error) {
	bin, err := t.Binary()
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = t.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	t.Logger.Debug(ctx, "running tsc", "args", strings.Join(args, " "))
	err = cmd.Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && (exitErr.ExitCode() == 1 || exitErr.ExitCode() == 2) {
		return out.String(), nil
	}
	if err != nil {
		return out.String(), fmt.Errorf("tsc %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(out.String()))
	}
	return out.String(), nil
}

type program struct {
	ts     *TypeScript
	parsed *ParsedCommandLine

	mu    sync.Mutex
	files []*SourceFile
}

func (p *program) Options() *CompilerOptions             { return &p.parsed.Options }
func (p *program) RootNames() []string                   { return p.parsed.FileNames }
func (p *program) ProjectReferences() []ProjectReference { return p.parsed.ProjectReferences }

func (p *program) SourceFiles() ([]*SourceFile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.files != nil {
		return p.files, nil
	}
	files := make([]*SourceFile, 0, len(p.parsed.FileNames))
	for _, name := range p.parsed.FileNames {
		data, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read source file: %w", err)
		}
		files = append(files, &SourceFile{FileName: name, Text: string(data)})
	}
	p.files = files
	return files, nil
}

func (p *program) PreEmitDiagnostics(ctx context.Context) ([]verrors.Diagnostic, error) {
	out, err := p.ts.runTsc(ctx, "--noEmit", "--pretty", "false", "-p", p.parsed.ConfigPath)
	if err != nil {
		return nil, err
	}
	return p.absolutize(p.ts.parser.Parse(out)), nil
}

// absolutize resolves diagnostic file names, which tsc prints relative to
// the working directory.
func (p *program) absolutize(diags []verrors.Diagnostic) []verrors.Diagnostic {
	for i := range diags {
		if diags[i].File != "" && !filepath.IsAbs(diags[i].File) {
			diags[i].File = filepath.Join(p.ts.Dir, diags[i].File)
		}
	}
	return diags
}

func (p *program) Emit(ctx context.Context, transformers CustomTransformers) (*EmitResult, error) {
	opts := p.Options()
	result := &EmitResult{}
	if opts.NoEmit {
		return result, nil
	}
	files, err := p.SourceFiles()
	if err != nil {
		return nil, err
	}

	var emittable []*SourceFile
	for _, sf := range files {
		if !sf.IsDeclaration() {
			emittable = append(emittable, sf)
		}
	}
	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = commonSourceDirectory(emittable, p.ts.Dir)
	}

	var info *BuildInfo
	if opts.Incremental || opts.Composite {
		info = LoadBuildInfo(filepath.Join(outputRoot(opts, p.ts.Dir), BuildInfoFile), p.optionsHash())
	}

	esbuildOptions, err := p.transformOptions()
	if err != nil {
		return nil, err
	}

	collector := verrors.NewDiagnosticCollector()
	var (
		emitted []string
		skipped int
	)

	// Transformers are plugin code with no concurrency contract: both chains
	// run on this goroutine in file order, and only esbuild runs in parallel.
	jobs := make([]*emitJob, 0, len(emittable))
	for _, sf := range emittable {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		job := p.prepareEmit(sf, rootDir, transformers.Before, info)
		switch {
		case job.diags != nil:
			collector.Add(job.diags...)
		case job.fresh:
			skipped++
		default:
			jobs = append(jobs, job)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			job.transpile(esbuildOptions)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, job := range jobs {
		outFiles, diags := p.finishEmit(job, transformers.After, info)
		collector.Add(diags...)
		emitted = append(emitted, outFiles...)
	}

	if opts.Declaration || opts.Composite {
		declFiles, diags, err := p.emitDeclarations(ctx, rootDir, transformers.AfterDeclarations)
		if err != nil {
			return nil, err
		}
		emitted = append(emitted, declFiles...)
		collector.Add(diags...)
	}

	if info != nil {
		if err := info.Save(); err != nil {
			p.ts.Logger.Warn(ctx, err, "failed to save build info")
		}
	}

	sort.Strings(emitted)
	result.EmittedFiles = emitted
	result.Skipped = skipped
	result.Diagnostics = collector.Diagnostics()
	return result, nil
}

// emitJob carries one source file through the emit phases.
type emitJob struct {
	sf      *SourceFile
	outPath string
	hash    string
	fresh   bool

	code  string
	smap  []byte
	diags []verrors.Diagnostic
}

// prepareEmit runs the before transformers over one file and checks the
// incremental cache.
func (p *program) prepareEmit(original *SourceFile, rootDir string, before []Transformer, info *BuildInfo) *emitJob {
	sf := &SourceFile{FileName: original.FileName, Text: original.Text}
	for _, transform := range before {
		if err := transform(sf); err != nil {
			return &emitJob{sf: sf, diags: []verrors.Diagnostic{transformDiagnostic(sf.FileName, err)}}
		}
	}

	job := &emitJob{sf: sf, outPath: p.outputPath(sf.FileName, rootDir)}
	if info != nil {
		job.hash = info.Hash(sf.Text)
		job.fresh = info.Fresh(sf.FileName, job.hash, job.outPath)
	}
	return job
}

// transpile converts the transformed source to JavaScript. It touches only
// the job and is safe to run concurrently with other jobs.
func (j *emitJob) transpile(base api.TransformOptions) {
	options := base
	options.Sourcefile = j.sf.FileName
	options.Loader = loaderFor(j.sf.FileName)
	res := api.Transform(j.sf.Text, options)
	if len(res.Errors) > 0 {
		j.diags = esbuildDiagnostics(j.sf.FileName, res.Errors)
		return
	}
	j.code = string(res.Code)
	j.smap = res.Map
}

// finishEmit runs the after transformers over a transpiled file and writes
// its outputs.
func (p *program) finishEmit(job *emitJob, after []Transformer, info *BuildInfo) ([]string, []verrors.Diagnostic) {
	if len(job.diags) > 0 {
		if info != nil {
			info.Forget(job.sf.FileName)
		}
		return nil, job.diags
	}

	code := job.code
	written := []string{job.outPath}
	if len(job.smap) > 0 {
		mapPath := job.outPath + ".map"
		code += "//# sourceMappingURL=" + filepath.Base(mapPath) + "\n"
		if err := writeOutput(mapPath, job.smap); err != nil {
			return nil, []verrors.Diagnostic{emitDiagnostic(mapPath, err)}
		}
		written = append(written, mapPath)
	}

	out := &SourceFile{FileName: job.outPath, Text: code}
	for _, transform := range after {
		if err := transform(out); err != nil {
			return nil, []verrors.Diagnostic{transformDiagnostic(job.outPath, err)}
		}
	}
	if err := writeOutput(job.outPath, []byte(out.Text)); err != nil {
		return nil, []verrors.Diagnostic{emitDiagnostic(job.outPath, err)}
	}
	if info != nil {
		info.Record(job.sf.FileName, job.hash)
	}
	return written, nil
}

// emitDeclarations has tsc write declarations into a scratch directory, then
// applies the after-declarations transformers while copying them to the
// declaration output directory.
func (p *program) emitDeclarations(ctx context.Context, rootDir string, transformers []Transformer) ([]string, []verrors.Diagnostic, error) {
	scratch, err := os.MkdirTemp("", "venok-dts-")
	if err != nil {
		return nil, nil, err
	}
	defer os.RemoveAll(scratch)

	out, err := p.ts.runTsc(ctx,
		"-p", p.parsed.ConfigPath,
		"--emitDeclarationOnly", "--declaration",
		"--noEmit", "false",
		"--incremental", "false",
		"--composite", "false",
		"--pretty", "false",
		"--rootDir", rootDir,
		"--outDir", scratch,
		"--declarationDir", scratch,
	)
	if err != nil {
		return nil, nil, err
	}
	var diags []verrors.Diagnostic
	for _, d := range p.absolutize(p.ts.parser.Parse(out)) {
		// Type errors are already reported by the pre-emit check; only
		// declaration emit errors (TS4xxx, TS9xxx) are new here.
		if (d.Code >= 4000 && d.Code < 5000) || (d.Code >= 9000 && d.Code < 10000) {
			diags = append(diags, d)
		}
	}

	destRoot := p.Options().DeclarationDir
	if destRoot == "" {
		destRoot = outputRoot(p.Options(), rootDir)
	}

	var written []string
	err = filepath.WalkDir(scratch, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d.IsDir() || !strings.HasSuffix(path, ".d.ts") {
			return walkErr
		}
		rel, err := filepath.Rel(scratch, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		dest := filepath.Join(destRoot, rel)
		sf := &SourceFile{FileName: dest, Text: string(data)}
		for _, transform := range transformers {
			if err := transform(sf); err != nil {
				diags = append(diags, transformDiagnostic(dest, err))
				return nil
			}
		}
		if err := writeOutput(dest, []byte(sf.Text)); err != nil {
			diags = append(diags, emitDiagnostic(dest, err))
			return nil
		}
		written = append(written, dest)
		return nil
	})
	return written, diags, err
}

func (p *program) transformOptions() (api.TransformOptions, error) {
	opts := p.Options()
	tsconfigRaw, err := json.Marshal(map[string]any{"compilerOptions": opts.Raw})
	if err != nil {
		return api.TransformOptions{}, err
	}
	options := api.TransformOptions{
		Format:      formatFor(opts.Module),
		Target:      targetFor(opts.Target),
		TsconfigRaw: string(tsconfigRaw),
		KeepNames:   true,
	}
	switch {
	case opts.InlineSourceMap:
		options.Sourcemap = api.SourceMapInline
	case opts.SourceMap:
		options.Sourcemap = api.SourceMapExternal
	}
	if opts.RemoveComments {
		options.LegalComments = api.LegalCommentsNone
	}
	return options, nil
}

func (p *program) optionsHash() string {
	data, _ := json.Marshal(p.Options().Raw)
	return contentHash(data)
}

// outputPath maps a source file to its emitted JavaScript path.
func (p *program) outputPath(fileName, rootDir string) string {
	opts := p.Options()
	target := fileName
	if opts.OutDir != "" {
		rel, err := filepath.Rel(rootDir, fileName)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(fileName)
		}
		target = filepath.Join(opts.OutDir, rel)
	}
	return replaceExt(target, opts.JSX == "preserve")
}

func outputRoot(opts *CompilerOptions, fallback string) string {
	if opts.OutDir != "" {
		return opts.OutDir
	}
	return fallback
}

func replaceExt(path string, preserveJSX bool) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	switch ext {
	case ".mts":
		return base + ".mjs"
	case ".cts":
		return base + ".cjs"
	case ".tsx", ".jsx":
		if preserveJSX {
			return base + ".jsx"
		}
	}
	return base + ".js"
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// commonSourceDirectory is the longest directory prefix shared by files.
func commonSourceDirectory(files []*SourceFile, fallback string) string {
	if len(files) == 0 {
		return fallback
	}
	common := filepath.Dir(files[0].FileName)
	for _, sf := range files[1:] {
		dir := filepath.Dir(sf.FileName)
		for !withinDir(common, dir) {
			parent := filepath.Dir(common)
			if parent == common {
				return common
			}
			common = parent
		}
	}
	return common
}

func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func loaderFor(fileName string) api.Loader {
	switch filepath.Ext(fileName) {
	case ".tsx":
		return api.LoaderTSX
	case ".jsx":
		return api.LoaderJSX
	case ".js", ".mjs", ".cjs":
		return api.LoaderJS
	}
	return api.LoaderTS
}

func formatFor(module string) api.Format {
	switch strings.ToLower(module) {
	case "es6", "es2015", "es2020", "es2022", "esnext", "preserve":
		return api.FormatESModule
	}
	return api.FormatCommonJS
}

func targetFor(target string) api.Target {
	switch strings.ToLower(target) {
	case "es3", "es5":
		return api.ES5
	case "es6", "es2015":
		return api.ES2015
	case "es2016":
		return api.ES2016
	case "es2017":
		return api.ES2017
	case "es2018":
		return api.ES2018
	case "es2019":
		return api.ES2019
	case "es2020":
		return api.ES2020
	case "es2021":
		return api.ES2021
	case "es2022":
		return api.ES2022
	}
	return api.ESNext
}

func esbuildDiagnostics(fileName string, messages []api.Message) []verrors.Diagnostic {
	diags := make([]verrors.Diagnostic, 0, len(messages))
	for _, m := range messages {
		d := verrors.Diagnostic{
			File:     fileName,
			Category: verrors.CategoryError,
			Message:  m.Text,
			Source:   "esbuild",
		}
		if m.Location != nil {
			d.Line = m.Location.Line
			d.Column = m.Location.Column + 1
		}
		diags = append(diags, d)
	}
	return diags
}

func transformDiagnostic(fileName string, err error) verrors.Diagnostic {
	return verrors.Diagnostic{File: fileName, Category: verrors.CategoryError, Message: err.Error(), Source: "transform"}
}

func emitDiagnostic(fileName string, err error) verrors.Diagnostic {
	return verrors.Diagnostic{File: fileName, Category: verrors.CategoryError, Message: err.Error(), Source: "emit"}
}
