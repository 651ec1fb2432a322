package toolchain

import (
	"context"
	"strings"

	verrors "github.com/conneroisu/venok/internal/errors"
)

// SourceFile is one file of a compilation unit.
type SourceFile struct {
	FileName string
	Text     string
}

// IsDeclaration reports whether the file is a .d.ts declaration file.
func (sf *SourceFile) IsDeclaration() bool {
	return strings.HasSuffix(sf.FileName, ".d.ts") ||
		strings.HasSuffix(sf.FileName, ".d.mts") ||
		strings.HasSuffix(sf.FileName, ".d.cts")
}

// ModuleSpecifiers scans the file's import/export declarations.
func (sf *SourceFile) ModuleSpecifiers() []ModuleSpecifier {
	return ScanModuleSpecifiers(sf.Text)
}

// RewriteModuleSpecifiers replaces specifier text in place. fn returns the new
// specifier and true to rewrite, or false to leave the declaration alone.
// Only the text between the quotes changes.
func (sf *SourceFile) RewriteModuleSpecifiers(fn func(ModuleSpecifier) (string, bool)) bool {
	specs := sf.ModuleSpecifiers()
	var b strings.Builder
	last, changed := 0, false
	for _, spec := range specs {
		replacement, ok := fn(spec)
		if !ok || replacement == spec.Value {
			continue
		}
		b.WriteString(sf.Text[last:spec.Start])
		b.WriteString(escapeSpecifier(replacement))
		last = spec.End
		changed = true
	}
	if !changed {
		return false
	}
	b.WriteString(sf.Text[last:])
	sf.Text = b.String()
	return true
}

func escapeSpecifier(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, `'`, `\'`).Replace(s)
}

// Transformer rewrites a source file in place. It runs once per file per
// emit phase.
type Transformer func(sf *SourceFile) error

// CustomTransformers groups transformers by emit phase: Before runs on
// TypeScript source, After on emitted JavaScript, AfterDeclarations on
// emitted .d.ts files.
type CustomTransformers struct {
	Before            []Transformer
	After             []Transformer
	AfterDeclarations []Transformer
}

// EmitResult summarizes one emit.
type EmitResult struct {
	EmittedFiles []string
	Skipped      int
	Diagnostics  []verrors.Diagnostic
}

// Program is a compilation unit built from a parsed tsconfig.
type Program interface {
	// Options returns the resolved compiler options.
	Options() *CompilerOptions
	// RootNames returns the absolute root file names.
	RootNames() []string
	// ProjectReferences returns the referenced projects.
	ProjectReferences() []ProjectReference
	// SourceFiles reads every root file.
	SourceFiles() ([]*SourceFile, error)
	// PreEmitDiagnostics type-checks the program without emitting.
	PreEmitDiagnostics(ctx context.Context) ([]verrors.Diagnostic, error)
	// Emit writes JavaScript (and declarations when enabled) to the output
	// directory, applying the transformers of each phase in order.
	Emit(ctx context.Context, transformers CustomTransformers) (*EmitResult, error)
}
