// Package ui renders the user-facing console surface: prefixed progress
// lines on stdout and prefixed failures on stderr.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Messages printed by the type-checker and drivers.
const (
	FoundNoIssuesGeneratingMetadata = "Found 0 issues. Generating metadata..."
	FoundNoIssuesMetadataSkipped    = "Found 0 issues."
	GeneratingMetadata              = "Generating metadata..."
	MetadataGenerationSkipped       = "Metadata generation skipped."
	TypeCheckWithoutSwc             = `"typeCheck" will not have any effect when "builder" is not "swc".`
)

// Console writes prefixed lines. It is safe for concurrent use.
type Console struct {
	out io.Writer
	err io.Writer
	mu  sync.Mutex

	errorPrefix string
	infoPrefix  string
	swcPrefix   string
	tscPrefix   string
	tscError    string
}

// NewConsole creates a console writing progress to out and failures to errOut.
// Styling follows the colour profile detected for each writer.
func NewConsole(out, errOut io.Writer) *Console {
	outR := lipgloss.NewRenderer(out)
	errR := lipgloss.NewRenderer(errOut)

	badge := func(r *lipgloss.Renderer, bg string, label string) string {
		return r.NewStyle().
			Background(lipgloss.Color(bg)).
			Foreground(lipgloss.Color("#000000")).
			Bold(true).
			Render(" " + label + " ")
	}
	arrow := func(r *lipgloss.Renderer, fg string) string {
		return r.NewStyle().Foreground(lipgloss.Color(fg)).Render(">")
	}
	upper := cases.Upper(language.English)

	return &Console{
		out:         out,
		err:         errOut,
		errorPrefix: badge(errR, "#D2004B", "Error"),
		infoPrefix:  badge(outR, "#3CBE64", "Info"),
		swcPrefix:   arrow(outR, "6") + " " + badge(outR, "6", upper.String("swc")),
		tscPrefix:   arrow(outR, "4") + " " + badge(outR, "4", upper.String("tsc")),
		tscError:    arrow(outR, "1") + " " + badge(outR, "1", upper.String("tsc")),
	}
}

// Default writes to the process's stdout and stderr.
func Default() *Console {
	return NewConsole(os.Stdout, os.Stderr)
}

// Discard is a console that prints nothing.
func Discard() *Console {
	return NewConsole(io.Discard, io.Discard)
}

// Error prints a single prefixed line to the error stream.
func (c *Console) Error(format string, args ...any) {
	c.line(c.err, c.errorPrefix, format, args...)
}

// Info prints a prefixed progress line to stdout.
func (c *Console) Info(format string, args ...any) {
	c.line(c.out, c.infoPrefix, format, args...)
}

// Swc prints a line attributed to the fast transpiler.
func (c *Console) Swc(format string, args ...any) {
	c.line(c.out, c.swcPrefix, format, args...)
}

// Tsc prints a line attributed to the type checker.
func (c *Console) Tsc(format string, args ...any) {
	c.line(c.out, c.tscPrefix, format, args...)
}

// TscError prints a type-check failure summary line.
func (c *Console) TscError(format string, args ...any) {
	c.line(c.out, c.tscError, format, args...)
}

// Println writes raw text to stdout.
func (c *Console) Println(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}

// Diagnostics writes formatted diagnostics to the error stream.
func (c *Console) Diagnostics(text string) {
	if text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.err, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(c.err)
	}
}

func (c *Console) line(w io.Writer, prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	msg = strings.ReplaceAll(msg, "\n", " ")
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(w, "%s %s\n", prefix, msg)
}
