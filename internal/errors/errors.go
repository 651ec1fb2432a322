package errors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Category is the severity class of a compiler diagnostic.
type Category int

const (
	CategoryMessage Category = iota
	CategorySuggestion
	CategoryWarning
	CategoryError
)

// String returns the string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "message"
	case CategorySuggestion:
		return "suggestion"
	case CategoryWarning:
		return "warning"
	case CategoryError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic is a single type or emit problem reported by a toolchain.
type Diagnostic struct {
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Column   int      `json:"column,omitempty"`
	Code     int      `json:"code,omitempty"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
	Source   string   `json:"source,omitempty"`
}

// Error implements the error interface
func (d Diagnostic) Error() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", d.Line, d.Column)
		}
		b.WriteString(" - ")
	}
	b.WriteString(d.Category.String())
	if d.Code > 0 {
		fmt.Fprintf(&b, " TS%d", d.Code)
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// DiagnosticCollector gathers diagnostics from several compilation phases.
type DiagnosticCollector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewDiagnosticCollector creates an empty collector
func NewDiagnosticCollector() *DiagnosticCollector {
	return &DiagnosticCollector{diagnostics: make([]Diagnostic, 0)}
}

// Add appends diagnostics to the collector
func (dc *DiagnosticCollector) Add(diags ...Diagnostic) {
	if len(diags) == 0 {
		return
	}
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	dc.diagnostics = append(dc.diagnostics, diags...)
}

// Diagnostics returns a copy of everything collected so far
func (dc *DiagnosticCollector) Diagnostics() []Diagnostic {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	result := make([]Diagnostic, len(dc.diagnostics))
	copy(result, dc.diagnostics)
	return result
}

// Count returns the number of collected diagnostics
func (dc *DiagnosticCollector) Count() int {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	return len(dc.diagnostics)
}

// ByFile groups the collected diagnostics by file, sorted by position.
func (dc *DiagnosticCollector) ByFile() map[string][]Diagnostic {
	dc.mutex.RLock()
	defer dc.mutex.RUnlock()
	grouped := make(map[string][]Diagnostic)
	for _, d := range dc.diagnostics {
		grouped[d.File] = append(grouped[d.File], d)
	}
	for _, diags := range grouped {
		sort.SliceStable(diags, func(i, j int) bool {
			if diags[i].Line != diags[j].Line {
				return diags[i].Line < diags[j].Line
			}
			return diags[i].Column < diags[j].Column
		})
	}
	return grouped
}

// Clear drops all collected diagnostics
func (dc *DiagnosticCollector) Clear() {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	dc.diagnostics = dc.diagnostics[:0]
}

// FormatDiagnostics renders diagnostics one per line in tsc's plain layout,
// followed by the error count summary.
func FormatDiagnostics(diags []Diagnostic) string {
	if len(diags) == 0 {
		return ""
	}
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(d.Error())
		b.WriteByte('\n')
	}
	return b.String()
}

// CountSummary returns the "Found N error(s)." line printed after diagnostics.
func CountSummary(n int) string {
	return fmt.Sprintf("Found %d error(s).", n)
}
