// Package errors provides the diagnostic model, typed build failures and the
// parser that turns toolchain output into structured diagnostics.
//
// Compiler diagnostics are values, not failures: they are collected per
// compilation phase, formatted, counted, and only the count decides whether a
// build succeeded. Errors that invalidate the whole build (configuration,
// plugin resolution, missing toolchain) are *Error values carrying a Kind.
package errors

import (
	"regexp"
	"strconv"
	"strings"
)

type outputPattern struct {
	regex       *regexp.Regexp
	parseFields func(matches []string) Diagnostic
}

// OutputParser parses textual tsc and swc output into diagnostics.
type OutputParser struct {
	patterns []outputPattern
	summary  *regexp.Regexp
}

// NewOutputParser creates a parser for the plain (non-pretty) tsc layout.
func NewOutputParser() *OutputParser {
	return &OutputParser{
		patterns: buildOutputPatterns(),
		summary:  regexp.MustCompile(`Found (\d+) errors?\b`),
	}
}

// Parse extracts every diagnostic from output. Indented lines that are not
// diagnostics themselves, such as swc's "  x" markers, are folded into the
// preceding diagnostic's message.
func (op *OutputParser) Parse(output string) []Diagnostic {
	var diags []Diagnostic
	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimRight(raw, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if d, ok := op.parseLine(line); ok {
			diags = append(diags, d)
			continue
		}
		if (strings.HasPrefix(line, "  ") || strings.HasPrefix(line, "\t")) && len(diags) > 0 {
			last := &diags[len(diags)-1]
			last.Message += "\n" + strings.TrimSpace(line)
		}
	}
	return diags
}

// Summary returns the error count of a watch-mode cycle summary line, if line is one.
func (op *OutputParser) Summary(line string) (int, bool) {
	if !strings.Contains(line, "Watching for file changes") {
		return 0, false
	}
	m := op.summary.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, _ := strconv.Atoi(m[1])
	return n, true
}

func (op *OutputParser) parseLine(line string) (Diagnostic, bool) {
	for _, pattern := range op.patterns {
		if matches := pattern.regex.FindStringSubmatch(line); matches != nil {
			d := pattern.parseFields(matches)
			d.Source = line
			return d, true
		}
	}
	return Diagnostic{}, false
}

func parseCategory(s string) Category {
	switch strings.ToLower(s) {
	case "warning":
		return CategoryWarning
	case "message":
		return CategoryMessage
	case "suggestion":
		return CategorySuggestion
	default:
		return CategoryError
	}
}

func buildOutputPatterns() []outputPattern {
	return []outputPattern{
		{
			// src/app.ts(3,7): error TS2322: message
			regex: regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning|message|suggestion) TS(\d+): (.+)$`),
			parseFields: func(m []string) Diagnostic {
				line, _ := strconv.Atoi(m[2])
				col, _ := strconv.Atoi(m[3])
				code, _ := strconv.Atoi(m[5])
				return Diagnostic{File: m[1], Line: line, Column: col, Code: code, Category: parseCategory(m[4]), Message: m[6]}
			},
		},
		{
			// src/app.ts:3:7 - error TS2322: message
			regex: regexp.MustCompile(`^(.+?):(\d+):(\d+) - (error|warning|message|suggestion) TS(\d+): (.+)$`),
			parseFields: func(m []string) Diagnostic {
				line, _ := strconv.Atoi(m[2])
				col, _ := strconv.Atoi(m[3])
				code, _ := strconv.Atoi(m[5])
				return Diagnostic{File: m[1], Line: line, Column: col, Code: code, Category: parseCategory(m[4]), Message: m[6]}
			},
		},
		{
			// error TS5058: message
			regex: regexp.MustCompile(`^(error|warning) TS(\d+): (.+)$`),
			parseFields: func(m []string) Diagnostic {
				code, _ := strconv.Atoi(m[2])
				return Diagnostic{Code: code, Category: parseCategory(m[1]), Message: m[3]}
			},
		},
		{
			// swc: "  x Expected ';', got 'foo'" reported after a file header.
			regex: regexp.MustCompile(`^\s*(?:x|×) (.+)$`),
			parseFields: func(m []string) Diagnostic {
				return Diagnostic{Category: CategoryError, Message: m[1]}
			},
		},
	}
}
