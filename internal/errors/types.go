package errors

import (
	"errors"
	"fmt"
)

// Kind classifies errors that abort a build.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindPluginNotInstalled Kind = "plugin_not_installed"
	KindInvalidPlugin      Kind = "invalid_plugin"
	KindToolchainMissing   Kind = "toolchain_missing"
	KindToolchainFailed    Kind = "toolchain_failed"
	KindDiagnostics        Kind = "diagnostics"
)

// Error is a build-level failure with an optional remediation hint.
type Error struct {
	Kind    Kind
	Message string
	Remedy  string
	Count   int
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Remedy != "" {
		msg += " " + e.Remedy
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind && t.Message == ""
	}
	return false
}

// Sentinels usable with errors.Is.
var (
	ErrConfiguration      = &Error{Kind: KindConfiguration}
	ErrPluginNotInstalled = &Error{Kind: KindPluginNotInstalled}
	ErrInvalidPlugin      = &Error{Kind: KindInvalidPlugin}
	ErrToolchainMissing   = &Error{Kind: KindToolchainMissing}
	ErrToolchainFailed    = &Error{Kind: KindToolchainFailed}
	ErrDiagnostics        = &Error{Kind: KindDiagnostics}
)

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Configuration reports a missing or unreadable configuration input.
func Configuration(err error, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...), Err: err}
}

// PluginNotInstalled reports a plugin name that no resolver could find.
func PluginNotInstalled(name string, err error) *Error {
	return &Error{
		Kind:    KindPluginNotInstalled,
		Message: fmt.Sprintf("%q plugin is not installed.", name),
		Err:     err,
	}
}

// InvalidPlugin reports a resolved plugin that exposes no recognized hook.
func InvalidPlugin(name string) *Error {
	return &Error{
		Kind:    KindInvalidPlugin,
		Message: fmt.Sprintf("The %q plugin is not compatible with Venok CLI. Neither \"after()\" nor \"before()\" nor \"afterDeclarations()\" nor \"ReadonlyVisitor\" function have been provided.", name),
	}
}

// ToolchainMissing reports an external tool that could not be located.
func ToolchainMissing(tool, install string) *Error {
	return &Error{
		Kind:    KindToolchainMissing,
		Message: fmt.Sprintf("Failed to load %q.", tool),
		Remedy:  fmt.Sprintf("Please, install it by running %q.", install),
	}
}

// ToolchainFailed reports an external tool that stopped while the build
// still depended on it.
func ToolchainFailed(tool, install string, err error) *Error {
	return &Error{
		Kind:    KindToolchainFailed,
		Message: fmt.Sprintf("%q exited unexpectedly.", tool),
		Remedy:  fmt.Sprintf("Check the installation by running %q.", install),
		Err:     err,
	}
}

// Diagnostics reports a compile that produced diagnostics.
func Diagnostics(count int) *Error {
	return &Error{
		Kind:    KindDiagnostics,
		Message: fmt.Sprintf("Compilation failed with %d error(s).", count),
		Count:   count,
	}
}
