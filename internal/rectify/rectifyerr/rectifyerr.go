// Package rectifyerr names the fatal error kinds of spec.md §7
// (ConfigError, IoError, DiskSpaceError) as thin wrapped-error types, so
// cmd/maprectify can map any of them to exit code 1 while still logging a
// specific cause — mirroring the plain fmt.Errorf("...: %w", err) wrapping
// used throughout the teacher's internal/cog and internal/tile packages,
// but named so the CLI layer can classify failures without string-matching.
package rectifyerr

import "fmt"

// ConfigError reports a CLI/config problem: missing or unparseable flags,
// a dimension mismatch between the IGM and Level-1 rasters, an unsupported
// dtype, or an invalid band list.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError from a formatted message.
func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// WrapConfigError wraps err as a ConfigError with additional context.
func WrapConfigError(msg string, err error) *ConfigError {
	return &ConfigError{Msg: msg, Err: err}
}

// IoError reports a raster open/read/write/header failure.
type IoError struct {
	Op   string // "open", "read", "write", "dtype"
	Path string
	Err  error
}

func (e *IoError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("io: %s: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// NewIoError builds an IoError.
func NewIoError(op, path string, err error) *IoError {
	return &IoError{Op: op, Path: path, Err: err}
}

// DiskSpaceError reports that the computed required output bytes exceed
// free disk space (fatal unless --ignorediskspace).
type DiskSpaceError struct {
	RequiredBytes, FreeBytes uint64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("disk space: need %d bytes, only %d free", e.RequiredBytes, e.FreeBytes)
}
