// Package errors provides standardized error types and helpers for the headcam codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")
	// ErrInvalidContainer indicates a file that is not a usable MP4 container
	ErrInvalidContainer = errors.New("invalid container format")
	// ErrMalformedBox indicates a container box with an implausible header
	ErrMalformedBox = errors.New("malformed box header")
	// ErrTruncatedIdentifier indicates the identifier payload ended early
	ErrTruncatedIdentifier = errors.New("truncated identifier")
	// ErrToolFailure indicates an external tool exited unsuccessfully
	ErrToolFailure = errors.New("tool failure")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "video", "catalog entry")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ParseError represents a parsing or deserialization error
type ParseError struct {
	Format  string // Format being parsed (e.g., "XML", "file name", "telemetry export")
	Path    string // File path, if applicable
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to parse %s at %s: %s", e.Format, e.Path, e.Message)
	}
	return fmt.Sprintf("failed to parse %s: %s", e.Format, e.Message)
}

func (e *ParseError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// ContainerError represents a file that fails MP4 container validation:
// it does not begin with ftyp, or a required box is absent at its level.
type ContainerError struct {
	Path   string // Video file involved
	Box    string // Box tag that is missing or misplaced
	Reason string // Optional detail overriding the default missing-box message
	Err    error  // Underlying error, if any
}

func (e *ContainerError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid container format in %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid container format in %s: missing %s box", e.Path, e.Box)
}

func (e *ContainerError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidContainer
}

// BoxHeaderError represents a container box whose header declares an
// impossible length (< 8 bytes) or overruns the enclosing range.
type BoxHeaderError struct {
	Offset int64  // Absolute offset of the offending header
	Length uint32 // Declared box length
	Err    error  // Underlying error, if any
}

func (e *BoxHeaderError) Error() string {
	return fmt.Sprintf("malformed box header at offset %d: declared length %d", e.Offset, e.Length)
}

func (e *BoxHeaderError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedBox
}

// IdentifierError represents a device-identifier region that ended
// before the expected marker or chunk structure was found.
type IdentifierError struct {
	Offset int64 // Offset at which the scan gave up
	Err    error // Underlying error, if any
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("device identifier truncated: marker not found before offset %d", e.Offset)
}

func (e *IdentifierError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrTruncatedIdentifier
}

// ToolError represents an external tool invocation that failed.
type ToolError struct {
	Tool     string // Tool name (e.g., "ffmpeg", "ffprobe", "gpmfdemo")
	ExitCode int    // Process exit code, -1 if the process never ran
	Stderr   string // Trailing stderr output, for diagnostics
	Err      error  // Underlying error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
}

func (e *ToolError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrToolFailure
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewParse creates a ParseError
func NewParse(format, path, message string) *ParseError {
	return &ParseError{
		Format:  format,
		Path:    path,
		Message: message,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewContainer creates a ContainerError for a missing box
func NewContainer(path, box string) *ContainerError {
	return &ContainerError{
		Path: path,
		Box:  box,
	}
}

// NewBoxHeader creates a BoxHeaderError
func NewBoxHeader(offset int64, length uint32) *BoxHeaderError {
	return &BoxHeaderError{
		Offset: offset,
		Length: length,
	}
}

// NewIdentifier creates an IdentifierError
func NewIdentifier(offset int64) *IdentifierError {
	return &IdentifierError{
		Offset: offset,
	}
}

// NewTool creates a ToolError
func NewTool(tool string, exitCode int, stderr string, err error) *ToolError {
	return &ToolError{
		Tool:     tool,
		ExitCode: exitCode,
		Stderr:   stderr,
		Err:      err,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
