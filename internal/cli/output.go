package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"cloudshelf/pkg/cloudshelf"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Backend, codec or verification failure
	ExitCommandError = 2 // Bad flags, arguments or configuration
	ExitNotFound     = 3 // Missing key or store
)

// Error codes reported in JSON output.
const (
	ErrCodeGeneric  = "E001"
	ErrCodeUsage    = "E002"
	ErrCodeNotFound = "E003"
)

// ExitError is an error carrying the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify wraps err with the exit code its kind maps to.
func classify(message string, err error) *ExitError {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	switch {
	case errors.Is(err, cloudshelf.ErrKeyNotFound),
		errors.Is(err, cloudshelf.ErrStoreDoesNotExist):
		return WrapExitError(ExitNotFound, message, err)
	case errors.Is(err, cloudshelf.ErrInvalidConfig),
		errors.Is(err, cloudshelf.ErrInvalidMode),
		errors.Is(err, cloudshelf.ErrUnknownProvider),
		errors.Is(err, cloudshelf.ErrNoKey),
		errors.Is(err, cloudshelf.ErrKeyNotDefined):
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

func errCode(exitCode int) string {
	switch exitCode {
	case ExitCommandError:
		return ErrCodeUsage
	case ExitNotFound:
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics and text errors; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command's output.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success outputs data in the configured format. Text output prints each
// element of a string slice on its own line.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	switch v := data.(type) {
	case nil:
	case []string:
		for _, s := range v {
			fmt.Fprintln(f.Writer, s)
		}
	default:
		fmt.Fprintln(f.Writer, v)
	}
	return nil
}

// Error outputs err in the configured format. JSON errors go to Writer so
// callers parsing stdout see them; text errors go to ErrWriter.
func (f *OutputFormatter) Error(err error) error {
	code := errCode(GetExitCode(err))
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: err.Error()},
		})
	}

	if f.Verbose {
		fmt.Fprintf(f.GetErrWriter(), "Error [%s]: %v\n", code, err)
	} else {
		fmt.Fprintf(f.GetErrWriter(), "Error: %v\n", err)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
