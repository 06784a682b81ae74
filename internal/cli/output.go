package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the operation ran and failed
	ExitCommandError = 2 // bad flags or the app could not be built
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// ExitError carries the process exit code for a failed command.
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that are not an *ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter writes command results as JSON envelopes or plain text.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

type Response struct {
	Status string     `json:"status"`
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data as JSON, or hands the writer to render for text output.
func (f *OutputFormatter) Success(data any, render func(w io.Writer)) error {
	if f.Format == FormatJSON {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	render(f.Writer)
	return nil
}

func (f *OutputFormatter) Error(code string, message string) error {
	if f.Format == FormatJSON {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ErrorBody{Code: code, Message: message},
		})
	}
	_, err := fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}
