package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"linkcore/pkg/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitUserError    = 1 // The request was rejected (bad input, missing records, broken links)
	ExitCommandError = 2 // Everything else (config, storage, internal failures)
)

// ExitError represents an error with a specific exit code.
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

// ExitCode maps a command error to the process exit status. Classified
// request errors exit with ExitUserError.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if domain.IsUserError(err) {
		return ExitUserError
	}
	return ExitCommandError
}

// recordsOutput is the JSON document printed by create, delete and find.
type recordsOutput struct {
	Records []domain.Record    `json:"records"`
	Change  domain.ChangeEvent `json:"change,omitempty"`
}

func newRecordsOutput(records []domain.Record, change domain.ChangeEvent) recordsOutput {
	if records == nil {
		records = []domain.Record{}
	}
	return recordsOutput{Records: records, Change: change}
}

// writeJSON prints v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
