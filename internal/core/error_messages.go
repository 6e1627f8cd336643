// Package core provides the business logic for tab-separated entity imports.
//
// # Error Codes Reference
//
// This file defines operator-facing error messages with codes for support
// reference. Typed errors are matched first with errors.Is/errors.As; anything
// else falls back to case-insensitive substring patterns.
//
// # Usage and Header Errors
//
//	USE001 - Invalid arguments: a required flag is missing or has a bad value
//	         Action: Check --data and --entity-type
//
//	HDR001 - Missing column: entity_stable_id is not in the header row
//	         Action: Add an entity_stable_id column to the first line
//
//	HDR002 - Empty file: the input has no header line
//	         Action: Check the file path and contents
//
// # Record Errors
//
//	REC001 - Malformed record: a row has fewer fields than the header requires
//	         Action: Fix the reported line; the import stopped there
//
//	REC002 - Type mismatch: the stable id belongs to an entity of another type
//	         Action: Use a different stable id or import it with its stored type
//
//	PROP001 - Property write: a property could not be stored; the entity was rolled back
//	          Action: Check the reported entity and re-run the import
//
// # Database Errors (DB001-DB007)
//
//	DB001 - Duplicate key          Patterns: "duplicate key"
//	DB002 - Unique constraint      Patterns: "unique constraint", "violates unique"
//	DB003 - Foreign key            Patterns: "foreign key constraint", "violates foreign key"
//	DB004 - Connection refused     Patterns: "connection refused"
//	DB005 - Connection reset       Patterns: "connection reset"
//	DB006 - Timeout                Patterns: "timeout", "context deadline exceeded"
//	DB007 - Deadlock               Patterns: "deadlock"
//
// # Source Errors (SRC001-SRC003)
//
//	SRC001 - File not found        Patterns: "no such file"
//	SRC002 - Object not found      Patterns: "nosuchkey", "nosuchbucket"
//	SRC003 - No files matched      Patterns: "no files match"
//
// # Import Errors
//
//	IMP001 - Busy: another import holds the store
//	IMP002 - Failed records: some records were not committed
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check the logs for the original error.
package core

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides operator-facing error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// typedError maps a sentinel or typed error to its message.
type typedError struct {
	match func(error) bool
	msg   UserMessage
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

func isType[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

var typedErrors = []typedError{
	{
		match: func(err error) bool { return errors.Is(err, ErrUsage) },
		msg:   UserMessage{Message: "Invalid arguments", Action: "Check --data and --entity-type", Code: "USE001"},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrMissingRequiredColumn) },
		msg:   UserMessage{Message: "Required column is missing from the header", Action: "Add an entity_stable_id column to the first line", Code: "HDR001"},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrEmptyFile) },
		msg:   UserMessage{Message: "The input file is empty", Action: "Check the file path and contents", Code: "HDR002"},
	},
	{
		match: isType[*MalformedRecordError],
		msg:   UserMessage{Message: "A row has fewer fields than the header requires", Action: "Fix the reported line; the import stopped there", Code: "REC001"},
	},
	{
		match: isType[*EntityTypeMismatchError],
		msg:   UserMessage{Message: "The stable id belongs to an entity of another type", Action: "Use a different stable id or import it with its stored type", Code: "REC002"},
	},
	{
		match: isType[*PropertyWriteError],
		msg:   UserMessage{Message: "A property could not be stored; the entity was rolled back", Action: "Check the reported entity and re-run the import", Code: "PROP001"},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrTooManyImports) },
		msg:   UserMessage{Message: "Another import is running", Action: "Wait for it to finish and try again", Code: "IMP001"},
	},
	{
		match: func(err error) bool { return errors.Is(err, ErrRecordsFailed) },
		msg:   UserMessage{Message: "Some records were not imported", Action: "Review the failed records listed in the run result", Code: "IMP002"},
	},
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so more specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "duplicate key", msg: UserMessage{Message: "A record with this ID already exists", Action: "Check for duplicate stable ids in the store", Code: "DB001"}},
	{pattern: "unique constraint", msg: UserMessage{Message: "This value must be unique but already exists", Action: "Check for duplicate entries", Code: "DB002"}},
	{pattern: "violates unique", msg: UserMessage{Message: "A duplicate value was found", Action: "Review your data for duplicate key values", Code: "DB002"}},
	{pattern: "foreign key constraint", msg: UserMessage{Message: "Referenced record does not exist", Action: "Ensure the genetic entity exists", Code: "DB003"}},
	{pattern: "violates foreign key", msg: UserMessage{Message: "Referenced record does not exist", Action: "Ensure the genetic entity exists", Code: "DB003"}},
	{pattern: "connection refused", msg: UserMessage{Message: "Unable to connect to database", Action: "Please try again in a few moments", Code: "DB004"}},
	{pattern: "connection reset", msg: UserMessage{Message: "Database connection was interrupted", Action: "Please try again", Code: "DB005"}},
	{pattern: "context deadline exceeded", msg: UserMessage{Message: "Operation timed out", Action: "Raise IMPORT_TIMEOUT or split the file", Code: "DB006"}},
	{pattern: "timeout", msg: UserMessage{Message: "Operation timed out", Action: "Raise IMPORT_TIMEOUT or split the file", Code: "DB006"}},
	{pattern: "deadlock", msg: UserMessage{Message: "Database was busy with conflicting operations", Action: "Please try again", Code: "DB007"}},
	{pattern: "no such file", msg: UserMessage{Message: "Input file not found", Action: "Check the --data path", Code: "SRC001"}},
	{pattern: "nosuchkey", msg: UserMessage{Message: "Input object not found", Action: "Check the bucket and key in the s3:// URL", Code: "SRC002"}},
	{pattern: "nosuchbucket", msg: UserMessage{Message: "Input bucket not found", Action: "Check the bucket in the s3:// URL", Code: "SRC002"}},
	{pattern: "no files match", msg: UserMessage{Message: "No files matched the pattern", Action: "Check the --data glob", Code: "SRC003"}},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Check the logs for details",
	Code:    "ERR000",
}

// MapError converts a technical error into an operator-facing message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, te := range typedErrors {
		if te.match(err) {
			return te.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
