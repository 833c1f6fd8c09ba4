// Package definition loads and validates workflow definitions. Every
// structural defect is caught here, before any scheduling.
package definition

import "fmt"

// ErrorKind classifies definition defects.
type ErrorKind string

const (
	ErrKindParse              ErrorKind = "parse"
	ErrKindSchema             ErrorKind = "schema"
	ErrKindValidation         ErrorKind = "validation"
	ErrKindDuplicateID        ErrorKind = "duplicate_id"
	ErrKindDanglingDependency ErrorKind = "dangling_dependency"
	ErrKindMissingEntryNode   ErrorKind = "missing_entry_node"
	ErrKindInvalidPolicy      ErrorKind = "invalid_policy"
	ErrKindInvalidExpression  ErrorKind = "invalid_expression"
)

// Error is a definition defect. Definition errors are fatal before execution
// starts; the engine never sees an invalid definition.
type Error struct {
	Kind    ErrorKind
	NodeID  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("invalid definition (%s): node %q: %s", e.Kind, e.NodeID, e.Message)
	}

	return fmt.Sprintf("invalid definition (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, nodeID, format string, args ...any) *Error {
	return &Error{Kind: kind, NodeID: nodeID, Message: fmt.Sprintf(format, args...)}
}
