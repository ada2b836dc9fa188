// Package oracle talks to the external text-reasoning service that indexes documents,
// extracts anchor snippets, verifies candidate translations and writes citations.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// TaskKind names the kind of work requested from the oracle.
type TaskKind string

const (
	TaskIndexSource      TaskKind = "index_source"
	TaskIndexTarget      TaskKind = "index_target"
	TaskExtractSnippets  TaskKind = "extract_snippets"
	TaskVerifyMatch      TaskKind = "verify_match"
	TaskGenerateCitation TaskKind = "generate_citation"
)

// System roles sent with each task.
const (
	RoleArchivist     = "You are an expert archivist."
	RoleLinguist      = "You are a comparative literature expert working across Portuguese, French and English."
	RoleDetective     = "You are a translation detective."
	RoleBibliographer = "You are a bibliographer."
)

// Oracle invokes the reasoning service and returns its raw structured (JSON) answer.
type Oracle interface {
	Invoke(ctx context.Context, kind TaskKind, systemRole, prompt string) (string, error)
}

// Models selects the model used for each task family.
type Models struct {
	Indexing     string
	Matching     string
	Verification string
}

// For returns the model configured for kind.
func (m Models) For(kind TaskKind) string {
	switch kind {
	case TaskIndexSource, TaskIndexTarget:
		return m.Indexing
	case TaskExtractSnippets:
		return m.Matching
	default:
		return m.Verification
	}
}

// CallError reports a failed call to the oracle (transport, HTTP status, timeout).
type CallError struct {
	Kind TaskKind
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("oracle %s call failed: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// ResponseError reports an answer that was empty, malformed or missing required fields.
type ResponseError struct {
	Kind    TaskKind
	Reason  string
	Snippet string
}

func (e *ResponseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("oracle %s response: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("oracle %s response: %s (payload snippet: %s)", e.Kind, e.Reason, e.Snippet)
}

// IsItemError reports whether err should only skip the current item.
func IsItemError(err error) bool {
	var ce *CallError
	var re *ResponseError
	return errors.As(err, &ce) || errors.As(err, &re)
}
