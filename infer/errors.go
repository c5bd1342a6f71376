package infer

import (
	"fmt"
	"strings"

	"github.com/LaudateCorpus1/pytype/abstract"
	"github.com/LaudateCorpus1/pytype/cfg"
)

// ErrorKind classifies the non-fatal findings of a run. Every kind here is
// recorded and interpretation continues; the one fatal condition is
// AbortError, which is a Go error, not an ErrorKind.
type ErrorKind int

const (
	// UnresolvedAttribute: an attribute read that no possible value of the
	// receiver provides.
	UnresolvedAttribute ErrorKind = iota
	// WrongArgumentCount: a call with an argument count no overload accepts.
	WrongArgumentCount
	// UndefinedName: a read of a name with no reaching definition.
	UndefinedName
	// IncompatibleUnion: a use inconsistent with at least one possible
	// value (one union member, one operand combination).
	IncompatibleUnion
	// LimitExceeded: a query/recursion/loop/fuel budget was hit and the
	// result was conservatively degraded.
	LimitExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case UnresolvedAttribute:
		return "unresolved-attribute"
	case WrongArgumentCount:
		return "wrong-argument-count"
	case UndefinedName:
		return "undefined-name"
	case IncompatibleUnion:
		return "incompatible-union"
	case LimitExceeded:
		return "limit-exceeded"
	default:
		return fmt.Sprintf("errorkind(%d)", int(k))
	}
}

// Error is one recorded finding. Snapshot holds the values relevant to the
// message at the moment of recording (the receiver of a failed attribute
// read, the offending argument).
type Error struct {
	Kind     ErrorKind
	Func     string
	Block    *cfg.Block
	Line     int
	Col      int
	Message  string
	Snapshot []abstract.Value
}

func (e Error) String() string {
	pos := ""
	if e.Line > 0 {
		pos = fmt.Sprintf(":%d:%d", e.Line, e.Col)
	}
	return fmt.Sprintf("%s%s: [%s] %s", e.Func, pos, e.Kind, e.Message)
}

// errorRecorder accumulates findings in traversal order. Loop bodies and
// recursive calls are interpreted more than once, so identical findings
// from re-interpretation are deduplicated; the first occurrence keeps its
// position in the sequence.
type errorRecorder struct {
	errors []Error
	seen   map[string]bool
}

func newErrorRecorder() *errorRecorder {
	return &errorRecorder{seen: make(map[string]bool, 16)}
}

func (r *errorRecorder) record(e Error) {
	key := fmt.Sprintf("%d|%s|%d|%d|%s", e.Kind, e.Func, e.Line, e.Col, e.Message)
	if r.seen[key] {
		return
	}
	r.seen[key] = true
	r.errors = append(r.errors, e)
}

func snapshotString(vals []abstract.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}

// AbortError is the one fatal failure: a malformed instruction stream or a
// violated internal invariant. It halts the whole interpretation and is
// returned to the caller instead of being mixed into the findings.
type AbortError struct {
	Func   string
	Reason string
	Err    error
}

func (e *AbortError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("analysis aborted in %s: %s: %v", e.Func, e.Reason, e.Err)
	}
	return fmt.Sprintf("analysis aborted in %s: %s", e.Func, e.Reason)
}

func (e *AbortError) Unwrap() error { return e.Err }
