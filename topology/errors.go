package topology

import (
	"errors"
	"fmt"
)

var errExtraTokens = errors.New("more bonded neighbors than declared")

// FormatError reports a topology or bond file that cannot be loaded.
// Any FormatError aborts the whole load.
type FormatError struct {
	Path string
	Line int // 1-based, 0 when not tied to a line
	Msg  string

	// Set for bond-line index mismatches.
	Expected, Found int
	Mismatch        bool

	Err error
}

func (e *FormatError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	msg := e.Msg
	if e.Mismatch {
		msg = fmt.Sprintf("expected index %d, found %d", e.Expected, e.Found)
	}
	if e.Err != nil {
		return fmt.Sprintf("topology: %s: %s: %v", loc, msg, e.Err)
	}
	return fmt.Sprintf("topology: %s: %s", loc, msg)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
