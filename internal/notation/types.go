package notation

import (
	"errors"
	"fmt"
)

// Token is one parsed note: a scale degree, the octave offset active when it
// was scanned, and the duration multiplier in beats.
type Token struct {
	Degree   int
	Octave   int
	Duration float64
}

type ParserConfig struct {
	// DefaultDuration applies when the string carries no leading base duration.
	DefaultDuration float64
}

func DefaultParserConfig() ParserConfig {
	return ParserConfig{DefaultDuration: 1.0}
}

var ErrMalformedToken = errors.New("malformed token")

// MalformedTokenError reports the offending field, its index among the
// whitespace separated fields and its byte offset in the input.
type MalformedTokenError struct {
	Field  string
	Index  int
	Offset int
	Reason string
}

func (e *MalformedTokenError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("malformed token %q at field %d (offset %d): %s", e.Field, e.Index, e.Offset, e.Reason)
	}
	return fmt.Sprintf("malformed token %q at field %d (offset %d)", e.Field, e.Index, e.Offset)
}

func (e *MalformedTokenError) Unwrap() error { return ErrMalformedToken }
