package notation

import (
	"strconv"
)

type Parser struct{ cfg ParserConfig }

func NewParser(cfg ParserConfig) *Parser {
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultParserConfig().DefaultDuration
	}
	return &Parser{cfg: cfg}
}

// Parse parses with the default configuration.
func Parse(input string) ([]Token, error) {
	return NewParser(DefaultParserConfig()).Parse(input)
}

// Parse turns "[base] token+" into tokens in source order. A token is a run of
// digits and '^'; each '^' raises the octave for the digits after it, within
// that token only.
func (p *Parser) Parse(input string) ([]Token, error) {
	fields := splitFields(input)
	base := p.cfg.DefaultDuration
	tokens := make([]Token, 0, len(input))
	for idx, f := range fields {
		if idx == 0 && !isTokenField(f.text) && isDecimal(f.text) {
			v, err := strconv.ParseFloat(f.text, 64)
			if err != nil {
				return nil, &MalformedTokenError{Field: f.text, Index: idx, Offset: f.offset, Reason: err.Error()}
			}
			if v <= 0 {
				return nil, &MalformedTokenError{Field: f.text, Index: idx, Offset: f.offset, Reason: "base duration must be positive"}
			}
			base = v
			continue
		}
		if !isTokenField(f.text) {
			return nil, &MalformedTokenError{Field: f.text, Index: idx, Offset: f.offset}
		}
		tokens = appendTokens(tokens, f.text, base)
	}
	return tokens, nil
}

func appendTokens(dst []Token, field string, dur float64) []Token {
	octave := 0
	for i := 0; i < len(field); i++ {
		ch := field[i]
		if ch == '^' {
			octave++
			continue
		}
		dst = append(dst, Token{Degree: int(ch - '0'), Octave: octave, Duration: dur})
	}
	return dst
}

type field struct {
	text   string
	offset int
}

func splitFields(s string) []field {
	var out []field
	i := 0
	for i < len(s) {
		if isSpace(s[i]) {
			i++
			continue
		}
		start := i
		for i < len(s) && !isSpace(s[i]) {
			i++
		}
		out = append(out, field{text: s[start:i], offset: start})
	}
	return out
}

func isTokenField(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) && s[i] != '^' {
			return false
		}
	}
	return true
}

// isDecimal accepts digits with at most one '.', optionally signed, so the
// sign check happens on the parsed value instead of as a token error.
func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' || s[0] == '+' {
		i++
	}
	digits, dots := 0, 0
	for ; i < len(s); i++ {
		switch {
		case isDigit(s[i]):
			digits++
		case s[i] == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\r' || b == '\t' }
