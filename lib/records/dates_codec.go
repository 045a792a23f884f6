package records

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeDates renders the canonical JSON form of a dates list, the format
// new runs persist.
func EncodeDates(dates []Screening) string {
	if len(dates) == 0 {
		return "[]"
	}
	out, err := json.Marshal(dates)
	if err != nil {
		// only fails on unmarshalable types, which Screening has none of
		panic(err)
	}
	return string(out)
}

// DecodeDates parses a persisted dates column. Older runs wrote the column
// as a Python literal (single-quoted dicts) rather than JSON, so decoding
// is an ordered fallback: JSON first, then the literal form. Both failing
// yields an empty list and an error, never a guess.
func DecodeDates(raw string) ([]Screening, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var dates []Screening
	jsonErr := json.Unmarshal([]byte(raw), &dates)
	if jsonErr == nil {
		if len(dates) == 0 {
			return nil, nil
		}
		return dates, nil
	}

	dates, literalErr := decodeLiteralDates(raw)
	if literalErr == nil {
		return dates, nil
	}

	return nil, fmt.Errorf("undecodable dates column: %w", jsonErr)
}

// EncodeStrings renders a list-valued metadata column (genres, spoken
// languages) the same way EncodeDates does.
func EncodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	out, err := json.Marshal(values)
	if err != nil {
		panic(err)
	}
	return string(out)
}

// DecodeStrings parses a list-valued metadata column with the same
// JSON-first, literal-fallback strategy as DecodeDates.
func DecodeStrings(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var values []string
	jsonErr := json.Unmarshal([]byte(raw), &values)
	if jsonErr == nil {
		if len(values) == 0 {
			return nil, nil
		}
		return values, nil
	}
	values = nil

	p := &literalParser{input: raw}
	value, err := p.parseValue()
	if err != nil {
		return nil, fmt.Errorf("undecodable list column: %w", jsonErr)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("undecodable list column: %w", jsonErr)
	}
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("undecodable list column: %w", jsonErr)
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("undecodable list column: %w", jsonErr)
		}
		values = append(values, s)
	}
	return values, nil
}

func decodeLiteralDates(raw string) ([]Screening, error) {
	p := &literalParser{input: raw}
	value, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("trailing data at offset %d", p.pos)
	}

	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", value)
	}

	var dates []Screening
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a dict entry, got %T", item)
		}
		dates = append(dates, Screening{
			Timestamp:  literalString(entry, "timestamp"),
			Location:   literalString(entry, "location"),
			UrlTickets: literalString(entry, "url_tickets"),
			UrlInfo:    literalString(entry, "url_info"),
			Version:    literalString(entry, "version"),
		})
	}
	return dates, nil
}

func literalString(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}

// literalParser reads the subset of Python literals older runs produced:
// lists, string-keyed dicts, quoted strings, numbers, True/False/None.
type literalParser struct {
	input string
	pos   int
}

func (p *literalParser) skipSpace() {
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *literalParser) parseValue() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("unexpected end of input")
	}

	switch c := p.input[p.pos]; {
	case c == '[':
		return p.parseList()
	case c == '{':
		return p.parseDict()
	case c == '\'' || c == '"':
		return p.parseString()
	case strings.HasPrefix(p.input[p.pos:], "None"):
		p.pos += len("None")
		return nil, nil
	case strings.HasPrefix(p.input[p.pos:], "True"):
		p.pos += len("True")
		return true, nil
	case strings.HasPrefix(p.input[p.pos:], "False"):
		p.pos += len("False")
		return false, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseNumber()
	default:
		return nil, fmt.Errorf("unexpected character %q at offset %d", c, p.pos)
	}
}

func (p *literalParser) parseList() (any, error) {
	// consume '['
	p.pos++
	var items []any
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, fmt.Errorf("unterminated list")
		}
		if p.input[p.pos] == ']' {
			p.pos++
			return items, nil
		}
		item, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *literalParser) parseDict() (any, error) {
	// consume '{'
	p.pos++
	entries := map[string]any{}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return nil, fmt.Errorf("unterminated dict")
		}
		if p.input[p.pos] == '}' {
			p.pos++
			return entries, nil
		}

		key, err := p.parseString()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ':' {
			return nil, fmt.Errorf("expected ':' at offset %d", p.pos)
		}
		p.pos++

		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		entries[key] = value

		p.skipSpace()
		if p.pos < len(p.input) && p.input[p.pos] == ',' {
			p.pos++
		}
	}
}

func (p *literalParser) parseString() (string, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return "", fmt.Errorf("unexpected end of input")
	}
	quote := p.input[p.pos]
	if quote != '\'' && quote != '"' {
		return "", fmt.Errorf("expected a string at offset %d", p.pos)
	}
	p.pos++

	var out strings.Builder
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == quote {
			p.pos++
			return out.String(), nil
		}
		if c == '\\' && p.pos+1 < len(p.input) {
			p.pos++
			switch esc := p.input[p.pos]; esc {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			default:
				// \' \" \\ and anything else pass through literally
				out.WriteByte(esc)
			}
			p.pos++
			continue
		}
		out.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated string")
}

func (p *literalParser) parseNumber() (any, error) {
	start := p.pos
	if p.input[p.pos] == '-' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !isFloat {
			isFloat = true
			p.pos++
			continue
		}
		break
	}
	text := p.input[start:p.pos]
	if isFloat {
		var f float64
		_, err := fmt.Sscanf(text, "%g", &f)
		return f, err
	}
	var n int64
	_, err := fmt.Sscanf(text, "%d", &n)
	return n, err
}
