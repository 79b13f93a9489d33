package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Grade is a primary/secondary school year (1..12). Zero means "unspecified".
//
// Grades arrive as numbers (4), plain strings ("4") and labelled strings
// ("ป.4", "P4", "Grade 4"). ParseGrade normalises all of them once at the
// data-access boundary; everything downstream compares Grade values only.
type Grade int

// MaxGrade is the highest school year accepted.
const MaxGrade = 12

// gradePrefixes are stripped before parsing. Order matters: longer prefixes first.
var gradePrefixes = []string{"ประถมศึกษาปีที่", "มัธยมศึกษาปีที่", "grade", "ป.", "ม.", "ป", "ม", "p", "g"}

// ParseGrade normalises a raw grade label. Empty input yields 0 with no error.
func ParseGrade(raw string) (Grade, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, nil
	}
	offset := 0
	for _, prefix := range gradePrefixes {
		if strings.HasPrefix(s, prefix) {
			// Thai lower-secondary years (ม.1-ม.6) follow the six primary years.
			if prefix == "ม." || prefix == "ม" || prefix == "มัธยมศึกษาปีที่" {
				offset = 6
			}
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	s = strings.TrimFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	n, err := strconv.Atoi(toASCIIDigits(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, raw)
	}
	g := Grade(n + offset)
	if g < 1 || g > MaxGrade {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, raw)
	}
	return g, nil
}

// String renders the canonical numeric form ("" when unspecified).
func (g Grade) String() string {
	if g == 0 {
		return ""
	}
	return strconv.Itoa(int(g))
}

// UnmarshalJSON accepts both numbers and strings.
func (g *Grade) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n < 0 || n > MaxGrade {
			return fmt.Errorf("%w: %d", ErrInvalidGrade, n)
		}
		*g = Grade(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidGrade, string(data))
	}
	parsed, err := ParseGrade(s)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// toASCIIDigits maps Thai digits (๐-๙) to ASCII.
func toASCIIDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '๐' && r <= '๙' {
			r = '0' + (r - '๐')
		}
		b.WriteRune(r)
	}
	return b.String()
}
