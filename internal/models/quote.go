package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dimension names shared by the sites and the result sinks.
const (
	DimCoverage = "coverage"
	DimTerm     = "term"
	DimAge      = "age"
	DimGender   = "gender"
	DimNicotine = "nicotine"
	DimState    = "state"
)

// Dimension is a named axis of variation with its allowed values in
// declaration order.
type Dimension struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

func NewDimension(name string, values ...string) Dimension {
	return Dimension{Name: name, Values: append([]string(nil), values...)}
}

// IntDimension is a convenience for numeric axes such as age.
func IntDimension(name string, values ...int) Dimension {
	d := Dimension{Name: name, Values: make([]string, len(values))}
	for i, v := range values {
		d.Values[i] = strconv.Itoa(v)
	}
	return d
}

type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Combination assigns one value to every active dimension. It is a value
// object: two combinations with the same fields in the same order are equal
// and share a Key.
type Combination struct {
	fields []Field
}

func NewCombination(fields ...Field) Combination {
	return Combination{fields: append([]Field(nil), fields...)}
}

// Fields returns a copy of the ordered field list.
func (c Combination) Fields() []Field {
	return append([]Field(nil), c.fields...)
}

func (c Combination) Len() int {
	return len(c.fields)
}

func (c Combination) Get(name string) (string, bool) {
	for _, f := range c.fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of name or "" when the dimension is not set.
func (c Combination) Value(name string) string {
	v, _ := c.Get(name)
	return v
}

func (c Combination) Int(name string) (int, error) {
	v, ok := c.Get(name)
	if !ok {
		return 0, fmt.Errorf("dimension %q not set", name)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("dimension %q is not numeric: %w", name, err)
	}
	return i, nil
}

// Changed lists the dimension names whose values differ from prev,
// including dimensions prev does not have.
func (c Combination) Changed(prev Combination) []string {
	var names []string
	for _, f := range c.fields {
		if v, ok := prev.Get(f.Name); !ok || v != f.Value {
			names = append(names, f.Name)
		}
	}
	return names
}

// Key is the identity of the combination. Names and values holding a
// separator, quote or backslash are Go-quoted so distinct combinations
// never share a key.
func (c Combination) Key() string {
	var b strings.Builder
	for i, f := range c.fields {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(keyPart(f.Name))
		b.WriteByte('=')
		b.WriteString(keyPart(f.Value))
	}
	return b.String()
}

func keyPart(s string) string {
	if strings.ContainsAny(s, `|="\`) {
		return strconv.Quote(s)
	}
	return s
}

func (c Combination) String() string {
	values := make([]string, len(c.fields))
	for i, f := range c.fields {
		values[i] = f.Value
	}
	return "(" + strings.Join(values, ", ") + ")"
}

// QuoteResult is one premium observed for a combination.
type QuoteResult struct {
	Combination Combination
	Premium     string
	ScrapedAt   time.Time
}

// FailedCombination carries enough context to retry the exact same scrape.
type FailedCombination struct {
	Combination Combination
	Err         error
	ResumeToken string
	Round       int
	FailedAt    time.Time
}

func (f FailedCombination) Reason() string {
	if f.Err == nil {
		return "unknown"
	}
	return f.Err.Error()
}

type OutcomeKind int

const (
	OutcomeUnknown OutcomeKind = iota
	OutcomeSuccess
	OutcomeNoOffers
	OutcomeFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeNoOffers:
		return "no_offers"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of scraping one combination. Exactly one of
// Premiums (Success) or Err (Failure) is meaningful; NoOffers carries neither.
type Outcome struct {
	Kind     OutcomeKind
	Premiums []string
	Err      error
}

func Success(premiums []string) Outcome {
	if len(premiums) == 0 {
		return NoOffers()
	}
	return Outcome{Kind: OutcomeSuccess, Premiums: premiums}
}

func NoOffers() Outcome {
	return Outcome{Kind: OutcomeNoOffers}
}

func Failure(err error) Outcome {
	return Outcome{Kind: OutcomeFailure, Err: err}
}

// Resolved reports whether the combination needs no further attempts.
func (o Outcome) Resolved() bool {
	return o.Kind == OutcomeSuccess || o.Kind == OutcomeNoOffers
}
