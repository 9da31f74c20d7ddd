package split

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/gval"
	"github.com/shopspring/decimal"
)

// DateLayout is the split_date format in the config file.
const DateLayout = "2006-01-02"

// Direction selects how archive-side prices convert into live-side prices.
type Direction int

const (
	// Divide divides prices by the rate and multiplies volumes.
	Divide Direction = iota
	// Multiply multiplies prices by the rate and divides volumes.
	Multiply
)

func (d Direction) String() string {
	if d == Multiply {
		return "multiply"
	}
	return "divide"
}

// Flip returns the opposite direction.
func (d Direction) Flip() Direction {
	if d == Multiply {
		return Divide
	}
	return Multiply
}

// Record describes a single split. Records are shared between registry keys and
// must not be modified after construction.
type Record struct {
	TypeID     int
	TypeName   string
	OriginalID int
	NewID      int
	SplitDate  time.Time // UTC midnight of the first day reported under NewID
	Direction  Direction
	Rate       float64

	exact decimal.Decimal // parsed rate; zero for records built by hand
}

// Validate checks the invariants that hold for every record.
func (r *Record) Validate() error {
	if !(r.Rate > 0) || math.IsInf(r.Rate, 0) {
		return invalidField("split_rate", fmt.Errorf("rate must be positive and finite, got %v", r.Rate))
	}
	if r.SplitDate.IsZero() {
		return invalidField("split_date", errors.New("date is required"))
	}
	return nil
}

// HasOccurred reports whether the split date is strictly before ref.
func (r *Record) HasOccurred(ref time.Time) bool {
	return r.SplitDate.Before(ref)
}

// CurrentLiveID returns the id the live source reports under at now.
func (r *Record) CurrentLiveID(now time.Time) int {
	if !r.SplitDate.After(now) {
		return r.NewID
	}
	return r.OriginalID
}

// AdjustPrice converts an archive-side price into live-side units.
func (r *Record) AdjustPrice(v float64) float64 {
	return r.scale(v, r.Direction == Multiply)
}

// AdjustVolume converts an archive-side count into live-side units.
// It is always the inverse operation of AdjustPrice.
func (r *Record) AdjustVolume(v float64) float64 {
	return r.scale(v, r.Direction != Multiply)
}

// scale multiplies or divides v by the rate in decimal arithmetic, so that
// rates like 0.1 do not pick up binary rounding error.
func (r *Record) scale(v float64, mul bool) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(r.Rate) || math.IsInf(r.Rate, 0) || r.Rate == 0 {
		if mul {
			return v * r.Rate
		}
		return v / r.Rate
	}
	rate := r.exact
	if rate.IsZero() {
		rate = decimal.NewFromFloat(r.Rate)
	}
	d := decimal.NewFromFloat(v)
	if mul {
		return d.Mul(rate).InexactFloat64()
	}
	return d.Div(rate).InexactFloat64()
}

// Inverted returns a copy of r with the direction flipped, converting live-side
// values back into archive-side units.
func (r *Record) Inverted() *Record {
	inv := *r
	inv.Direction = r.Direction.Flip()
	return &inv
}

// String returns the type name.
func (r *Record) String() string {
	return r.TypeName
}

// Entry is a split config entry built in code rather than read from JSON.
type Entry struct {
	TypeID     int
	TypeName   string
	OriginalID int
	NewID      int
	SplitDate  string // YYYY-MM-DD
	Multiply   bool
	Rate       string // number or arithmetic expression
}

// NewRecord builds a record from entry, applying the same checks as ParseRecord.
func NewRecord(entry Entry) (*Record, error) {
	return parseFields(map[string]any{
		"type_id":       json.Number(strconv.Itoa(entry.TypeID)),
		"type_name":     entry.TypeName,
		"original_id":   json.Number(strconv.Itoa(entry.OriginalID)),
		"new_id":        json.Number(strconv.Itoa(entry.NewID)),
		"split_date":    entry.SplitDate,
		"bool_mult_div": entry.Multiply,
		"split_rate":    entry.Rate,
	})
}

// ParseRecord parses one split config object.
func ParseRecord(raw []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, &Error{
			Kind:    KindInvalidSplitConfig,
			Status:  KindInvalidSplitConfig.Status(),
			Message: "entry is not a JSON object",
			Err:     err,
		}
	}

	return parseFields(fields)
}

func parseFields(fields map[string]any) (*Record, error) {
	var (
		rec Record
		err error
	)

	if rec.TypeID, err = intField(fields, "type_id"); err != nil {
		return nil, err
	}
	if rec.TypeName, err = stringField(fields, "type_name"); err != nil {
		return nil, err
	}
	if rec.OriginalID, err = intField(fields, "original_id"); err != nil {
		return nil, err
	}
	if rec.NewID, err = intField(fields, "new_id"); err != nil {
		return nil, err
	}
	if rec.SplitDate, err = dateField(fields, "split_date"); err != nil {
		return nil, err
	}

	multiply, err := boolField(fields, "bool_mult_div")
	if err != nil {
		return nil, err
	}
	if multiply {
		rec.Direction = Multiply
	}

	if rec.exact, err = rateField(fields, "split_rate"); err != nil {
		return nil, err
	}
	rec.Rate = rec.exact.InexactFloat64()

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func lookupField(fields map[string]any, name string) (any, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return nil, invalidField(name, errors.New("missing"))
	}
	return v, nil
}

func intField(fields map[string]any, name string) (int, error) {
	v, err := lookupField(fields, name)
	if err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, invalidField(name, err)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, invalidField(name, err)
		}
		return n, nil
	default:
		return 0, invalidField(name, fmt.Errorf("unexpected type %T", v))
	}
}

func stringField(fields map[string]any, name string) (string, error) {
	v, err := lookupField(fields, name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidField(name, fmt.Errorf("unexpected type %T", v))
	}
	return s, nil
}

func dateField(fields map[string]any, name string) (time.Time, error) {
	s, err := stringField(fields, name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, invalidField(name, err)
	}
	return t, nil
}

func boolField(fields map[string]any, name string) (bool, error) {
	v, err := lookupField(fields, name)
	if err != nil {
		return false, err
	}

	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch {
		case strings.EqualFold(strings.TrimSpace(t), "true"):
			return true, nil
		case strings.EqualFold(strings.TrimSpace(t), "false"):
			return false, nil
		}
		return false, invalidField(name, fmt.Errorf("expected true/false, got %q", t))
	default:
		return false, invalidField(name, fmt.Errorf("unexpected type %T", v))
	}
}

// rateField accepts a JSON number, a numeric string, or an arithmetic expression
// string ("1/1000"). Plain numbers are kept exact; expressions are evaluated
// without variables or functions.
func rateField(fields map[string]any, name string) (decimal.Decimal, error) {
	v, err := lookupField(fields, name)
	if err != nil {
		return decimal.Zero, err
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		return decimal.Zero, invalidField(name, fmt.Errorf("unexpected type %T", v))
	}

	if d, err := decimal.NewFromString(text); err == nil {
		return d, nil
	}

	rate, err := evalRate(text)
	if err != nil {
		return decimal.Zero, invalidField(name, err)
	}
	return decimal.NewFromFloat(rate), nil
}

func evalRate(expr string) (float64, error) {
	if expr == "" {
		return 0, errors.New("empty expression")
	}

	out, err := gval.Arithmetic().Evaluate(expr, nil)
	if err != nil {
		return 0, fmt.Errorf("evaluate %q: %w", expr, err)
	}

	var f float64
	switch t := out.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	default:
		return 0, fmt.Errorf("expression %q is not numeric (%T)", expr, out)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expression %q is not finite", expr)
	}
	return f, nil
}
