package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Line is one entry of a checkout request. A product is referenced by its
// catalog id, a generic id (number or string) or its code.
type Line struct {
	ProductID  int64    `json:"product_id,omitempty"`
	ID         Ref      `json:"id"`
	Code       string   `json:"code,omitempty"`
	Quantity   Quantity `json:"quantity"`
	PriceCents *int64   `json:"price_cents,omitempty"`
}

// Reference returns the textual reference used in error details.
func (l Line) Reference() string {
	switch {
	case l.ProductID > 0:
		return strconv.FormatInt(l.ProductID, 10)
	case !l.ID.Empty():
		return l.ID.String()
	default:
		return strings.TrimSpace(l.Code)
	}
}

// Ref is a product reference that arrives either as a JSON number or a string.
type Ref struct {
	value string
}

// NewRef builds a Ref from its textual form.
func NewRef(v string) Ref { return Ref{value: strings.TrimSpace(v)} }

// UnmarshalJSON accepts numbers and strings. Integral numbers are normalised so
// that 12 and 12.0 refer to the same catalog id.
func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		r.value = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		r.value = strings.TrimSpace(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		r.value = strconv.FormatInt(int64(f), 10)
		return nil
	}
	r.value = n.String()
	return nil
}

// MarshalJSON renders the reference as a string.
func (r Ref) MarshalJSON() ([]byte, error) {
	if r.value == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

// Empty reports whether no reference was supplied.
func (r Ref) Empty() bool { return r.value == "" }

func (r Ref) String() string { return r.value }

// Int64 returns the reference as a positive catalog id when it is numeric.
func (r Ref) Int64() (int64, bool) {
	id, err := strconv.ParseInt(r.value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Quantity is a requested unit count. It accepts JSON numbers and numeric strings;
// fractions are truncated, an absent value means one unit and an unparseable
// string counts as zero.
type Quantity struct {
	set   bool
	value int64
}

// NewQuantity builds an explicit quantity.
func NewQuantity(n int64) Quantity { return Quantity{set: true, value: n} }

// UnmarshalJSON implements json.Unmarshaler.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*q = Quantity{}
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else if !json.Valid(data) || (data[0] != '-' && (data[0] < '0' || data[0] > '9')) {
		return fmt.Errorf("quantity must be a number or numeric string")
	}
	*q = Quantity{set: true, value: truncate(raw)}
	return nil
}

// MarshalJSON renders the effective quantity.
func (q Quantity) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(q.Value(), 10)), nil
}

// Value returns the effective unit count.
func (q Quantity) Value() int64 {
	if !q.set {
		return 1
	}
	return q.value
}

func truncate(raw string) int64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	f = math.Trunc(f)
	if f > math.MaxInt32 {
		return math.MaxInt32 + 1
	}
	if f < math.MinInt32 {
		return 0
	}
	return int64(f)
}
