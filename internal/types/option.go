package types

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Option is the unit handed to dropdowns. Value is the backing row's primary key, Label its display
// name. Metadata carries the remaining row columns (e.g. category_id for items).
// On the wire the metadata is flattened next to value and label.
type Option struct {
	Value    string
	Label    string
	Metadata map[string]any
}

func (o Option) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(o.Metadata)+2)
	for k, v := range o.Metadata {
		m[k] = v
	}
	m["value"] = o.Value
	m["label"] = o.Label
	return json.Marshal(m)
}

// UnmarshalJSON keeps numbers as json.Number so bigint ids survive a round trip.
func (o *Option) UnmarshalJSON(b []byte) error {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return err
	}
	o.Value = Stringify(m["value"])
	o.Label = Stringify(m["label"])
	delete(m, "value")
	delete(m, "label")
	if len(m) > 0 {
		o.Metadata = m
	} else {
		o.Metadata = nil
	}
	return nil
}

// Row is one record of a backend table, column name to value.
type Row map[string]any

// Stringify renders ids the way the backend would print them: integers without a fraction,
// json.Number verbatim, strings as-is.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// PrependOption puts opt first, dropping any existing option with the same value.
func PrependOption(opts []Option, opt Option) []Option {
	out := make([]Option, 0, len(opts)+1)
	out = append(out, opt)
	for _, o := range opts {
		if o.Value != opt.Value {
			out = append(out, o)
		}
	}
	return out
}

// ContainsValue reports whether an option with the given value is in opts.
func ContainsValue(opts []Option, value string) bool {
	for _, o := range opts {
		if o.Value == value {
			return true
		}
	}
	return false
}

// CloneOptions copies the slice; metadata maps are shared.
func CloneOptions(opts []Option) []Option {
	if opts == nil {
		return nil
	}
	out := make([]Option, len(opts))
	copy(out, opts)
	return out
}
