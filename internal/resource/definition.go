package resource

import (
	"net/url"
	"strconv"
	"strings"
)

// Record is one stored row keyed by output name.
type Record map[string]any

type Kind int

const (
	KindText Kind = iota
	KindEmail
	KindDate
	KindURL
	KindList
	KindPassword
)

// Field declares one client-writable attribute and the column it is stored in.
type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Required bool
	Unique   bool
	// Immutable fields are accepted on create only and are never part of an update.
	Immutable bool
	// CreateOnly fields are silently ignored on update.
	CreateOnly bool
}

// Column is one selected column, optionally renamed in the output.
type Column struct {
	Source string
	As     string
}

func (c Column) Name() string {
	if c.As != "" {
		return c.As
	}
	return c.Source
}

// Derivation computes a stored column from another field's value.
type Derivation struct {
	Column string
	From   string
	Unique bool
	Fn     func(string) string
}

// Child is a dependent table whose rows reference the parent key.
type Child struct {
	Table      string
	ForeignKey string
}

type Definition struct {
	Name     string
	Singular string
	Table    string

	Key        string
	NumericKey bool
	KeyParams  []string
	BodyKey    string

	Columns       []Column
	SearchColumns []string
	SortColumns   []string
	DefaultSort   string

	Fields  []Field
	Derived []Derivation

	// Scope restricts every read and write to rows matching these columns.
	Scope map[string]any
	Touch string

	Children []Child

	ConflictMessage string
}

func (d *Definition) Field(name string) (Field, bool) {
	for _, field := range d.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// OutputName returns the name a stored column is exposed under.
func (d *Definition) OutputName(column string) string {
	for _, col := range d.Columns {
		if col.Source == column {
			return col.Name()
		}
	}
	return column
}

func (d *Definition) SelectColumns() []string {
	cols := make([]string, 0, len(d.Columns))
	for _, col := range d.Columns {
		if col.As != "" && col.As != col.Source {
			cols = append(cols, col.Source+" AS "+col.As)
			continue
		}
		cols = append(cols, col.Source)
	}
	return cols
}

// KeyFrom returns the first non-empty key parameter in the query.
func (d *Definition) KeyFrom(values url.Values) string {
	for _, param := range d.KeyParams {
		if value := strings.TrimSpace(values.Get(param)); value != "" {
			return value
		}
	}
	return ""
}

// KeyFromBody reads the identifying key from a decoded JSON body.
func (d *Definition) KeyFromBody(body map[string]any) string {
	names := append([]string{d.BodyKey}, d.KeyParams...)
	for _, name := range names {
		if name == "" {
			continue
		}
		if value, ok := textValue(body[name]); ok && value != "" {
			return value
		}
	}
	return ""
}

// ParseKey converts a raw key into the value used in lookups.
func (d *Definition) ParseKey(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalid("missing_key", d.keyLabel()+" is required")
	}
	if !d.NumericKey {
		return raw, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, invalid("invalid_key", "Invalid "+d.keyLabel())
	}
	return id, nil
}

func (d *Definition) sortColumn(requested string) string {
	requested = strings.TrimSpace(requested)
	for _, col := range d.SortColumns {
		if col == requested {
			return col
		}
	}
	return d.DefaultSort
}

func (d *Definition) keyLabel() string {
	if d.NumericKey {
		return d.Singular + " ID"
	}
	if d.BodyKey != "" {
		return d.BodyKey
	}
	return d.Key
}
