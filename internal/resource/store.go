package resource

import "context"

// Change is one column assignment built from a declared field, never from request input.
type Change struct {
	Column string
	Value  any
}

type Changes []Change

func (c Changes) Columns() []string {
	cols := make([]string, len(c))
	for i, change := range c {
		cols[i] = change.Column
	}
	return cols
}

func (c Changes) Values() []any {
	values := make([]any, len(c))
	for i, change := range c {
		values[i] = change.Value
	}
	return values
}

func (c Changes) Has(column string) bool {
	for _, change := range c {
		if change.Column == column {
			return true
		}
	}
	return false
}

// Query is a validated list request. Sort is always an allow-listed column.
type Query struct {
	Search string
	Sort   string
	Desc   bool
	Filter Changes
}

type Store interface {
	List(ctx context.Context, def *Definition, q Query) ([]Record, error)
	Get(ctx context.Context, def *Definition, key any) (Record, error)
	// Exists ignores the definition scope. A non-nil exclude skips the row with that key.
	Exists(ctx context.Context, def *Definition, column string, value any, exclude any) (bool, error)
	Insert(ctx context.Context, def *Definition, changes Changes) (Record, error)
	Update(ctx context.Context, def *Definition, key any, changes Changes) (Record, error)
	// Delete removes child rows and then the parent as one unit.
	Delete(ctx context.Context, def *Definition, key any) error
}
