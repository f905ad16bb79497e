package resource

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// CommentSpec describes a comment table attached to a parent entity.
type CommentSpec struct {
	Table        string
	ParentColumn string
	Parent       *Definition
}

// Comments manages the comment rows of one parent entity.
type Comments struct {
	def    *Definition
	parent *Definition
	column string
	store  Store
}

func NewComments(spec CommentSpec, store Store) *Comments {
	def := &Definition{
		Name:       "comments",
		Singular:   "Comment",
		Table:      spec.Table,
		Key:        "id",
		NumericKey: true,
		KeyParams:  []string{"id", "comment_id"},
		BodyKey:    "id",
		Columns: []Column{
			{Source: "id"},
			{Source: spec.ParentColumn},
			{Source: "author"},
			{Source: "text"},
			{Source: "created_at"},
		},
		SortColumns: []string{"created_at"},
		DefaultSort: "created_at",
		Fields: []Field{
			{Name: "author", Column: "author", Kind: KindText, Required: true},
			{Name: "text", Column: "text", Kind: KindText, Required: true},
		},
	}
	return &Comments{def: def, parent: spec.Parent, column: spec.ParentColumn, store: store}
}

func (c *Comments) Definition() *Definition {
	return c.def
}

// ParentParam is the query and body name of the parent reference.
func (c *Comments) ParentParam() string {
	return c.column
}

// ParentFrom returns the parent reference in the query, if any.
func (c *Comments) ParentFrom(values url.Values) string {
	return strings.TrimSpace(values.Get(c.column))
}

// ListByParent returns the parent's comments oldest first, never nil.
func (c *Comments) ListByParent(ctx context.Context, rawParent string) ([]Record, error) {
	parent, err := c.parentKey(rawParent)
	if err != nil {
		return nil, err
	}
	records, err := c.store.List(ctx, c.def, Query{
		Sort:   "created_at",
		Filter: Changes{{Column: c.column, Value: parent}},
	})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (c *Comments) Get(ctx context.Context, rawKey string) (Record, error) {
	key, err := c.def.ParseKey(rawKey)
	if err != nil {
		return nil, err
	}
	record, err := c.store.Get(ctx, c.def, key)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(c.def.Singular)
	}
	return record, err
}

func (c *Comments) Create(ctx context.Context, body map[string]any) (Record, error) {
	var absent []string
	if blank(body[c.column]) {
		absent = append(absent, c.column)
	}
	for _, field := range c.def.Fields {
		if blank(body[field.Name]) {
			absent = append(absent, field.Name)
		}
	}
	if len(absent) > 0 {
		return nil, missing(absent)
	}

	rawParent, ok := textValue(body[c.column])
	if !ok {
		return nil, invalid("invalid_field", fieldLabel(c.column)+" must be a string or number")
	}
	parent, err := c.parentKey(rawParent)
	if err != nil {
		return nil, err
	}

	changes := Changes{{Column: c.column, Value: parent}}
	for _, field := range c.def.Fields {
		value, verr := normalize(field, body[field.Name])
		if verr != nil {
			return nil, verr
		}
		changes = append(changes, Change{Column: field.Column, Value: value})
	}

	if _, err := c.store.Get(ctx, c.parent, parent); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(c.parent.Singular)
		}
		return nil, err
	}

	return c.store.Insert(ctx, c.def, changes)
}

func (c *Comments) Delete(ctx context.Context, rawKey string) error {
	key, err := c.def.ParseKey(rawKey)
	if err != nil {
		return err
	}
	if _, err := c.store.Get(ctx, c.def, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(c.def.Singular)
		}
		return err
	}
	err = c.store.Delete(ctx, c.def, key)
	if errors.Is(err, ErrNoRowsAffected) {
		return failed("Failed to delete comment")
	}
	return err
}

func (c *Comments) parentKey(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, invalid("missing_key", c.column+" is required")
	}
	return c.parent.ParseKey(raw)
}
