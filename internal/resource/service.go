package resource

import (
	"context"
	"errors"
	"strings"
)

type Service struct {
	def   *Definition
	store Store
	hash  func(string) (string, error)
}

type Option func(*Service)

// WithPasswordHasher hashes password fields before they are stored.
func WithPasswordHasher(hash func(string) (string, error)) Option {
	return func(s *Service) {
		s.hash = hash
	}
}

func NewService(def *Definition, store Store, opts ...Option) *Service {
	s := &Service{def: def, store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Definition() *Definition {
	return s.def
}

// ListQuery carries the raw list parameters of a request.
type ListQuery struct {
	Search string
	Sort   string
	Order  string
}

func (s *Service) List(ctx context.Context, lq ListQuery) ([]Record, error) {
	q := Query{
		Search: strings.TrimSpace(lq.Search),
		Sort:   s.def.sortColumn(lq.Sort),
		Desc:   strings.EqualFold(strings.TrimSpace(lq.Order), "desc"),
	}
	records, err := s.store.List(ctx, s.def, q)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (s *Service) Get(ctx context.Context, rawKey string) (Record, error) {
	key, err := s.def.ParseKey(rawKey)
	if err != nil {
		return nil, err
	}
	record, err := s.store.Get(ctx, s.def, key)
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(s.def.Singular)
	}
	return record, err
}

func (s *Service) Create(ctx context.Context, body map[string]any) (Record, error) {
	var absent []string
	for _, field := range s.def.Fields {
		if field.Required && blank(body[field.Name]) {
			absent = append(absent, field.Name)
		}
	}
	if len(absent) > 0 {
		return nil, missing(absent)
	}

	changes := Changes{}
	values := map[string]string{}
	for _, field := range s.def.Fields {
		raw, present := body[field.Name]
		if !present || raw == nil {
			if field.Kind == KindList {
				changes = append(changes, Change{Column: field.Column, Value: []string{}})
			} else if field.Kind == KindText {
				changes = append(changes, Change{Column: field.Column, Value: ""})
			}
			continue
		}
		value, verr := s.normalize(field, raw)
		if verr != nil {
			return nil, verr
		}
		if text, ok := value.(string); ok {
			values[field.Name] = text
		}
		changes = append(changes, Change{Column: field.Column, Value: value})
	}

	derived, err := s.derive(values, changes)
	if err != nil {
		return nil, err
	}
	changes = append(changes, derived...)

	if err := s.checkUnique(ctx, changes, nil); err != nil {
		return nil, err
	}

	record, err := s.store.Insert(ctx, s.def, changes)
	if errors.Is(err, ErrConflict) {
		return nil, conflict(s.def.ConflictMessage)
	}
	return record, err
}

func (s *Service) Update(ctx context.Context, body map[string]any) (Record, error) {
	key, err := s.def.ParseKey(s.def.KeyFromBody(body))
	if err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, s.def, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, notFound(s.def.Singular)
		}
		return nil, err
	}

	changes := Changes{}
	values := map[string]string{}
	for _, field := range s.def.Fields {
		if field.Immutable || field.CreateOnly || field.Name == s.def.BodyKey {
			continue
		}
		raw, present := body[field.Name]
		if !present {
			continue
		}
		if field.Required && blank(raw) {
			return nil, invalid("invalid_field", fieldLabel(field.Name)+" cannot be empty")
		}
		value, verr := s.normalize(field, raw)
		if verr != nil {
			return nil, verr
		}
		if text, ok := value.(string); ok {
			values[field.Name] = text
		}
		changes = append(changes, Change{Column: field.Column, Value: value})
	}
	if len(changes) == 0 {
		return nil, invalid("nothing_to_update", "No fields provided to update")
	}

	derived, err := s.derive(values, changes)
	if err != nil {
		return nil, err
	}
	changes = append(changes, derived...)

	if err := s.checkUnique(ctx, changes, key); err != nil {
		return nil, err
	}

	record, err := s.store.Update(ctx, s.def, key, changes)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, notFound(s.def.Singular)
	case errors.Is(err, ErrConflict):
		return nil, conflict(s.def.ConflictMessage)
	}
	return record, err
}

func (s *Service) Delete(ctx context.Context, rawKey string) error {
	key, err := s.def.ParseKey(rawKey)
	if err != nil {
		return err
	}
	if _, err := s.store.Get(ctx, s.def, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound(s.def.Singular)
		}
		return err
	}
	err = s.store.Delete(ctx, s.def, key)
	if errors.Is(err, ErrNoRowsAffected) {
		return failed("Failed to delete " + strings.ToLower(s.def.Singular))
	}
	return err
}

func (s *Service) normalize(field Field, raw any) (any, *Error) {
	value, verr := normalize(field, raw)
	if verr != nil || field.Kind != KindPassword {
		return value, verr
	}
	if s.hash == nil {
		return nil, failed("Password hashing is not configured")
	}
	hashed, err := s.hash(value.(string))
	if err != nil {
		return nil, failed("Failed to hash password")
	}
	return hashed, nil
}

// derive recomputes derived columns whose source field is being written.
func (s *Service) derive(values map[string]string, changes Changes) (Changes, error) {
	var derived Changes
	for _, d := range s.def.Derived {
		source, ok := values[d.From]
		if !ok {
			continue
		}
		value := d.Fn(source)
		if value == "" {
			return nil, invalid("invalid_field", "Cannot derive "+d.Column+" from "+d.From)
		}
		if changes.Has(d.Column) {
			continue
		}
		derived = append(derived, Change{Column: d.Column, Value: value})
	}
	return derived, nil
}

func (s *Service) checkUnique(ctx context.Context, changes Changes, exclude any) error {
	unique := map[string]bool{}
	for _, field := range s.def.Fields {
		if field.Unique {
			unique[field.Column] = true
		}
	}
	for _, d := range s.def.Derived {
		if d.Unique {
			unique[d.Column] = true
		}
	}
	for _, change := range changes {
		if !unique[change.Column] {
			continue
		}
		exists, err := s.store.Exists(ctx, s.def, change.Column, change.Value, exclude)
		if err != nil {
			return err
		}
		if exists {
			return conflict(s.def.ConflictMessage)
		}
	}
	return nil
}
