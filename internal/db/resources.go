package db

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"schoolportal/internal/resource"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (s *Store) List(ctx context.Context, def *resource.Definition, q resource.Query) ([]resource.Record, error) {
	query, args, err := listQuery(def, q).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	records := make([]resource.Record, 0, len(found))
	for _, row := range found {
		records = append(records, toRecord(def, row))
	}
	return records, nil
}

func (s *Store) Get(ctx context.Context, def *resource.Definition, key any) (resource.Record, error) {
	query, args, err := getQuery(def, key).ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, def, query, args)
}

func (s *Store) Exists(ctx context.Context, def *resource.Definition, column string, value any, exclude any) (bool, error) {
	query, args, err := existsQuery(def, column, value, exclude).ToSql()
	if err != nil {
		return false, err
	}
	var one int
	if err := s.Pool.QueryRow(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) Insert(ctx context.Context, def *resource.Definition, changes resource.Changes) (resource.Record, error) {
	query, args, err := insertQuery(def, changes).ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, def, query, args)
}

func (s *Store) Update(ctx context.Context, def *resource.Definition, key any, changes resource.Changes) (resource.Record, error) {
	query, args, err := updateQuery(def, key, changes).ToSql()
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, def, query, args)
}

func (s *Store) Delete(ctx context.Context, def *resource.Definition, key any) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, child := range def.Children {
			query, args, err := psql.Delete(child.Table).Where(sq.Eq{child.ForeignKey: key}).ToSql()
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return err
			}
		}
		query, args, err := deleteQuery(def, key).ToSql()
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return resource.ErrNoRowsAffected
		}
		return nil
	})
}

func (s *Store) queryOne(ctx context.Context, def *resource.Definition, query string, args []any) (resource.Record, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToMap)
	if err != nil {
		return nil, mapError(err)
	}
	return toRecord(def, row), nil
}

func listQuery(def *resource.Definition, q resource.Query) sq.SelectBuilder {
	builder := scoped(def, psql.Select(def.SelectColumns()...).From(def.Table))
	for _, filter := range q.Filter {
		builder = builder.Where(sq.Eq{filter.Column: filter.Value})
	}
	if q.Search != "" && len(def.SearchColumns) > 0 {
		pattern := "%" + escapeLike(q.Search) + "%"
		search := sq.Or{}
		for _, col := range def.SearchColumns {
			search = append(search, sq.ILike{col: pattern})
		}
		builder = builder.Where(search)
	}
	direction := "ASC"
	if q.Desc {
		direction = "DESC"
	}
	builder = builder.OrderBy(q.Sort + " " + direction)
	if q.Sort != def.Key {
		builder = builder.OrderBy(def.Key + " ASC")
	}
	return builder
}

func getQuery(def *resource.Definition, key any) sq.SelectBuilder {
	return scoped(def, psql.Select(def.SelectColumns()...).From(def.Table)).
		Where(sq.Eq{def.Key: key}).
		Limit(1)
}

func existsQuery(def *resource.Definition, column string, value any, exclude any) sq.SelectBuilder {
	builder := psql.Select("1").From(def.Table).Where(sq.Eq{column: value})
	if exclude != nil {
		builder = builder.Where(sq.NotEq{def.Key: exclude})
	}
	return builder.Limit(1)
}

func insertQuery(def *resource.Definition, changes resource.Changes) sq.InsertBuilder {
	columns := make([]string, 0, len(def.Scope)+len(changes))
	values := make([]any, 0, len(def.Scope)+len(changes))
	for _, column := range scopeColumns(def) {
		columns = append(columns, column)
		values = append(values, def.Scope[column])
	}
	for _, change := range changes {
		columns = append(columns, change.Column)
		values = append(values, dbValue(change.Value))
	}
	return psql.Insert(def.Table).
		Columns(columns...).
		Values(values...).
		Suffix("RETURNING " + strings.Join(def.SelectColumns(), ", "))
}

func updateQuery(def *resource.Definition, key any, changes resource.Changes) sq.UpdateBuilder {
	builder := psql.Update(def.Table)
	for _, change := range changes {
		builder = builder.Set(change.Column, dbValue(change.Value))
	}
	if def.Touch != "" {
		builder = builder.Set(def.Touch, sq.Expr("now()"))
	}
	builder = builder.Where(sq.Eq{def.Key: key})
	if len(def.Scope) > 0 {
		builder = builder.Where(sq.Eq(def.Scope))
	}
	return builder.Suffix("RETURNING " + strings.Join(def.SelectColumns(), ", "))
}

func deleteQuery(def *resource.Definition, key any) sq.DeleteBuilder {
	builder := psql.Delete(def.Table).Where(sq.Eq{def.Key: key})
	if len(def.Scope) > 0 {
		builder = builder.Where(sq.Eq(def.Scope))
	}
	return builder
}

func scoped(def *resource.Definition, builder sq.SelectBuilder) sq.SelectBuilder {
	if len(def.Scope) == 0 {
		return builder
	}
	return builder.Where(sq.Eq(def.Scope))
}

func scopeColumns(def *resource.Definition) []string {
	columns := make([]string, 0, len(def.Scope))
	for column := range def.Scope {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return columns
}

// dbValue encodes list values as JSON text for jsonb columns.
func dbValue(value any) any {
	if list, ok := value.([]string); ok {
		encoded, err := json.Marshal(list)
		if err != nil {
			return "[]"
		}
		return string(encoded)
	}
	return value
}

func toRecord(def *resource.Definition, row map[string]any) resource.Record {
	record := resource.Record(row)
	for _, field := range def.Fields {
		if field.Kind != resource.KindDate {
			continue
		}
		name := def.OutputName(field.Column)
		if t, ok := record[name].(time.Time); ok {
			record[name] = t.Format("2006-01-02")
		}
	}
	return record
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return resource.ErrNotFound
	case isUniqueViolation(err):
		return resource.ErrConflict
	}
	return err
}
