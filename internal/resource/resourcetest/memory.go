// Package resourcetest provides an in-memory resource.Store for tests.
package resourcetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"schoolportal/internal/auth"
	"schoolportal/internal/resource"
)

type row map[string]any

// MemoryStore keeps rows per table. It also serves the users table as auth.Accounts.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string][]row
	seq    map[string]int64
	clock  time.Time

	// Fail, when set, is consulted before every write; a non-nil result aborts the write untouched.
	Fail func(op, table string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: map[string][]row{},
		seq:    map[string]int64{},
		clock:  time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

// Count returns the number of rows in a table, scope ignored.
func (m *MemoryStore) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tables[table])
}

func (m *MemoryStore) List(_ context.Context, def *resource.Definition, q resource.Query) ([]resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []row
	for _, r := range m.tables[def.Table] {
		if !inScope(def, r) || !matches(r, q.Filter) {
			continue
		}
		if q.Search != "" && !contains(r, def.SearchColumns, q.Search) {
			continue
		}
		matched = append(matched, r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		cmp := compare(matched[i][q.Sort], matched[j][q.Sort])
		if cmp == 0 {
			cmp = compare(matched[i]["id"], matched[j]["id"])
		}
		if q.Desc {
			return cmp > 0
		}
		return cmp < 0
	})

	records := make([]resource.Record, 0, len(matched))
	for _, r := range matched {
		records = append(records, project(def, r))
	}
	return records, nil
}

func (m *MemoryStore) Get(_ context.Context, def *resource.Definition, key any) (resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, _ := m.find(def, key)
	if r == nil {
		return nil, resource.ErrNotFound
	}
	return project(def, r), nil
}

func (m *MemoryStore) Exists(_ context.Context, def *resource.Definition, column string, value any, exclude any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.tables[def.Table] {
		if exclude != nil && equal(r[def.Key], exclude) {
			continue
		}
		if equal(r[column], value) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) Insert(_ context.Context, def *resource.Definition, changes resource.Changes) (resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("insert", def.Table); err != nil {
		return nil, err
	}
	r := row{}
	for column, value := range def.Scope {
		r[column] = value
	}
	for _, change := range changes {
		r[change.Column] = clone(change.Value)
	}
	now := m.tick()
	m.seq[def.Table]++
	r["id"] = m.seq[def.Table]
	r["created_at"] = now
	if def.Touch != "" {
		r[def.Touch] = now
	}
	m.tables[def.Table] = append(m.tables[def.Table], r)
	return project(def, r), nil
}

func (m *MemoryStore) Update(_ context.Context, def *resource.Definition, key any, changes resource.Changes) (resource.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail("update", def.Table); err != nil {
		return nil, err
	}
	r, _ := m.find(def, key)
	if r == nil {
		return nil, resource.ErrNotFound
	}
	for _, change := range changes {
		r[change.Column] = clone(change.Value)
	}
	if def.Touch != "" {
		r[def.Touch] = m.tick()
	}
	return project(def, r), nil
}

func (m *MemoryStore) Delete(_ context.Context, def *resource.Definition, key any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, child := range def.Children {
		if err := m.fail("delete", child.Table); err != nil {
			return err
		}
	}
	if err := m.fail("delete", def.Table); err != nil {
		return err
	}
	for _, child := range def.Children {
		m.tables[child.Table] = remove(m.tables[child.Table], func(r row) bool {
			return equal(r[child.ForeignKey], key)
		})
	}
	before := len(m.tables[def.Table])
	m.tables[def.Table] = remove(m.tables[def.Table], func(r row) bool {
		return inScope(def, r) && equal(r[def.Key], key)
	})
	if len(m.tables[def.Table]) == before {
		return resource.ErrNoRowsAffected
	}
	return nil
}

func (m *MemoryStore) AccountByEmail(_ context.Context, email string) (auth.Account, error) {
	return m.account("email", email)
}

func (m *MemoryStore) AccountByStudentID(_ context.Context, studentID string) (auth.Account, error) {
	return m.account("student_id", studentID)
}

func (m *MemoryStore) SetPasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.tables["users"] {
		if equal(r["id"], id) {
			r["password_hash"] = hash
			return nil
		}
	}
	return resource.ErrNotFound
}

func (m *MemoryStore) CreateAccount(_ context.Context, account auth.Account) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.tables["users"] {
		if equal(r["email"], account.Email) || equal(r["student_id"], account.StudentID) {
			return auth.Account{}, resource.ErrConflict
		}
	}
	m.seq["users"]++
	account.ID = m.seq["users"]
	m.tables["users"] = append(m.tables["users"], row{
		"id":            account.ID,
		"student_id":    account.StudentID,
		"name":          account.Name,
		"email":         account.Email,
		"password_hash": account.PasswordHash,
		"is_admin":      account.IsAdmin,
		"created_at":    m.tick(),
	})
	return account, nil
}

func (m *MemoryStore) account(column, value string) (auth.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.tables["users"] {
		if !equal(r[column], value) {
			continue
		}
		account := auth.Account{}
		account.ID, _ = r["id"].(int64)
		account.StudentID, _ = r["student_id"].(string)
		account.Name, _ = r["name"].(string)
		account.Email, _ = r["email"].(string)
		account.PasswordHash, _ = r["password_hash"].(string)
		account.IsAdmin, _ = r["is_admin"].(bool)
		return account, nil
	}
	return auth.Account{}, resource.ErrNotFound
}

func (m *MemoryStore) find(def *resource.Definition, key any) (row, int) {
	for i, r := range m.tables[def.Table] {
		if inScope(def, r) && equal(r[def.Key], key) {
			return r, i
		}
	}
	return nil, -1
}

func (m *MemoryStore) fail(op, table string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, table)
}

func (m *MemoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func project(def *resource.Definition, r row) resource.Record {
	record := resource.Record{}
	for _, col := range def.Columns {
		record[col.Name()] = clone(r[col.Source])
	}
	return record
}

func inScope(def *resource.Definition, r row) bool {
	for column, value := range def.Scope {
		if !equal(r[column], value) {
			return false
		}
	}
	return true
}

func matches(r row, filter resource.Changes) bool {
	for _, f := range filter {
		if !equal(r[f.Column], f.Value) {
			return false
		}
	}
	return true
}

func contains(r row, columns []string, search string) bool {
	needle := strings.ToLower(search)
	for _, column := range columns {
		if text, ok := r[column].(string); ok && strings.Contains(strings.ToLower(text), needle) {
			return true
		}
	}
	return false
}

func remove(rows []row, drop func(row) bool) []row {
	kept := rows[:0]
	for _, r := range rows {
		if !drop(r) {
			kept = append(kept, r)
		}
	}
	return kept
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func compare(a, b any) int {
	switch av := a.(type) {
	case int64:
		bv, _ := b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case time.Time:
		bv, _ := b.(time.Time)
		return av.Compare(bv)
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func clone(value any) any {
	if list, ok := value.([]string); ok {
		return append([]string{}, list...)
	}
	return value
}
