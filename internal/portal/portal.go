// Package portal declares the school portal entities on top of the generic resource component.
package portal

import (
	"schoolportal/internal/auth"
	"schoolportal/internal/resource"
)

const (
	AssignmentCommentsTable = "assignment_comments"
	ResourceCommentsTable   = "resource_comments"
	WeekCommentsTable       = "week_comments"
)

func Students() *resource.Definition {
	return &resource.Definition{
		Name:      "students",
		Singular:  "Student",
		Table:     "users",
		Key:       "student_id",
		KeyParams: []string{"student_id", "id"},
		BodyKey:   "student_id",
		Columns: []resource.Column{
			{Source: "student_id", As: "id"},
			{Source: "name"},
			{Source: "email"},
			{Source: "created_at"},
		},
		SearchColumns: []string{"name", "student_id", "email"},
		SortColumns:   []string{"name", "student_id", "email"},
		DefaultSort:   "name",
		Fields: []resource.Field{
			{Name: "name", Column: "name", Kind: resource.KindText, Required: true},
			{Name: "email", Column: "email", Kind: resource.KindEmail, Required: true, Unique: true},
			{Name: "password", Column: "password_hash", Kind: resource.KindPassword, Required: true, CreateOnly: true},
		},
		Derived: []resource.Derivation{
			{Column: "student_id", From: "email", Unique: true, Fn: auth.EmailLocalPart},
		},
		Scope:           map[string]any{"is_admin": false},
		ConflictMessage: "Student email or ID already exists",
	}
}

func Assignments() *resource.Definition {
	return &resource.Definition{
		Name:       "assignments",
		Singular:   "Assignment",
		Table:      "assignments",
		Key:        "id",
		NumericKey: true,
		KeyParams:  []string{"id", "assignment_id"},
		BodyKey:    "id",
		Columns: []resource.Column{
			{Source: "id"},
			{Source: "title"},
			{Source: "description"},
			{Source: "due_date"},
			{Source: "files"},
			{Source: "created_at"},
			{Source: "updated_at"},
		},
		SearchColumns: []string{"title", "description"},
		SortColumns:   []string{"title", "due_date", "created_at"},
		DefaultSort:   "created_at",
		Fields: []resource.Field{
			{Name: "title", Column: "title", Kind: resource.KindText, Required: true},
			{Name: "description", Column: "description", Kind: resource.KindText, Required: true},
			{Name: "due_date", Column: "due_date", Kind: resource.KindDate, Required: true},
			{Name: "files", Column: "files", Kind: resource.KindList},
		},
		Touch:    "updated_at",
		Children: []resource.Child{{Table: AssignmentCommentsTable, ForeignKey: "assignment_id"}},
	}
}

func Resources() *resource.Definition {
	return &resource.Definition{
		Name:       "resources",
		Singular:   "Resource",
		Table:      "resources",
		Key:        "id",
		NumericKey: true,
		KeyParams:  []string{"id", "resource_id"},
		BodyKey:    "id",
		Columns: []resource.Column{
			{Source: "id"},
			{Source: "title"},
			{Source: "description"},
			{Source: "link"},
			{Source: "created_at"},
		},
		SearchColumns: []string{"title", "description"},
		SortColumns:   []string{"title", "created_at"},
		DefaultSort:   "created_at",
		Fields: []resource.Field{
			{Name: "title", Column: "title", Kind: resource.KindText, Required: true},
			{Name: "description", Column: "description", Kind: resource.KindText},
			{Name: "link", Column: "link", Kind: resource.KindURL, Required: true},
		},
		Children: []resource.Child{{Table: ResourceCommentsTable, ForeignKey: "resource_id"}},
	}
}

func Weeks() *resource.Definition {
	return &resource.Definition{
		Name:      "weeks",
		Singular:  "Week",
		Table:     "weeks",
		Key:       "week_id",
		KeyParams: []string{"week_id", "id"},
		BodyKey:   "week_id",
		Columns: []resource.Column{
			{Source: "week_id"},
			{Source: "title"},
			{Source: "start_date"},
			{Source: "description"},
			{Source: "links"},
			{Source: "created_at"},
			{Source: "updated_at"},
		},
		SearchColumns: []string{"title", "description"},
		SortColumns:   []string{"title", "start_date", "created_at"},
		DefaultSort:   "start_date",
		Fields: []resource.Field{
			{Name: "week_id", Column: "week_id", Kind: resource.KindText, Required: true, Unique: true, Immutable: true},
			{Name: "title", Column: "title", Kind: resource.KindText, Required: true},
			{Name: "start_date", Column: "start_date", Kind: resource.KindDate, Required: true},
			{Name: "description", Column: "description", Kind: resource.KindText, Required: true},
			{Name: "links", Column: "links", Kind: resource.KindList},
		},
		Touch:           "updated_at",
		Children:        []resource.Child{{Table: WeekCommentsTable, ForeignKey: "week_id"}},
		ConflictMessage: "Week ID already exists",
	}
}

// Catalog holds one service per entity, all sharing a store.
type Catalog struct {
	Students    *resource.Service
	Assignments *resource.Service
	Resources   *resource.Service
	Weeks       *resource.Service

	AssignmentComments *resource.Comments
	ResourceComments   *resource.Comments
	WeekComments       *resource.Comments
}

func NewCatalog(store resource.Store, hash func(string) (string, error)) *Catalog {
	assignments := Assignments()
	resources := Resources()
	weeks := Weeks()
	return &Catalog{
		Students:    resource.NewService(Students(), store, resource.WithPasswordHasher(hash)),
		Assignments: resource.NewService(assignments, store),
		Resources:   resource.NewService(resources, store),
		Weeks:       resource.NewService(weeks, store),
		AssignmentComments: resource.NewComments(resource.CommentSpec{
			Table: AssignmentCommentsTable, ParentColumn: "assignment_id", Parent: assignments,
		}, store),
		ResourceComments: resource.NewComments(resource.CommentSpec{
			Table: ResourceCommentsTable, ParentColumn: "resource_id", Parent: resources,
		}, store),
		WeekComments: resource.NewComments(resource.CommentSpec{
			Table: WeekCommentsTable, ParentColumn: "week_id", Parent: weeks,
		}, store),
	}
}
