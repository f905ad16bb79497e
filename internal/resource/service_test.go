package resource_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"schoolportal/internal/portal"
	"schoolportal/internal/resource"
	"schoolportal/internal/resource/resourcetest"
)

func plainHash(password string) (string, error) {
	return "hashed:" + password, nil
}

func newCatalog() (*portal.Catalog, *resourcetest.MemoryStore) {
	store := resourcetest.NewMemoryStore()
	return portal.NewCatalog(store, plainHash), store
}

func body(t *testing.T, raw string) map[string]any {
	t.Helper()
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	var out map[string]any
	if err := decoder.Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func expectStatus(t *testing.T, err error, status int) *resource.Error {
	t.Helper()
	var rerr *resource.Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected resource error with status %d, got %v", status, err)
	}
	if rerr.Status != status {
		t.Fatalf("expected status %d, got %d (%s)", status, rerr.Status, rerr.Message)
	}
	return rerr
}

func TestCreateStudentDerivesID(t *testing.T) {
	catalog, store := newCatalog()
	ctx := context.Background()

	created, err := catalog.Students.Create(ctx, body(t, `{"name":"Ann","email":"ann123@uni.edu","password":"longpass1"}`))
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if created["id"] != "ann123" || created["name"] != "Ann" || created["email"] != "ann123@uni.edu" {
		t.Fatalf("unexpected created student %v", created)
	}
	if _, ok := created["password"]; ok {
		t.Fatalf("password must not be returned")
	}

	fetched, err := catalog.Students.Get(ctx, "ann123")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if fetched["id"] != "ann123" || fetched["email"] != "ann123@uni.edu" {
		t.Fatalf("unexpected fetched student %v", fetched)
	}

	account, err := store.AccountByStudentID(ctx, "ann123")
	if err != nil {
		t.Fatalf("account lookup: %v", err)
	}
	if account.PasswordHash != "hashed:longpass1" || account.IsAdmin {
		t.Fatalf("unexpected stored account %+v", account)
	}
}

func TestCreateReportsAllMissingFields(t *testing.T) {
	catalog, store := newCatalog()

	_, err := catalog.Weeks.Create(context.Background(), body(t, `{"title":"Intro","description":"  "}`))
	rerr := expectStatus(t, err, http.StatusBadRequest)
	if strings.Join(rerr.Missing, ",") != "week_id,start_date,description" {
		t.Fatalf("unexpected missing list %v", rerr.Missing)
	}
	if store.Count("weeks") != 0 {
		t.Fatalf("expected no week persisted")
	}
}

func TestCreateValidatesFormats(t *testing.T) {
	catalog, store := newCatalog()
	ctx := context.Background()

	cases := []struct {
		svc  *resource.Service
		body string
	}{
		{catalog.Students, `{"name":"Ann","email":"not-an-email","password":"longpass1"}`},
		{catalog.Students, `{"name":"Ann","email":"ann@uni.edu","password":"short"}`},
		{catalog.Assignments, `{"title":"T","description":"D","due_date":"2024-2-30"}`},
		{catalog.Assignments, `{"title":"T","description":"D","due_date":"2024-02-30"}`},
		{catalog.Assignments, `{"title":"T","description":"D","due_date":"2024-02-01","files":"a.pdf"}`},
		{catalog.Resources, `{"title":"T","link":"not a url"}`},
		{catalog.Weeks, `{"week_id":"w1","title":"T","start_date":"2024-02-01","description":"D","links":[1]}`},
	}
	for _, tc := range cases {
		if _, err := tc.svc.Create(ctx, body(t, tc.body)); err == nil {
			t.Fatalf("expected validation error for %s", tc.body)
		} else {
			expectStatus(t, err, http.StatusBadRequest)
		}
	}
	if store.Count("users")+store.Count("assignments")+store.Count("resources")+store.Count("weeks") != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestCreateConflicts(t *testing.T) {
	catalog, store := newCatalog()
	ctx := context.Background()

	if _, err := catalog.Students.Create(ctx, body(t, `{"name":"Ann","email":"ann@uni.edu","password":"longpass1"}`)); err != nil {
		t.Fatalf("create error: %v", err)
	}
	_, err := catalog.Students.Create(ctx, body(t, `{"name":"Ann 2","email":"ann@uni.edu","password":"longpass1"}`))
	expectStatus(t, err, http.StatusConflict)
	_, err = catalog.Students.Create(ctx, body(t, `{"name":"Ann 3","email":"ann@other.edu","password":"longpass1"}`))
	rerr := expectStatus(t, err, http.StatusConflict)
	if rerr.Message != "Student email or ID already exists" {
		t.Fatalf("unexpected conflict message %q", rerr.Message)
	}
	if store.Count("users") != 1 {
		t.Fatalf("expected one user, got %d", store.Count("users"))
	}

	week := `{"week_id":"w1","title":"Intro","start_date":"2024-09-02","description":"First week","links":["https://a.example"]}`
	if _, err := catalog.Weeks.Create(ctx, body(t, week)); err != nil {
		t.Fatalf("create week: %v", err)
	}
	_, err = catalog.Weeks.Create(ctx, body(t, week))
	expectStatus(t, err, http.StatusConflict)
	if store.Count("weeks") != 1 {
		t.Fatalf("expected one week, got %d", store.Count("weeks"))
	}
}

func TestRoundTripAssignment(t *testing.T) {
	catalog, _ := newCatalog()
	ctx := context.Background()

	created, err := catalog.Assignments.Create(ctx, body(t, `{"title":"Essay","description":"Write","due_date":"2024-10-01","files":["a.pdf","b.pdf"]}`))
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	id, ok := created["id"].(int64)
	if !ok {
		t.Fatalf("expected numeric id, got %T", created["id"])
	}

	fetched, err := catalog.Assignments.Get(ctx, "1")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if fetched["id"] != id || fetched["title"] != "Essay" || fetched["description"] != "Write" || fetched["due_date"] != "2024-10-01" {
		t.Fatalf("unexpected assignment %v", fetched)
	}
	files, _ := fetched["files"].([]string)
	if len(files) != 2 || files[0] != "a.pdf" || files[1] != "b.pdf" {
		t.Fatalf("unexpected files %v", fetched["files"])
	}

	_, err = catalog.Assignments.Get(ctx, "abc")
	expectStatus(t, err, http.StatusBadRequest)
	_, err = catalog.Assignments.Get(ctx, "")
	expectStatus(t, err, http.StatusBadRequest)
	_, err = catalog.Assignments.Get(ctx, "99")
	expectStatus(t, err, http.StatusNotFound)
}

func TestUpdateRules(t *testing.T) {
	catalog, _ := newCatalog()
	ctx := context.Background()
	for _, raw := range []string{
		`{"name":"Ann","email":"ann123@uni.edu","password":"longpass1"}`,
		`{"name":"Bob","email":"bob@uni.edu","password":"longpass1"}`,
	} {
		if _, err := catalog.Students.Create(ctx, body(t, raw)); err != nil {
			t.Fatalf("create error: %v", err)
		}
	}

	_, err := catalog.Students.Update(ctx, body(t, `{"student_id":"ann123","email":"not-an-email"}`))
	expectStatus(t, err, http.StatusBadRequest)
	_, err = catalog.Students.Update(ctx, body(t, `{"student_id":"ann123"}`))
	rerr := expectStatus(t, err, http.StatusBadRequest)
	if rerr.Message != "No fields provided to update" {
		t.Fatalf("unexpected message %q", rerr.Message)
	}
	_, err = catalog.Students.Update(ctx, body(t, `{"student_id":"ann123","password":"otherpass1"}`))
	expectStatus(t, err, http.StatusBadRequest)
	_, err = catalog.Students.Update(ctx, body(t, `{"name":"X"}`))
	expectStatus(t, err, http.StatusBadRequest)
	_, err = catalog.Students.Update(ctx, body(t, `{"student_id":"ghost","name":"X"}`))
	expectStatus(t, err, http.StatusNotFound)
	_, err = catalog.Students.Update(ctx, body(t, `{"student_id":"ann123","email":"bob@uni.edu"}`))
	expectStatus(t, err, http.StatusConflict)

	unchanged, err := catalog.Students.Get(ctx, "ann123")
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if unchanged["email"] != "ann123@uni.edu" {
		t.Fatalf("expected email unchanged, got %v", unchanged["email"])
	}

	same, err := catalog.Students.Update(ctx, body(t, `{"student_id":"ann123","email":"ann123@uni.edu","name":"Ann B"}`))
	if err != nil {
		t.Fatalf("update with own email: %v", err)
	}
	if same["name"] != "Ann B" {
		t.Fatalf("expected updated name, got %v", same["name"])
	}

	moved, err := catalog.Students.Update(ctx, body(t, `{"student_id":"ann123","email":"annb@uni.edu"}`))
	if err != nil {
		t.Fatalf("update email: %v", err)
	}
	if moved["id"] != "annb" {
		t.Fatalf("expected re-derived id, got %v", moved["id"])
	}
	_, err = catalog.Students.Get(ctx, "ann123")
	expectStatus(t, err, http.StatusNotFound)
}

func TestUpdateWeekKeepsKey(t *testing.T) {
	catalog, _ := newCatalog()
	ctx := context.Background()
	if _, err := catalog.Weeks.Create(ctx, body(t, `{"week_id":"w1","title":"Intro","start_date":"2024-09-02","description":"D"}`)); err != nil {
		t.Fatalf("create week: %v", err)
	}
	updated, err := catalog.Weeks.Update(ctx, body(t, `{"week_id":"w1","title":"Welcome","links":["https://x.example"]}`))
	if err != nil {
		t.Fatalf("update week: %v", err)
	}
	if updated["week_id"] != "w1" || updated["title"] != "Welcome" || updated["description"] != "D" {
		t.Fatalf("unexpected week %v", updated)
	}
	_, err = catalog.Weeks.Update(ctx, body(t, `{"week_id":"w1","title":"   "}`))
	expectStatus(t, err, http.StatusBadRequest)
}

func TestListSearchSortOrder(t *testing.T) {
	catalog, _ := newCatalog()
	ctx := context.Background()
	for _, raw := range []string{
		`{"title":"Beta","description":"second","due_date":"2024-10-02"}`,
		`{"title":"Alpha","description":"first essay","due_date":"2024-10-03"}`,
		`{"title":"Gamma","description":"Essay three","due_date":"2024-10-01"}`,
	} {
		if _, err := catalog.Assignments.Create(ctx, body(t, raw)); err != nil {
			t.Fatalf("create error: %v", err)
		}
	}

	titles := func(records []resource.Record) string {
		names := make([]string, len(records))
		for i, r := range records {
			names[i], _ = r["title"].(string)
		}
		return strings.Join(names, ",")
	}

	all, err := catalog.Assignments.List(ctx, resource.ListQuery{Sort: "title; DROP TABLE assignments"})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if titles(all) != "Beta,Alpha,Gamma" {
		t.Fatalf("expected default created_at order, got %s", titles(all))
	}

	sorted, err := catalog.Assignments.List(ctx, resource.ListQuery{Sort: "due_date", Order: "DESC"})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if titles(sorted) != "Alpha,Beta,Gamma" {
		t.Fatalf("expected due_date desc order, got %s", titles(sorted))
	}

	found, err := catalog.Assignments.List(ctx, resource.ListQuery{Search: "ESSAY", Sort: "title", Order: "sideways"})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if titles(found) != "Alpha,Gamma" {
		t.Fatalf("expected search matches in title order, got %s", titles(found))
	}

	none, err := catalog.Assignments.List(ctx, resource.ListQuery{Search: "nothing"})
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", none)
	}
}

func TestDeleteCascadesComments(t *testing.T) {
	catalog, store := newCatalog()
	ctx := context.Background()
	if _, err := catalog.Weeks.Create(ctx, body(t, `{"week_id":"w1","title":"Intro","start_date":"2024-09-02","description":"D"}`)); err != nil {
		t.Fatalf("create week: %v", err)
	}
	for _, text := range []string{"first", "second"} {
		if _, err := catalog.WeekComments.Create(ctx, map[string]any{"week_id": "w1", "author": "Ann", "text": text}); err != nil {
			t.Fatalf("create comment: %v", err)
		}
	}

	comments, err := catalog.WeekComments.ListByParent(ctx, "w1")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 2 || comments[0]["text"] != "first" {
		t.Fatalf("expected comments oldest first, got %v", comments)
	}

	if err := catalog.Weeks.Delete(ctx, "w1"); err != nil {
		t.Fatalf("delete week: %v", err)
	}
	comments, err = catalog.WeekComments.ListByParent(ctx, "w1")
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if comments == nil || len(comments) != 0 {
		t.Fatalf("expected empty comment list, got %v", comments)
	}
	if store.Count("week_comments") != 0 {
		t.Fatalf("expected comments removed")
	}

	expectStatus(t, catalog.Weeks.Delete(ctx, "w1"), http.StatusNotFound)
	expectStatus(t, catalog.Weeks.Delete(ctx, ""), http.StatusBadRequest)
}

func TestDeleteFailureLeavesRows(t *testing.T) {
	catalog, store := newCatalog()
	ctx := context.Background()
	if _, err := catalog.Resources.Create(ctx, body(t, `{"title":"Docs","link":"https://go.dev"}`)); err != nil {
		t.Fatalf("create resource: %v", err)
	}
	if _, err := catalog.ResourceComments.Create(ctx, body(t, `{"resource_id":1,"author":"Ann","text":"useful"}`)); err != nil {
		t.Fatalf("create comment: %v", err)
	}

	store.Fail = func(op, table string) error {
		if op == "delete" && table == "resources" {
			return resource.ErrNoRowsAffected
		}
		return nil
	}
	expectStatus(t, catalog.Resources.Delete(ctx, "1"), http.StatusInternalServerError)
	if store.Count("resources") != 1 || store.Count("resource_comments") != 1 {
		t.Fatalf("expected rows kept after failed delete")
	}
}

func TestCommentRules(t *testing.T) {
	catalog, store := newCatalog()
	ctx := context.Background()

	_, err := catalog.WeekComments.Create(ctx, map[string]any{"week_id": "missing", "author": "Ann", "text": "hi"})
	expectStatus(t, err, http.StatusNotFound)
	if store.Count("week_comments") != 0 {
		t.Fatalf("expected no comment persisted")
	}

	if _, err := catalog.Assignments.Create(ctx, body(t, `{"title":"T","description":"D","due_date":"2024-10-01"}`)); err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	_, err = catalog.AssignmentComments.Create(ctx, map[string]any{"assignment_id": "1", "author": "Ann", "text": "   "})
	rerr := expectStatus(t, err, http.StatusBadRequest)
	if len(rerr.Missing) != 1 || rerr.Missing[0] != "text" {
		t.Fatalf("expected blank text reported, got %v", rerr.Missing)
	}

	created, err := catalog.AssignmentComments.Create(ctx, map[string]any{"assignment_id": "1", "author": "Ann", "text": "  trimmed  "})
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if created["text"] != "trimmed" || created["assignment_id"] != int64(1) {
		t.Fatalf("unexpected comment %v", created)
	}

	_, err = catalog.AssignmentComments.ListByParent(ctx, "")
	expectStatus(t, err, http.StatusBadRequest)
	expectStatus(t, catalog.AssignmentComments.Delete(ctx, "42"), http.StatusNotFound)
	if err := catalog.AssignmentComments.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete comment: %v", err)
	}
}
