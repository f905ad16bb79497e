package http

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"schoolportal/internal/auth"
	"schoolportal/internal/resource"
)

func (s *Server) buildEndpoints() []endpoint {
	c := s.catalog
	return []endpoint{
		{
			path: "/api/students",
			resolve: func(q url.Values) string {
				if action := strings.TrimSpace(q.Get("action")); action != "" {
					if action == "change_password" {
						return "password"
					}
					return action
				}
				return "students"
			},
			resources: map[string]map[string]route{
				"students": entityRoutes(c.Students, auth.RoleAdmin),
				"password": {http.MethodPost: {handle: s.handleChangePassword, role: roleLoggedIn}},
			},
		},
		{
			path: "/api/assignments",
			resolve: func(q url.Values) string {
				return actionOrDefault(q, "resource", "assignments")
			},
			resources: map[string]map[string]route{
				"assignments": entityRoutes(c.Assignments, roleLoggedIn),
				"comments":    commentRoutes(c.AssignmentComments),
			},
		},
		{
			path: "/api/resources",
			resolve: func(q url.Values) string {
				switch action := strings.TrimSpace(q.Get("action")); action {
				case "":
					return "resources"
				case "comments", "comment", "delete_comment":
					return "comments"
				default:
					return action
				}
			},
			resources: map[string]map[string]route{
				"resources": entityRoutes(c.Resources, roleLoggedIn),
				"comments":  commentRoutes(c.ResourceComments),
			},
		},
		{
			path: "/api/weeks",
			resolve: func(q url.Values) string {
				return actionOrDefault(q, "resource", "weeks")
			},
			resources: map[string]map[string]route{
				"weeks":    entityRoutes(c.Weeks, roleLoggedIn),
				"comments": commentRoutes(c.WeekComments),
			},
		},
		{
			path: "/api/auth",
			resolve: func(q url.Values) string {
				return actionOrDefault(q, "action", "login")
			},
			resources: map[string]map[string]route{
				"login": {http.MethodPost: {handle: s.handleLogin, role: rolePublic}},
				"logout": {
					http.MethodGet:  {handle: s.handleLogout, role: rolePublic},
					http.MethodPost: {handle: s.handleLogout, role: rolePublic},
				},
				"session": {http.MethodGet: {handle: s.handleSession, role: roleLoggedIn}},
			},
		},
	}
}

// entityRoutes maps the four verbs onto a resource service; writes always need an admin.
func entityRoutes(svc *resource.Service, readRole string) map[string]route {
	return map[string]route{
		http.MethodGet:    {handle: listOrGet(svc), role: readRole},
		http.MethodPost:   {handle: create(svc), role: auth.RoleAdmin},
		http.MethodPut:    {handle: update(svc), role: auth.RoleAdmin},
		http.MethodDelete: {handle: remove(svc), role: auth.RoleAdmin},
	}
}

func commentRoutes(comments *resource.Comments) map[string]route {
	return map[string]route{
		http.MethodGet:    {handle: listComments(comments), role: roleLoggedIn},
		http.MethodPost:   {handle: createComment(comments), role: roleLoggedIn},
		http.MethodDelete: {handle: deleteComment(comments), role: auth.RoleAdmin},
	}
}

func listOrGet(svc *resource.Service) handlerFunc {
	return func(ctx context.Context, req *apiRequest) (reply, error) {
		if key := svc.Definition().KeyFrom(req.Query); key != "" {
			record, err := svc.Get(ctx, key)
			if err != nil {
				return reply{}, err
			}
			return reply{status: http.StatusOK, body: envelope{"data": record}}, nil
		}
		records, err := svc.List(ctx, resource.ListQuery{
			Search: req.Query.Get("search"),
			Sort:   req.Query.Get("sort"),
			Order:  req.Query.Get("order"),
		})
		if err != nil {
			return reply{}, err
		}
		return reply{status: http.StatusOK, body: envelope{"data": records, "count": len(records)}}, nil
	}
}

func create(svc *resource.Service) handlerFunc {
	return func(ctx context.Context, req *apiRequest) (reply, error) {
		record, err := svc.Create(ctx, req.Body)
		if err != nil {
			return reply{}, err
		}
		return reply{status: http.StatusCreated, body: envelope{
			"message": svc.Definition().Singular + " created successfully",
			"data":    record,
		}}, nil
	}
}

func update(svc *resource.Service) handlerFunc {
	return func(ctx context.Context, req *apiRequest) (reply, error) {
		record, err := svc.Update(ctx, req.Body)
		if err != nil {
			return reply{}, err
		}
		return reply{status: http.StatusOK, body: envelope{
			"message": svc.Definition().Singular + " updated successfully",
			"data":    record,
		}}, nil
	}
}

func remove(svc *resource.Service) handlerFunc {
	return func(ctx context.Context, req *apiRequest) (reply, error) {
		def := svc.Definition()
		key := def.KeyFrom(req.Query)
		if key == "" {
			key = def.KeyFromBody(req.Body)
		}
		if err := svc.Delete(ctx, key); err != nil {
			return reply{}, err
		}
		return reply{status: http.StatusOK, body: envelope{"message": def.Singular + " deleted successfully"}}, nil
	}
}

func listComments(comments *resource.Comments) handlerFunc {
	return func(ctx context.Context, req *apiRequest) (reply, error) {
		parent := comments.ParentFrom(req.Query)
		if parent == "" {
			if key := comments.Definition().KeyFrom(req.Query); key != "" {
				record, err := comments.Get(ctx, key)
				if err != nil {
					return reply{}, err
				}
				return reply{status: http.StatusOK, body: envelope{"data": record}}, nil
			}
		}
		records, err := comments.ListByParent(ctx, parent)
		if err != nil {
			return reply{}, err
		}
		return reply{status: http.StatusOK, body: envelope{"data": records, "count": len(records)}}, nil
	}
}

func createComment(comments *resource.Comments) handlerFunc {
	return func(ctx context.Context, req *apiRequest) (reply, error) {
		record, err := comments.Create(ctx, req.Body)
		if err != nil {
			return reply{}, err
		}
		return reply{status: http.StatusCreated, body: envelope{
			"message": "Comment added successfully",
			"data":    record,
		}}, nil
	}
}

func deleteComment(comments *resource.Comments) handlerFunc {
	return func(ctx context.Context, req *apiRequest) (reply, error) {
		def := comments.Definition()
		key := def.KeyFrom(req.Query)
		if key == "" {
			key = def.KeyFromBody(req.Body)
		}
		if err := comments.Delete(ctx, key); err != nil {
			return reply{}, err
		}
		return reply{status: http.StatusOK, body: envelope{"message": "Comment deleted successfully"}}, nil
	}
}
