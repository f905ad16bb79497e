package resource

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// textValue converts a decoded JSON scalar into trimmed text.
func textValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	default:
		return "", false
	}
}

// blank reports whether a body value counts as absent for required checks.
func blank(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func fieldLabel(name string) string {
	label := strings.ReplaceAll(name, "_", " ")
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// normalize validates one present field and returns the value to store.
func normalize(field Field, raw any) (any, *Error) {
	if field.Kind == KindList {
		return listValue(field, raw)
	}

	text, ok := textValue(raw)
	if !ok {
		return nil, invalid("invalid_field", fieldLabel(field.Name)+" must be a string")
	}

	switch field.Kind {
	case KindEmail:
		if validate.Var(text, "required,email") != nil {
			return nil, invalid("invalid_email", "Invalid email format")
		}
	case KindDate:
		if validate.Var(text, "required,datetime=2006-01-02") != nil {
			return nil, invalid("invalid_date", "Invalid date format. Use YYYY-MM-DD")
		}
	case KindURL:
		if validate.Var(text, "required,url") != nil {
			return nil, invalid("invalid_url", "Invalid URL format")
		}
	case KindPassword:
		// Password length counts raw characters, whitespace included.
		password, _ := raw.(string)
		if validate.Var(password, "min=8") != nil {
			return nil, invalid("weak_password", "Password must be at least 8 characters")
		}
		return password, nil
	}
	return text, nil
}

func listValue(field Field, raw any) (any, *Error) {
	if raw == nil {
		return []string{}, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, invalid("invalid_field", fieldLabel(field.Name)+" must be an array of strings")
	}
	values := make([]string, 0, len(items))
	for _, item := range items {
		text, ok := item.(string)
		if !ok {
			return nil, invalid("invalid_field", fieldLabel(field.Name)+" must be an array of strings")
		}
		values = append(values, text)
	}
	return values, nil
}
