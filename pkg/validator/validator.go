package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FormatValidationError flattens binding errors into one line, for JSON endpoints.
func FormatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, fieldError := range validationErrors {
			messages = append(messages, getFieldErrorMessage(fieldError))
		}
		return strings.Join(messages, "; ")
	}
	return err.Error()
}

// FieldErrors maps each failing struct field to a human readable message.
// Errors that are not validation errors end up under the "_form" key.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			if _, exists := out[fieldError.Field()]; exists {
				continue
			}
			out[fieldError.Field()] = getFieldErrorMessage(fieldError)
		}
		return out
	}
	out["_form"] = "The submitted form could not be read."
	return out
}

func getFieldErrorMessage(fe validator.FieldError) string {
	field := getFieldName(fe.Field())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required.", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address.", field)
	case "min":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at least %s characters long.", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s.", field, fe.Param())
	case "max":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("%s must be at most %s characters long.", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s has an unsupported value.", field)
	case "eqfield":
		return fmt.Sprintf("%s must match %s.", field, getFieldName(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid.", field)
	}
}

func getFieldName(field string) string {
	fieldNames := map[string]string{
		"Username":        "Username",
		"Email":           "Email",
		"Password":        "Password",
		"ConfirmPassword": "Password confirmation",
		"Role":            "Role",
		"FirstName":       "First name",
		"LastName":        "Last name",
		"Department":      "Department",
		"SystemName":      "System name",
		"Title":           "Title",
		"Description":     "Description",
		"Category":        "Category",
		"Priority":        "Priority",
		"Status":          "Status",
		"Comment":         "Comment",
		"AdminComment":    "Admin comment",
		"AssignedTo":      "Assignee",
	}

	if name, ok := fieldNames[field]; ok {
		return name
	}
	return field
}
