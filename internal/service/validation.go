package service

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/redtape-api/internal/models"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
)

// NewValidator returns a validator that knows the report option lists and
// reports field names by their JSON keys.
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	registerOption(validate, "project_type", models.ProjectTypes)
	registerOption(validate, "issue_category", models.IssueCategories)
	registerOption(validate, "department", models.Departments)
	registerOption(validate, "timeline_impact", models.TimelineImpacts)
	registerPlainText(validate)
	return validate
}

var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// registerPlainText adds the plaintext tag: a value passes only when the strict
// policy would leave its text unchanged.
func registerPlainText(validate *validator.Validate) {
	policy := bluemonday.StrictPolicy()
	validate.RegisterValidation("plaintext", func(fl validator.FieldLevel) bool {
		v := newlineNormalizer.Replace(fl.Field().String())
		return html.UnescapeString(policy.Sanitize(v)) == html.UnescapeString(v)
	})
}

func registerOption(validate *validator.Validate, tag string, options []string) {
	validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return models.Contains(options, fl.Field().String())
	})
}

// validationError converts validator output into a 422 with one message per field.
func validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := fieldKey(fe)
		if _, exists := fields[key]; exists {
			continue
		}
		fields[key] = fieldMessage(fe)
	}
	e := appErrors.Validation(message, fields)
	e.Err = err
	return e
}

// fieldKey strips the struct prefix and slice index from a namespace,
// e.g. SubmitReportRequest.departments[1] becomes departments.
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		ns = ns[idx+1:]
	}
	if idx := strings.Index(ns, "["); idx >= 0 {
		ns = ns[:idx]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "can't be blank"
	case "email":
		return "is invalid"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("is too short (minimum is %s characters)", fe.Param())
		}
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
		}
		return fmt.Sprintf("must have at most %s entries", fe.Param())
	case "eqfield":
		return "doesn't match " + strings.ToLower(fe.Param())
	case "plaintext":
		return "must not contain markup"
	case "project_type", "issue_category", "department", "timeline_impact":
		return "is not included in the list"
	default:
		return "is invalid"
	}
}
