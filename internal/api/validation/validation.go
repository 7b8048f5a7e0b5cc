// Package validation decodes JSON request bodies and validates them with custom validators.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/clipmark/highlights/internal/api/response"
)

// ErrBodyTooLarge is returned by DecodeJSON when the body exceeds the MaxBody limit.
var ErrBodyTooLarge = errors.New("request body too large")

// ErrMalformedBody is returned by DecodeJSON when the body is not a single JSON object.
var ErrMalformedBody = errors.New("invalid request body")

// validate is shared and read-only after init; RegisterValidation is not thread-safe.
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields by their JSON names.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	if err := validate.RegisterValidation("no_null_bytes", validateNoNullBytes); err != nil {
		slog.Error("Failed to register no_null_bytes validator", "error", err)
	}

	if err := validate.RegisterValidation("trimmed_min", validateTrimmedMin); err != nil {
		slog.Error("Failed to register trimmed_min validator", "error", err)
	}
}

// ValidateStruct validates a struct using go-playground/validator.
func ValidateStruct(s any) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// ValidationErrors is the formatted result of a failed ValidateStruct.
type ValidationErrors struct {
	Details []response.ErrorDetail
}

func (e *ValidationErrors) Error() string {
	messages := make([]string, len(e.Details))
	for i, d := range e.Details {
		messages[i] = d.Message
	}

	return "validation failed: " + strings.Join(messages, "; ")
}

func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	out := &ValidationErrors{Details: make([]response.ErrorDetail, 0, len(validationErrors))}
	for _, fieldError := range validationErrors {
		out.Details = append(out.Details, response.ErrorDetail{
			Location: fieldError.Field(),
			Message:  formatFieldError(fieldError),
			Value:    fieldError.Value(),
		})
	}

	return out
}

// formatFieldError formats a single field validation error.
func formatFieldError(fieldError validator.FieldError) string {
	field := fieldError.Field()

	switch fieldError.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fieldError.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fieldError.Param())
	case "trimmed_min":
		return fmt.Sprintf("%s must contain at least %s non-blank characters", field, fieldError.Param())
	case "no_null_bytes":
		return field + " must not contain NULL bytes"
	default:
		return field + " is invalid"
	}
}

// DecodeJSON decodes the request body into dst and validates it.
// It returns ErrBodyTooLarge, ErrMalformedBody or a *ValidationErrors.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return ErrBodyTooLarge
		}

		return fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	return ValidateStruct(dst)
}

// RespondDecodeError writes the response for an error returned by DecodeJSON.
func RespondDecodeError(w http.ResponseWriter, err error) {
	var validationErrs *ValidationErrors

	switch {
	case errors.Is(err, ErrBodyTooLarge):
		response.RespondRequestTooLarge(w)
	case errors.As(err, &validationErrs):
		response.RespondProblem(w, response.ProblemDetails{
			Title:  "Validation Error",
			Status: http.StatusBadRequest,
			Detail: validationErrs.Error(),
			Errors: validationErrs.Details,
		})
	default:
		response.RespondBadRequest(w, "Invalid request body")
	}
}

// validateNoNullBytes checks that a string field does not contain NULL bytes.
// Handles both string and *string types.
func validateNoNullBytes(fl validator.FieldLevel) bool {
	field := fl.Field()

	if field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}

		field = field.Elem()
	}

	if field.Kind() != reflect.String {
		return true
	}

	return !strings.Contains(field.String(), "\x00")
}

// validateTrimmedMin checks the rune length of a string after trimming surrounding whitespace.
func validateTrimmedMin(fl validator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return true
	}

	minLen, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}

	return utf8.RuneCountInString(strings.TrimSpace(field.String())) >= minLen
}
