package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "request validation failed"
}

// decode reads a JSON body into dst and validates it. An empty body leaves
// dst at its zero value before validation.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ValidationError{Fields: map[string]string{"body": "Invalid JSON body."}}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}

		fields := make(map[string]string, len(verrs))
		for _, e := range verrs {
			fields[e.Field()] = validationMessage(e)
		}
		return &ValidationError{Fields: fields}
	}

	return nil
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required", "required_without":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", e.Param())
		}
		return "Ensure this value is less than or equal to " + e.Param() + "."
	case "gt":
		return "Ensure this value is greater than " + e.Param() + "."
	case "gte":
		return "Ensure this value is greater than or equal to " + e.Param() + "."
	case "oneof":
		return "Must be one of: " + e.Param() + "."
	case "url":
		return "Enter a valid URL."
	}
	return "Invalid value."
}

func respondValidation(w http.ResponseWriter, err *ValidationError) {
	details := make(map[string]any, len(err.Fields))
	for field, msg := range err.Fields {
		details[field] = msg
	}
	respondJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   err.Error(),
		Code:    "invalid_argument",
		Details: details,
	})
}
