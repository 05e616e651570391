package core

import (
	"errors"
	"log/slog"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"railrisk/internal/types"
)

// routeIDPattern accepts "chitose" and "jr-hokkaido.chitose".
var routeIDPattern = regexp.MustCompile(`^([a-z0-9-]+\.)?[a-z0-9][a-z0-9_-]*$`)

// Validator wraps go-playground/validator with the domain tags:
//
//	route_id    a route identifier, with or without the operator prefix
//	job_action  one of the forecast job actions
type Validator struct {
	validate *validator.Validate
	logger   *slog.Logger
}

func NewValidator(logger *slog.Logger) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON field names so clients see the names they sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "route_id", func(fl validator.FieldLevel) bool {
		return routeIDPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "job_action", func(fl validator.FieldLevel) bool {
		switch types.ForecastJobAction(fl.Field().String()) {
		case types.JobActionForecast, types.JobActionScore, types.JobActionCrawl:
			return true
		}
		return false
	})

	return &Validator{validate: v, logger: logger}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic("core: register validation " + tag + ": " + err.Error())
	}
}

// ValidateStruct validates s against its `validate` tags. Failures become a
// validation AppError listing each offending field. A missing required
// field takes precedence in the error code.
func (v *Validator) ValidateStruct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		if v.logger != nil {
			v.logger.Error("validator misuse", "error", err)
		}
		return types.NewAppError(types.ErrCodeInternalUnexpected, "request validation failed", err)
	}

	code := types.ErrCodeValidationInvalidInput
	fields := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			code = types.ErrCodeValidationMissingField
		}
		f := map[string]string{
			"field": fe.Field(),
			"rule":  fe.Tag(),
		}
		if fe.Param() != "" {
			f["param"] = fe.Param()
		}
		fields = append(fields, f)
	}

	msg := "invalid value for field " + fields[0]["field"]
	if code == types.ErrCodeValidationMissingField {
		msg = "missing required field"
	}
	return types.NewAppErrorWithDetails(code, msg, err, map[string]any{"fields": fields})
}
