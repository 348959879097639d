package middleware

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/erp/syncengine/internal/domain/integration"
	"github.com/erp/syncengine/internal/interfaces/http/dto"
)

// enumTag is a binding tag backed by a domain enum.
type enumTag struct {
	valid  func(string) bool
	values string
}

var enumTags = map[string]enumTag{
	"entity_type": {
		valid:  func(s string) bool { return integration.EntityType(s).IsValid() },
		values: "order customer product",
	},
	"system_code": {
		valid:  func(s string) bool { return integration.SystemCode(s).IsValid() },
		values: "local storefront accounting warehouse",
	},
	"sync_mode": {
		valid:  func(s string) bool { return integration.SyncMode(s).IsValid() },
		values: "full incremental",
	},
	"sync_direction": {
		valid:  func(s string) bool { return integration.SyncDirection(s).IsValid() },
		values: "one_way two_way",
	},
	"resolution_strategy": {
		valid:  func(s string) bool { return integration.ResolutionStrategy(s).IsValid() },
		values: "source-wins target-wins most-recent-wins manual",
	},
}

// SetupValidator registers the enum tags on gin's validator and makes error
// fields use JSON names.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(jsonFieldName)
	for tag, enum := range enumTags {
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return enum.valid(fl.Field().String())
		})
	}
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		name, _, _ = strings.Cut(fld.Tag.Get("form"), ",")
	}
	return name
}

// FormatValidationErrors returns one detail per failed field, or nil when
// err did not come from the validator. Nested fields read
// "policies[0].strategy".
func FormatValidationErrors(err error) []dto.ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]dto.ValidationDetail, len(verrs))
	for i, e := range verrs {
		field := e.Field()
		if _, rest, ok := strings.Cut(e.Namespace(), "."); ok {
			field = rest
		}
		details[i] = dto.ValidationDetail{Field: field, Message: getValidationMessage(e)}
	}
	return details
}

func getValidationMessage(e validator.FieldError) string {
	if enum, ok := enumTags[e.Tag()]; ok {
		return "Must be one of: " + enum.values
	}
	unit := ""
	if e.Type().Kind() == reflect.String {
		unit = " characters"
	}
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return "Must be at least " + e.Param() + unit
	case "max":
		return "Must be at most " + e.Param() + unit
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "lte":
		return "Must be less than or equal to " + e.Param()
	case "oneof":
		return "Must be one of: " + e.Param()
	case "uuid":
		return "Invalid UUID format"
	case "url":
		return "Invalid URL format"
	}
	return "Invalid value"
}
