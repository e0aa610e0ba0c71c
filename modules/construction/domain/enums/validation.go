package enums

import (
	"github.com/go-playground/validator/v10"

	"github.com/buildflow/buildflow/pkg/constants"
)

func init() {
	RegisterValidations(constants.Validate)
}

// RegisterValidations adds one tag per enum. A tagged string field passes
// when its value is a known spelling of that enum.
func RegisterValidations(v *validator.Validate) {
	register := func(tag string, ok func(string) bool) {
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return ok(fl.Field().String())
		})
	}
	register("project_status", func(s string) bool { _, ok := ParseProjectStatus(s); return ok })
	register("task_status", func(s string) bool { _, ok := ParseTaskStatus(s); return ok })
	register("task_priority", func(s string) bool { _, ok := ParseTaskPriority(s); return ok })
	register("resource_type", func(s string) bool { _, ok := ParseResourceType(s); return ok })
	register("resource_status", func(s string) bool { _, ok := ParseResourceStatus(s); return ok })
}
