package fee

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-fees/core"
)

var feeValidations = []core.Validation{
	{Tag: "month", Text: "must be a full month name, eg. January", Func: func(fl validator.FieldLevel) bool {
		return Month(fl.Field().String()).IsValid()
	}},
	{Tag: "studentstatus", Text: "must be one of Active, Inactive or Left", Func: func(fl validator.FieldLevel) bool {
		return StudentStatus(fl.Field().String()).IsValid()
	}},
	{Tag: "challanstatus", Text: "must be one of Unpaid, Partial or Paid", Func: func(fl validator.FieldLevel) bool {
		return ChallanStatus(fl.Field().String()).IsValid()
	}},
}

// InitValidators registers the fee validation tags and their translations.
// It panics when one cannot be registered.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	if err := core.RegisterValidations(validate, translator, feeValidations...); err != nil {
		panic(err)
	}
}
