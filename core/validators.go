package core

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Validation is a validation tag with its error text.
// Text may reference the field name as {0} and the tag param as {1}.
// Func is nil for the built-in tags whose text is overridden.
type Validation struct {
	Tag  string
	Text string
	Func validator.Func
}

var identifierRegex = regexp.MustCompile(`^\w+$`)

var coreValidations = []Validation{
	{Tag: "alphanum_", Text: "only alphanumeric characters and underscores are allowed", Func: func(fl validator.FieldLevel) bool {
		return identifierRegex.MatchString(fl.Field().String())
	}},
	{Tag: "money", Text: "must have at most 2 decimal places", Func: moneyValidation},
	{Tag: "required", Text: "this field is required"},
	{Tag: "required_with", Text: "this field is required"},
	{Tag: "gte", Text: "must be greater than or equal to {1}"},
	{Tag: "gt", Text: "must be greater than {1}"},
	{Tag: "lte", Text: "must be less than or equal to {1}"},
}

// NewTranslator returns the english ut.Translator.
func NewTranslator() ut.Translator {
	locale := en.New()
	translator, _ := ut.New(locale, locale).GetTranslator("en")
	return translator
}

// InitValidators sets up validate to report JSON field names with english messages,
// and to compare decimal amounts with the numeric tags.
// It panics when a validation or a translation cannot be registered.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(errors.Wrap(err, "registering default translations"))
	}

	validate.RegisterTagNameFunc(jsonFieldName)
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})

	if err := RegisterValidations(validate, translator, coreValidations...); err != nil {
		panic(err)
	}
}

// RegisterValidations registers the custom validation functions and the texts of vals.
// The texts replace any translation already registered for their tag.
func RegisterValidations(validate *validator.Validate, translator ut.Translator, vals ...Validation) error {
	for _, val := range vals {
		if val.Func != nil {
			if err := validate.RegisterValidation(val.Tag, val.Func); err != nil {
				return errors.Wrapf(err, "registering %q validation", val.Tag)
			}
		}

		text := val.Text
		err := validate.RegisterTranslation(
			val.Tag, translator,
			func(ut.Translator) error { return nil },
			func(_ ut.Translator, fe validator.FieldError) string {
				return strings.NewReplacer("{0}", fe.Field(), "{1}", fe.Param()).Replace(text)
			},
		)
		if err != nil {
			return errors.Wrapf(err, "registering %q translation", val.Tag)
		}
	}
	return nil
}

// ValidationErrorFromValidator converts validator.ValidationErrors into a *ValidationError.
// Any other error is returned as is.
func ValidationErrorFromValidator(err error, translator ut.Translator) error {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	flds := make([]FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, FieldError{Field: vErr.Field(), Error: vErr.Translate(translator)})
	}
	return NewValidationError(nil, flds...)
}

func jsonFieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// moneyValidation only allows decimal amounts with at most 2 decimal places, eg. 6500.50 or 6500.500.
// The field value seen by validators is the float64 of decimalValue, so the decimal is read from the parent struct.
func moneyValidation(fl validator.FieldLevel) bool {
	fld := reflect.Indirect(fl.Parent()).FieldByName(fl.StructFieldName())
	if fld.Kind() == reflect.Ptr {
		if fld.IsNil() {
			return true
		}
		fld = fld.Elem()
	}
	d, ok := fld.Interface().(decimal.Decimal)
	if !ok {
		return false
	}
	return d.Equal(d.Round(2))
}

// decimalValue makes decimal amounts comparable as float64.
func decimalValue(v reflect.Value) interface{} {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}
