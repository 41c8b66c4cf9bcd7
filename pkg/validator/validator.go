package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var bloodTypes = map[model.BloodType]bool{
	model.BloodTypeAPositive:  true,
	model.BloodTypeANegative:  true,
	model.BloodTypeBPositive:  true,
	model.BloodTypeBNegative:  true,
	model.BloodTypeABPositive: true,
	model.BloodTypeABNegative: true,
	model.BloodTypeOPositive:  true,
	model.BloodTypeONegative:  true,
}

// Register adds the clinic tags to v and makes field errors report JSON names.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"gender":         validateGender,
		"blood_type":     validateBloodType,
		"billing_method": validateBillingMethod,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}

// RegisterGin installs the clinic tags on gin's binding validator.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

func validateGender(fl validator.FieldLevel) bool {
	switch model.Gender(strings.ToLower(fl.Field().String())) {
	case model.GenderMale, model.GenderFemale:
		return true
	}
	return false
}

func validateBloodType(fl validator.FieldLevel) bool {
	s := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
	return bloodTypes[model.BloodType(s)] || strings.EqualFold(s, string(model.BloodTypeUnknown))
}

func validateBillingMethod(fl validator.FieldLevel) bool {
	_, err := model.ParsePaymentMethod(fl.Field().String())
	return err == nil
}

// Translate turns a binding failure into a validation AppError keyed by
// field. Errors that are not field errors (malformed JSON) become a single
// message.
func Translate(err error) *apperrors.AppError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationMessage("Invalid request body.")
	}

	out := apperrors.NewValidationMessage("Validation failed.")
	out.Fields = make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		out.Fields[fieldPath(fe)] = message(fe)
	}
	return out
}

// fieldPath drops the struct name from the namespace:
// "CreatePatientRequest.email" becomes "email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "uuid":
		return "Must be a valid UUID."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "gt":
		return fmt.Sprintf("Must be greater than %s.", fe.Param())
	case "gender":
		return "Gender must be male or female."
	case "blood_type":
		return "Unknown blood type."
	case "billing_method":
		return "Invalid billing method. Must be one of: " + model.PaymentMethodList() + "."
	}
	return fmt.Sprintf("Failed on the %s rule.", fe.Tag())
}
