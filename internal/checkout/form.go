// Package checkout validates the checkout form and tracks the lifecycle of a
// single checkout submission.
package checkout

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"maritime-marketplace/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	cardNumberPattern = regexp.MustCompile(`^[0-9]{16}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/[0-9]{2}$`)
	cvvPattern        = regexp.MustCompile(`^[0-9]{3,4}$`)
)

// BillingDetails are always required
type BillingDetails struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Address string `json:"address" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// CardDetails are only required when paying by credit card
type CardDetails struct {
	CardNumber     string `json:"cardNumber" validate:"required,cardnumber"`
	ExpiryDate     string `json:"expiryDate" validate:"required,expiry"`
	CVV            string `json:"cvv" validate:"required,cvv"`
	CardholderName string `json:"cardholderName" validate:"required"`
}

// FormValues is the flat checkout form payload
type FormValues struct {
	BillingDetails
	CardDetails
}

// FieldErrors maps a form field (by its JSON name) to its error message
type FieldErrors map[string]string

// Fields returns the invalid field names in sorted order
func (fe FieldErrors) Fields() []string {
	out := make([]string, 0, len(fe))
	for f := range fe {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// ValidationError is returned when the form cannot be submitted
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	return "checkout form invalid: " + strings.Join(e.Fields.Fields(), ", ")
}

var messages = map[string]map[string]string{
	"name":           {"required": "Name is required"},
	"email":          {"required": "Email is required", "email": "Invalid email address"},
	"address":        {"required": "Address is required"},
	"city":           {"required": "City is required"},
	"state":          {"required": "State is required"},
	"zipCode":        {"required": "ZIP code is required"},
	"country":        {"required": "Country is required"},
	"cardNumber":     {"required": "Card number is required", "cardnumber": "Card number must be 16 digits"},
	"expiryDate":     {"required": "Expiry date is required", "expiry": "Expiry date must be in MM/YY format"},
	"cvv":            {"required": "CVV is required", "cvv": "CVV must be 3 or 4 digits"},
	"cardholderName": {"required": "Cardholder name is required"},
}

// Validator checks checkout forms
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator with the card rules registered
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "cardnumber", matches(cardNumberPattern))
	mustRegister(v, "expiry", matches(expiryPattern))
	mustRegister(v, "cvv", matches(cvvPattern))
	return &Validator{v: v}
}

// mustRegister panics if a rule cannot be registered
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("checkout: register %q validation: %v", tag, err))
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}
}

// Validate returns the field-scoped errors for the form. Paying with credits
// skips the four card fields entirely. An empty result means the form is valid.
func (val *Validator) Validate(values FormValues, method models.PaymentMethod) FieldErrors {
	errs := FieldErrors{}
	val.collect(values.BillingDetails, errs)
	if method != models.PaymentMethodCredits {
		val.collect(values.CardDetails, errs)
	}
	return errs
}

// Check is Validate wrapped as an error
func (val *Validator) Check(values FormValues, method models.PaymentMethod) error {
	if errs := val.Validate(values, method); len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

func (val *Validator) collect(s interface{}, errs FieldErrors) {
	err := val.v.Struct(s)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_form"] = err.Error()
		return
	}

	for _, fe := range verrs {
		field := fe.Field()
		if _, exists := errs[field]; exists {
			continue
		}
		errs[field] = message(field, fe.Tag())
	}
}

func message(field, tag string) string {
	if byTag, ok := messages[field]; ok {
		if msg, ok := byTag[tag]; ok {
			return msg
		}
	}
	return field + " is invalid"
}
