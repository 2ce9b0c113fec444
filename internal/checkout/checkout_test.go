package checkout

import (
	"errors"
	"testing"

	"maritime-marketplace/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validForm() FormValues {
	return FormValues{
		BillingDetails: BillingDetails{
			Name:    "Ada Mariner",
			Email:   "ada@example.com",
			Address: "1 Harbour Way",
			City:    "Houston",
			State:   "TX",
			ZipCode: "77001",
			Country: "US",
		},
		CardDetails: CardDetails{
			CardNumber:     "1234567890123456",
			ExpiryDate:     "12/29",
			CVV:            "123",
			CardholderName: "Ada Mariner",
		},
	}
}

func TestValidFormPasses(t *testing.T) {
	v := NewValidator()

	errs := v.Validate(validForm(), models.PaymentMethodCreditCard)

	assert.Empty(t, errs)
	assert.NoError(t, v.Check(validForm(), models.PaymentMethodCreditCard))
}

func TestShortCardNumberIsFieldScoped(t *testing.T) {
	v := NewValidator()
	form := validForm()
	form.CardNumber = "12345"

	errs := v.Validate(form, models.PaymentMethodCreditCard)

	require.Len(t, errs, 1)
	assert.Equal(t, "Card number must be 16 digits", errs["cardNumber"])
}

func TestCardRules(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name  string
		edit  func(*FormValues)
		field string
		msg   string
	}{
		{"letters in card", func(f *FormValues) { f.CardNumber = "12345678901234ab" }, "cardNumber", "Card number must be 16 digits"},
		{"17 digit card", func(f *FormValues) { f.CardNumber = "12345678901234567" }, "cardNumber", "Card number must be 16 digits"},
		{"spaced card", func(f *FormValues) { f.CardNumber = "1234 5678 9012 3456" }, "cardNumber", "Card number must be 16 digits"},
		{"month 13", func(f *FormValues) { f.ExpiryDate = "13/29" }, "expiryDate", "Expiry date must be in MM/YY format"},
		{"month 00", func(f *FormValues) { f.ExpiryDate = "00/29" }, "expiryDate", "Expiry date must be in MM/YY format"},
		{"four digit year", func(f *FormValues) { f.ExpiryDate = "12/2029" }, "expiryDate", "Expiry date must be in MM/YY format"},
		{"cvv too short", func(f *FormValues) { f.CVV = "12" }, "cvv", "CVV must be 3 or 4 digits"},
		{"cvv too long", func(f *FormValues) { f.CVV = "12345" }, "cvv", "CVV must be 3 or 4 digits"},
		{"missing cardholder", func(f *FormValues) { f.CardholderName = "" }, "cardholderName", "Cardholder name is required"},
		{"bad email", func(f *FormValues) { f.Email = "not-an-email" }, "email", "Invalid email address"},
		{"missing email", func(f *FormValues) { f.Email = "" }, "email", "Email is required"},
		{"missing zip", func(f *FormValues) { f.ZipCode = "" }, "zipCode", "ZIP code is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validForm()
			tt.edit(&form)

			errs := v.Validate(form, models.PaymentMethodCreditCard)

			require.Len(t, errs, 1)
			assert.Equal(t, tt.msg, errs[tt.field])
		})
	}
}

func TestMustRegisterPanicsOnBadRule(t *testing.T) {
	v := validator.New()

	assert.Panics(t, func() { mustRegister(v, "", matches(cvvPattern)) })
	assert.NotPanics(t, func() { mustRegister(v, "cvv", matches(cvvPattern)) })
}

func TestFourDigitCVVAccepted(t *testing.T) {
	form := validForm()
	form.CVV = "1234"

	assert.Empty(t, NewValidator().Validate(form, models.PaymentMethodCreditCard))
}

func TestCreditsSkipsCardFields(t *testing.T) {
	v := NewValidator()
	form := validForm()
	form.CardDetails = CardDetails{}

	assert.Empty(t, v.Validate(form, models.PaymentMethodCredits))

	errs := v.Validate(form, models.PaymentMethodCreditCard)
	assert.Equal(t, []string{"cardNumber", "cardholderName", "cvv", "expiryDate"}, errs.Fields())
}

func TestCreditsStillRequiresBilling(t *testing.T) {
	v := NewValidator()

	errs := v.Validate(FormValues{}, models.PaymentMethodCredits)

	assert.Equal(t, []string{"address", "city", "country", "email", "name", "state", "zipCode"}, errs.Fields())
	assert.Equal(t, "Name is required", errs["name"])
}

func TestCheckReturnsValidationError(t *testing.T) {
	form := validForm()
	form.Name = ""

	err := NewValidator().Check(form, models.PaymentMethodCreditCard)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Name is required", verr.Fields["name"])
	assert.Contains(t, err.Error(), "name")
}

func TestSessionGuardsDoubleSubmit(t *testing.T) {
	s := NewSession()
	assert.True(t, s.CanSubmit())

	require.NoError(t, s.Begin())
	assert.False(t, s.CanSubmit())
	assert.False(t, s.Done())
	assert.ErrorIs(t, s.Begin(), ErrSubmissionInFlight)

	require.NoError(t, s.Fail(errors.New("failed to place order")))
	assert.Equal(t, StatusFailed, s.Status())
	assert.True(t, s.CanSubmit())
	assert.True(t, s.Done())
	assert.EqualError(t, s.Err(), "failed to place order")

	require.NoError(t, s.Begin())
	assert.Nil(t, s.Err())
	require.NoError(t, s.Succeed(42))
	assert.Equal(t, StatusSucceeded, s.Status())
	assert.Equal(t, int64(42), s.OrderID())
	assert.ErrorIs(t, s.Begin(), ErrAlreadyCompleted)
}

func TestSessionRejectsOutOfOrderTransitions(t *testing.T) {
	s := NewSession()

	assert.ErrorIs(t, s.Succeed(1), ErrNotSubmitting)
	assert.ErrorIs(t, s.Fail(errors.New("x")), ErrNotSubmitting)
	assert.Equal(t, StatusEditing, s.Status())
}
