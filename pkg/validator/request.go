package validator

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// transactionIDRegex matches the identifiers issued by the payment gateway
var transactionIDRegex = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// ValidationError describes one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidationErrors is the list returned to clients on a binding failure
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// RegisterBindingValidators adds the booking tags to gin's binding engine.
// It must run once before the router serves requests.
func RegisterBindingValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	if err := v.RegisterValidation("txn_id", validateTransactionID); err != nil {
		return fmt.Errorf("failed to register 'txn_id' validator: %w", err)
	}
	if err := v.RegisterValidation("money", validateMoney); err != nil {
		return fmt.Errorf("failed to register 'money' validator: %w", err)
	}
	return nil
}

func validateTransactionID(fl validator.FieldLevel) bool {
	return transactionIDRegex.MatchString(fl.Field().String())
}

// validateMoney accepts non-negative amounts with at most two decimals
func validateMoney(fl validator.FieldLevel) bool {
	amount := fl.Field().Float()
	if amount < 0 || math.IsInf(amount, 0) || math.IsNaN(amount) {
		return false
	}
	cents := amount * 100
	return math.Abs(cents-math.Round(cents)) < 1e-6
}

// Translate converts a binding error into client-facing field errors.
// Errors that are not validation failures (malformed JSON, wrong types)
// come back as a single entry for the body.
func Translate(err error) ValidationErrors {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return ValidationErrors{{Field: "body", Message: err.Error()}}
	}

	out := make(ValidationErrors, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: messageFor(fe)})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "hexadecimal":
		return "must be hexadecimal"
	case "txn_id":
		return "must be 1-128 letters, digits, '.', '_', ':' or '-'"
	case "money":
		return "must be a non-negative amount with at most two decimals"
	default:
		return fmt.Sprintf("failed '%s' validation", fe.Tag())
	}
}
