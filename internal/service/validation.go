package service

import (
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

// totalTolerance is how far a submitted total may drift from the item sum.
var totalTolerance = decimal.RequireFromString("0.01")

var (
	validate = newValidator()
	strip    = bluemonday.StrictPolicy()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// plainText restores the characters the strict policy escapes but that can
// never form a tag. Angle brackets stay escaped.
var plainText = strings.NewReplacer("&amp;", "&", "&#39;", "'", "&#34;", `"`)

// maxUnescape bounds how many layers of entity encoding are peeled off.
const maxUnescape = 4

// sanitize removes any markup and surrounding whitespace from customer text.
// Entity-encoded markup is decoded first so it is stripped like literal tags.
func sanitize(s string) string {
	for i := 0; i < maxUnescape; i++ {
		u := html.UnescapeString(s)
		if u == s {
			break
		}
		s = u
	}
	return strings.TrimSpace(plainText.Replace(strip.Sanitize(s)))
}

func (r *CreateOrderRequest) normalize() {
	r.FullName = sanitize(r.FullName)
	r.Phone = sanitize(r.Phone)
	r.Email = sanitize(r.Email)
	r.ProgramYear = sanitize(r.ProgramYear)
	r.PaymentMethod = strings.ToUpper(strings.TrimSpace(r.PaymentMethod))
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	for i := range r.Items {
		r.Items[i].Name = sanitize(r.Items[i].Name)
		r.Items[i].Size = sanitize(r.Items[i].Size)
		r.Items[i].CustomName = sanitize(r.Items[i].CustomName)
	}
}

// validateDraft checks field shapes and returns the server-computed total.
func validateDraft(r CreateOrderRequest) (decimal.Decimal, error) {
	if err := validate.Struct(r); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrValidation, describe(err))
	}

	sum := decimal.Zero
	for i, item := range r.Items {
		if item.Price.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: items[%d].price must not be negative", ErrValidation, i)
		}
		sum = sum.Add(item.Subtotal())
	}

	if !r.Total.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: total must be greater than 0", ErrValidation)
	}
	if r.Total.Sub(sum).Abs().GreaterThan(totalTolerance) {
		return decimal.Zero, fmt.Errorf("%w: total %s does not match items (%s)", ErrValidation, r.Total.StringFixed(2), sum.StringFixed(2))
	}
	return sum.Round(2), nil
}

// describe turns validator output into one readable line.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "CreateOrderRequest.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email address")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}
