package checkout

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/crackers-checkout/internal/domain/payment"
)

var (
	// FreeDeliveryThreshold is the cart total from which delivery is free.
	FreeDeliveryThreshold = decimal.NewFromInt(999)
	// DeliveryFee is charged below FreeDeliveryThreshold.
	DeliveryFee = decimal.NewFromInt(99)
)

// NewReceipt returns a receipt id of the form rcpt_<unix millis>.
func NewReceipt(now time.Time) string {
	return "rcpt_" + strconv.FormatInt(now.UnixMilli(), 10)
}

// GrandTotal adds the delivery fee to a cart total in rupees.
func GrandTotal(cartTotal decimal.Decimal) (total, delivery decimal.Decimal) {
	delivery = DeliveryFee
	if cartTotal.GreaterThanOrEqual(FreeDeliveryThreshold) {
		delivery = decimal.Zero
	}
	return cartTotal.Add(delivery), delivery
}

// MinorUnits converts a major-unit total (₹1098.50) to the amount sent to
// the server (109850 paise).
func MinorUnits(total decimal.Decimal, currency string) (int64, error) {
	return payment.ToMinor(total, currency)
}

var (
	mobileRe  = regexp.MustCompile(`^[6-9]\d{9}$`)
	pincodeRe = regexp.MustCompile(`^\d{6}$`)

	customerValidator = newCustomerValidator()
)

func newCustomerValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("filled", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return mobileRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("pincode", func(fl validator.FieldLevel) bool {
		return pincodeRe.MatchString(fl.Field().String())
	})
	return v
}

// Customer is the shipping form filled in at checkout.
type Customer struct {
	Name    string `validate:"filled"`
	Email   string `validate:"email"`
	Phone   string `validate:"mobile"`
	Address string `validate:"filled"`
	City    string `validate:"filled"`
	State   string `validate:"filled"`
	Pincode string `validate:"pincode"`
}

var fieldMessages = map[string]string{
	"name":    "Full name is required.",
	"email":   "Enter a valid email.",
	"phone":   "Enter a valid 10-digit mobile number.",
	"address": "Address is required.",
	"city":    "City is required.",
	"state":   "State is required.",
	"pincode": "Enter a valid 6-digit PIN code.",
}

// FieldErrors maps a form field to its problem.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("invalid customer:")
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(e[k])
	}
	return b.String()
}

// Validate checks the form the way the storefront does before paying. The
// returned error is a FieldErrors.
func (c Customer) Validate() error {
	err := customerValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate customer")
	}
	errs := FieldErrors{}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		errs[field] = fieldMessages[field]
	}
	return errs
}

// Prefill returns the widget contact prefill for c.
func (c Customer) Prefill() Prefill {
	return Prefill{Name: c.Name, Email: c.Email, Contact: c.Phone}
}

// Notes returns the order notes carrying the delivery address.
func (c Customer) Notes() map[string]string {
	return map[string]string{
		"address": c.Address + ", " + c.City + ", " + c.State + " - " + c.Pincode,
	}
}

// NewPayRequest validates c and builds the request for a cart total in
// major units.
func NewPayRequest(c Customer, cartTotal decimal.Decimal, currency string, now time.Time) (PayRequest, error) {
	if err := c.Validate(); err != nil {
		return PayRequest{}, err
	}
	total, _ := GrandTotal(cartTotal)
	amount, err := MinorUnits(total, currency)
	if err != nil {
		return PayRequest{}, errors.Wrap(err, "grand total")
	}
	return PayRequest{
		Amount:  amount,
		Receipt: NewReceipt(now),
		Prefill: c.Prefill(),
		Notes:   c.Notes(),
	}, nil
}
