// Package mobilemoney validates and canonicalizes Ghana mobile-money inputs
// before they are sent to the payment gateway.
package mobilemoney

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/invoice-payments/internal"
)

const countryCode = "233"

type Provider string

const (
	ProviderMTN        Provider = "mtn"
	ProviderVodafone   Provider = "vod"
	ProviderAirtelTigo Provider = "tgo"
)

var supportedProviders = map[Provider]string{
	ProviderMTN:        "MTN",
	ProviderVodafone:   "VODAFONE",
	ProviderAirtelTigo: "AIRTELTIGO",
}

// optional 0 or 233, a network digit 2-5, then 8 subscriber digits
var ghanaMobilePattern = regexp.MustCompile(`^(?:0|233)?[2-5][0-9]{8}$`)

var hundred = decimal.NewFromInt(100)

func ParseProvider(raw string) (Provider, *errors.AppError) {
	p := Provider(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := supportedProviders[p]; !ok {
		return "", errors.ErrInvalidProvider
	}
	return p, nil
}

// MethodSuffix is the provider part of a payment method such as MOBILE_MONEY_MTN.
func (p Provider) MethodSuffix() string {
	return supportedProviders[p]
}

// NormalizePhone strips whitespace, validates the number and rewrites it to the
// international 233XXXXXXXXX form.
func NormalizePhone(raw string) (string, *errors.AppError) {
	phone := strings.Join(strings.Fields(raw), "")
	if !ghanaMobilePattern.MatchString(phone) {
		return "", errors.ErrInvalidPhone
	}

	switch {
	case strings.HasPrefix(phone, countryCode) && len(phone) == 12:
		return phone, nil
	case strings.HasPrefix(phone, "0"):
		return countryCode + phone[1:], nil
	default:
		return countryCode + phone, nil
	}
}

// ToMinorUnits converts a currency amount to pesewas, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}
