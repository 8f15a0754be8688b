package mobilemoney_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	errors "github.com/frahmantamala/invoice-payments/internal"
	"github.com/frahmantamala/invoice-payments/internal/core/common/mobilemoney"
)

var _ = Describe("Normalizer", func() {
	Describe("NormalizePhone", func() {
		DescribeTable("accepted numbers",
			func(raw, expected string) {
				phone, err := mobilemoney.NormalizePhone(raw)
				Expect(err).To(BeNil())
				Expect(phone).To(Equal(expected))
			},
			Entry("local format with leading zero", "0241018947", "233241018947"),
			Entry("international format", "233241018947", "233241018947"),
			Entry("no prefix at all", "241018947", "233241018947"),
			Entry("embedded whitespace", " 024 101 8947 ", "233241018947"),
			Entry("vodafone range", "0501234567", "233501234567"),
		)

		DescribeTable("rejected numbers",
			func(raw string) {
				phone, err := mobilemoney.NormalizePhone(raw)
				Expect(err).To(MatchError(errors.ErrInvalidPhone))
				Expect(phone).To(BeEmpty())
			},
			Entry("not a ghana mobile", "1234567890"),
			Entry("network digit out of range", "0641018947"),
			Entry("too short", "024101894"),
			Entry("too long", "02410189471"),
			Entry("letters", "02410l8947"),
			Entry("empty", ""),
			Entry("plus sign", "+233241018947"),
		)
	})

	Describe("ParseProvider", func() {
		It("accepts the supported codes case-insensitively", func() {
			for _, raw := range []string{"mtn", "VOD", " tgo "} {
				_, err := mobilemoney.ParseProvider(raw)
				Expect(err).To(BeNil())
			}
		})

		It("rejects anything else", func() {
			_, err := mobilemoney.ParseProvider("airtel")
			Expect(err).To(MatchError(errors.ErrInvalidProvider))
		})

		It("maps provider codes to method suffixes", func() {
			Expect(mobilemoney.ProviderMTN.MethodSuffix()).To(Equal("MTN"))
			Expect(mobilemoney.ProviderAirtelTigo.MethodSuffix()).To(Equal("AIRTELTIGO"))
		})
	})

	Describe("ToMinorUnits", func() {
		It("multiplies by 100 and rounds to the nearest integer", func() {
			Expect(mobilemoney.ToMinorUnits(decimal.RequireFromString("1000"))).To(Equal(int64(100000)))
			Expect(mobilemoney.ToMinorUnits(decimal.RequireFromString("12.345"))).To(Equal(int64(1235)))
			Expect(mobilemoney.ToMinorUnits(decimal.RequireFromString("12.344"))).To(Equal(int64(1234)))
			Expect(mobilemoney.ToMinorUnits(decimal.RequireFromString("0.01"))).To(Equal(int64(1)))
		})

		It("round-trips through FromMinorUnits", func() {
			Expect(mobilemoney.FromMinorUnits(40050).Equal(decimal.RequireFromString("400.50"))).To(BeTrue())
		})
	})
})
