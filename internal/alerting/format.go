package alerting

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders an amount rounded to whole units with comma thousands separators.
func FormatAmount(amount decimal.Decimal) string {
	return amountPrinter.Sprintf("%d", amount.RoundBank(0).IntPart())
}

// AlertFields builds the template values for one alert.
func AlertFields(prize, threshold decimal.Decimal, currency, drawText string) map[string]string {
	return map[string]string{
		FieldPrizeAmount:      FormatAmount(prize),
		FieldThresholdAmount:  FormatAmount(threshold),
		FieldCurrency:         currency,
		FieldDrawDateTimeText: drawText,
	}
}
