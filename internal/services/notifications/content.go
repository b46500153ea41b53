package notifications

import (
	"fmt"
	"html"
	"strings"

	"donation-ledger/internal/infra/mailer"
)

var currencySymbols = map[string]string{
	"gbp": "£",
	"usd": "$",
	"eur": "€",
}

// Currencies whose minor unit is the major unit.
var zeroDecimal = map[string]bool{
	"jpy": true,
	"krw": true,
}

// FormatAmount renders minor units for people, e.g. 2500 gbp -> £25.00.
func FormatAmount(amount int64, currency string) string {
	currency = strings.ToLower(currency)
	var value string
	if zeroDecimal[currency] {
		value = fmt.Sprintf("%d", amount)
	} else {
		value = fmt.Sprintf("%d.%02d", amount/100, amount%100)
	}
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + value
	}
	return value + " " + strings.ToUpper(currency)
}

func thankYouMessage(recipient, donorName, campaignName string, amount int64, currency, templateID string) mailer.Message {
	formatted := FormatAmount(amount, currency)
	greeting := "Hi"
	if donorName != "" {
		greeting = "Hi " + donorName
	}
	cause := "our campaign"
	if campaignName != "" {
		cause = campaignName
	}

	text := fmt.Sprintf("%s,\n\nThank you for your donation of %s to %s.\n\nYour support makes a real difference.\n", greeting, formatted, cause)
	body := fmt.Sprintf("<p>%s,</p><p>Thank you for your donation of <strong>%s</strong> to %s.</p><p>Your support makes a real difference.</p>",
		html.EscapeString(greeting), html.EscapeString(formatted), html.EscapeString(cause))

	return mailer.Message{
		To:         recipient,
		ToName:     donorName,
		Subject:    "Thank you for your donation",
		Text:       text,
		HTML:       body,
		TemplateID: templateID,
		TemplateData: map[string]interface{}{
			"donorName":    donorName,
			"campaignName": campaignName,
			"amount":       formatted,
			"currency":     strings.ToUpper(currency),
		},
	}
}
