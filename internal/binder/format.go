package binder

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/divan/num2words"
)

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"CAD": "CA$",
	"AUD": "A$",
}

var currencyNouns = map[string][2]string{
	"USD": {"dollars", "cents"},
	"CAD": {"dollars", "cents"},
	"AUD": {"dollars", "cents"},
	"EUR": {"euros", "cents"},
	"GBP": {"pounds", "pence"},
}

// FormatCurrency renders amount with the currency's symbol, grouped
// thousands and two decimals, e.g. $12,500.00. Unknown codes are used as a
// prefix: "CHF 12,500.00".
func FormatCurrency(amount float64, currency string) string {
	code := strings.ToUpper(currency)
	prefix, ok := currencySymbols[code]
	if !ok {
		prefix = code + " "
	}
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	whole, frac, _ := strings.Cut(s, ".")
	return sign + prefix + group(whole) + "." + frac
}

// FormatDate renders d as "Monday, March 2, 2026".
func FormatDate(d time.Time) string {
	return d.Format("Monday, January 2, 2006")
}

// FormatNumber groups the integer digits of n, keeping any fraction.
func FormatNumber(n float64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	s := strconv.FormatFloat(n, 'f', -1, 64)
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac {
		return sign + group(whole) + "." + frac
	}
	return sign + group(whole)
}

// AmountInWords spells out amount, e.g. "twelve thousand five hundred
// dollars". Cents are appended when present.
func AmountInWords(amount float64, currency string) string {
	amount = math.Abs(amount)
	whole := int(amount)
	cents := int(math.Round((amount - float64(whole)) * 100))
	if cents == 100 {
		whole++
		cents = 0
	}
	nouns, ok := currencyNouns[strings.ToUpper(currency)]
	if !ok {
		nouns = [2]string{strings.ToUpper(currency), "hundredths"}
	}
	out := num2words.Convert(whole) + " " + nouns[0]
	if cents > 0 {
		out += " and " + num2words.Convert(cents) + " " + nouns[1]
	}
	return out
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
