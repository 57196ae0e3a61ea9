// Package binder maps a CRM deal and admin-entered overrides onto the flat
// value map consumed by the template engine.
package binder

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Knetic/govaluate"

	"github.com/alfredjeanlab/podium/internal/model"
)

// DateLayout is the raw form of date values before formatting.
const DateLayout = "2006-01-02"

// Options configures a Bind call.
type Options struct {
	// Now supplies contract_date. Defaults to time.Now.
	Now func() time.Time
	// DefaultCurrency applies when neither the deal nor an override sets
	// currency. Defaults to USD.
	DefaultCurrency string
	Logger          *slog.Logger
}

// baseTypes gives deal-derived keys a format when the template does not
// declare them.
var baseTypes = map[string]model.VarType{
	"total_amount":    model.VarCurrency,
	"event_date":      model.VarDate,
	"contract_date":   model.VarDate,
	"deposit_percent": model.VarNumber,
	"client_email":    model.VarEmail,
	"speaker_email":   model.VarEmail,
}

// Bind builds the value map for a contract. Overrides win over deal values
// but an empty override never erases one. Each declared variable falls back
// to its default value, then its formula; a required variable that is still
// empty is reported in a *model.MissingFieldsError in declaration order.
func Bind(deal *model.Deal, overrides map[string]string, vars []model.Variable, opts Options) (map[string]string, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	raw := DealValues(deal)
	raw["contract_date"] = opts.Now().Format(DateLayout)
	for k, v := range overrides {
		if strings.TrimSpace(v) == "" {
			continue
		}
		raw[k] = v
	}

	var missing []string
	for _, v := range vars {
		if raw[v.Key] != "" {
			continue
		}
		if v.DefaultValue != "" {
			raw[v.Key] = v.DefaultValue
			continue
		}
		if v.Formula != "" {
			result, err := evalFormula(v.Formula, raw)
			if err == nil {
				raw[v.Key] = result
				continue
			}
			opts.Logger.Warn("formula evaluation failed", "key", v.Key, "formula", v.Formula, "error", err)
		}
		if v.Required {
			missing = append(missing, v.DisplayLabel())
		}
	}
	if len(missing) > 0 {
		return nil, &model.MissingFieldsError{Labels: missing}
	}

	types := make(map[string]model.VarType, len(baseTypes)+len(vars))
	for k, t := range baseTypes {
		types[k] = t
	}
	for _, v := range vars {
		if v.Type != "" {
			types[v.Key] = v.Type
		}
	}

	currency := raw["currency"]
	if currency == "" {
		currency = opts.DefaultCurrency
		raw["currency"] = currency
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for k, v := range raw {
		switch types[k] {
		case model.VarCurrency:
			amount, err := parseNumber(v)
			if err != nil {
				opts.Logger.Warn("unparsable currency value", "key", k, "value", v)
				continue
			}
			out[k] = FormatCurrency(amount, currency)
			if _, ok := raw[k+"_words"]; !ok {
				out[k+"_words"] = AmountInWords(amount, currency)
			}
		case model.VarDate:
			d, err := parseDate(v)
			if err != nil {
				opts.Logger.Warn("unparsable date value", "key", k, "value", v)
				continue
			}
			out[k] = FormatDate(d)
		case model.VarNumber:
			n, err := parseNumber(v)
			if err != nil {
				opts.Logger.Warn("unparsable number value", "key", k, "value", v)
				continue
			}
			out[k] = FormatNumber(n)
		}
	}
	return out, nil
}

// DealValues extracts the raw base keys from deal. Unset fields are omitted.
func DealValues(deal *model.Deal) map[string]string {
	raw := map[string]string{}
	if deal == nil {
		return raw
	}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			raw[k] = v
		}
	}
	set("client_name", deal.Client.Name)
	set("client_company", deal.Client.Company)
	set("client_email", deal.Client.Email)
	set("client_title", deal.Client.Title)
	if deal.Speaker != nil {
		set("speaker_name", deal.Speaker.Name)
		set("speaker_email", deal.Speaker.Email)
	}
	set("event_title", deal.Event.Title)
	if deal.Event.Date != nil {
		raw["event_date"] = deal.Event.Date.Format(DateLayout)
	}
	set("event_location", deal.Event.Location)
	if deal.Financials.Amount != nil {
		raw["total_amount"] = strconv.FormatFloat(*deal.Financials.Amount, 'f', -1, 64)
	}
	set("currency", strings.ToUpper(deal.Financials.Currency))
	if deal.Financials.DepositPercent != nil {
		raw["deposit_percent"] = strconv.FormatFloat(*deal.Financials.DepositPercent, 'f', -1, 64)
	}
	return raw
}

// evalFormula evaluates expr with every numeric value in raw as a parameter.
func evalFormula(expr string, raw map[string]string) (string, error) {
	e, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return "", fmt.Errorf("parse formula: %w", err)
	}
	params := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if n, err := parseNumber(v); err == nil {
			params[k] = n
		}
	}
	result, err := e.Evaluate(params)
	if err != nil {
		return "", fmt.Errorf("evaluate formula: %w", err)
	}
	n, ok := result.(float64)
	if !ok {
		return "", fmt.Errorf("formula result %v is not a number", result)
	}
	return strconv.FormatFloat(n, 'f', -1, 64), nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, time.RFC3339} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
