package view

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Money formats decimal amounts for one currency and locale.
type Money struct {
	printer *message.Printer
	symbol  string
}

// NewMoney builds a formatter for an ISO 4217 code and a BCP 47 locale.
func NewMoney(code, locale string) (Money, error) {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return Money{}, fmt.Errorf("view: currency %q: %w", code, err)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return Money{}, fmt.Errorf("view: locale %q: %w", locale, err)
	}
	p := message.NewPrinter(tag)
	return Money{printer: p, symbol: p.Sprint(currency.NarrowSymbol(unit))}, nil
}

// DefaultMoney formats US dollars for en-US.
func DefaultMoney() Money {
	m, _ := NewMoney("USD", "en-US")
	return m
}

// Format renders d rounded to cents with locale grouping.
func (m Money) Format(d decimal.Decimal) string {
	if m.printer == nil {
		m = DefaultMoney()
	}
	f, _ := d.Round(2).Float64()
	return m.symbol + m.printer.Sprintf("%.2f", f)
}
