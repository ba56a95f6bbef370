package common

import (
	"fmt"
	"strings"

	"iamblessed-funnel-go/internal/models"

	"github.com/shopspring/decimal"
)

// Report widths
const (
	DefaultWidth = 80
	WideWidth    = 100
)

func rule(char string, width int) string {
	return strings.Repeat(char, width)
}

// PrintHeader prints a report title between two rules.
func PrintHeader(title string, width int) {
	fmt.Printf("\n%s\n%s\n%s\n", rule("=", width), title, rule("=", width))
}

// PrintFooter prints a report summary line between two rules.
func PrintFooter(message string, width int) {
	fmt.Printf("\n%s\n%s\n%s\n\n", rule("=", width), message, rule("=", width))
}

// PrintBox opens a section with a title and optional detail lines.
func PrintBox(title string, details ...string) {
	fmt.Printf("\n┌─ %s\n", title)
	for _, d := range details {
		fmt.Printf("│  %s\n", d)
	}
}

// PrintBoxSeparator closes the heading of a section opened by PrintBox.
func PrintBoxSeparator(width int) {
	fmt.Println("├" + rule("─", width))
}

// BoxPrefix returns the tree prefix for an item in a section.
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// FormatAmount renders coins as whole numbers and credits in dollars.
func FormatAmount(currency string, amount decimal.Decimal) string {
	switch currency {
	case models.CurrencyCoins:
		return amount.StringFixed(0) + " coins"
	case models.CurrencyCredits:
		return "$" + amount.StringFixed(2)
	}
	return amount.String() + " " + currency
}

// ShortId truncates long ids for tabular output.
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
