package messaging

import (
	"bytes"
	"fmt"
	"text/template"
)

// TemplateData holds the fields a campaign template may reference.
type TemplateData struct {
	Name         string
	FirstName    string
	Email        string
	ReferralCode string
	ReferralLink string
	CheckoutLink string
	Coins        string
	Credits      string
	Campaign     string
}

// Render executes a message template against data. Unknown fields are errors.
func Render(text string, data TemplateData) (string, error) {
	tmpl, err := template.New("message").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

// Validate parses a template and executes it against sample data so that field
// typos are caught before a campaign is scheduled.
func Validate(text string) error {
	_, err := Render(text, TemplateData{
		Name:         "Sample Participant",
		FirstName:    "Sample",
		Email:        "sample@example.com",
		ReferralCode: "ABCD2345",
		ReferralLink: "https://example.com/?ref=ABCD2345",
		CheckoutLink: "https://example.com/checkout",
		Coins:        "50",
		Credits:      "0.00",
		Campaign:     "sample",
	})
	return err
}
