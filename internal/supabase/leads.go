package supabase

import (
	"context"
	"time"
)

const DefaultLeadsTable = "sms_leads"

// Lead is a row captured by the landing page opt-in form.
type Lead struct {
	Id           string    `json:"id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	ReferralCode string    `json:"referral_code"`
	CreatedAt    time.Time `json:"created_at"`
}

// FetchLeads returns leads created at or after since, oldest first.
func (c *Client) FetchLeads(ctx context.Context, table string, since time.Time, limit int) ([]Lead, error) {
	if table == "" {
		table = DefaultLeadsTable
	}
	var leads []Lead
	err := c.From(table).
		Select("id,name,phone,email,referral_code,created_at").
		Gte("created_at", since.UTC().Format(time.RFC3339)).
		Order("created_at", true).
		Limit(limit).
		Execute(ctx, &leads)
	if err != nil {
		return nil, err
	}
	return leads, nil
}
