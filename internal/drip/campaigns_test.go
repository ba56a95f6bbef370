package drip

import (
	"strings"
	"testing"
	"time"
)

const testCampaigns = `
campaigns:
  - key: welcome
    name: Welcome series
    steps:
      - offset: 0
        channel: sms
        template: "Hi {{.FirstName}}, welcome! Share your link: {{.ReferralLink}}"
      - offset: 1d
        channel: email
        subject: "Your gratitude journey, {{.FirstName}}"
        template: "You have {{.Coins}} coins waiting."
  - key: joy-keys-nudge
    steps:
      - offset: 2h
        channel: whatsapp
        template: "{{.FirstName}}, your next joy key is one tap away."
`

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(testCampaigns))
	if err != nil {
		t.Fatalf("ParseCatalog failed: %v", err)
	}

	campaigns := catalog.Campaigns()
	if len(campaigns) != 2 {
		t.Fatalf("expected 2 campaigns, got %d", len(campaigns))
	}
	if campaigns[0].Key != WelcomeCampaign || campaigns[1].Key != NudgeCampaign {
		t.Errorf("campaigns out of file order: %s, %s", campaigns[0].Key, campaigns[1].Key)
	}

	welcome, ok := catalog.Get(WelcomeCampaign)
	if !ok {
		t.Fatal("welcome campaign missing")
	}
	if welcome.Steps[1].Offset != 24*time.Hour {
		t.Errorf("expected 24h offset, got %s", welcome.Steps[1].Offset)
	}

	nudge, _ := catalog.Get(NudgeCampaign)
	if nudge.Name != NudgeCampaign {
		t.Errorf("expected name to default to key, got %q", nudge.Name)
	}

	if _, ok := catalog.Get("missing"); ok {
		t.Error("unexpected campaign for unknown key")
	}
}

func TestParseCatalogRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "empty",
			yaml: "campaigns: []",
			want: "no campaigns",
		},
		{
			name: "duplicate key",
			yaml: `
campaigns:
  - key: a
    steps: [{offset: 0, channel: sms, template: hi}]
  - key: a
    steps: [{offset: 0, channel: sms, template: hi}]`,
			want: "duplicate",
		},
		{
			name: "no steps",
			yaml: `
campaigns:
  - key: a`,
			want: "no steps",
		},
		{
			name: "decreasing offsets",
			yaml: `
campaigns:
  - key: a
    steps:
      - {offset: 2h, channel: sms, template: hi}
      - {offset: 1h, channel: sms, template: hi}`,
			want: "before the previous step",
		},
		{
			name: "negative offset",
			yaml: `
campaigns:
  - key: a
    steps: [{offset: -1h, channel: sms, template: hi}]`,
			want: "negative",
		},
		{
			name: "unknown channel",
			yaml: `
campaigns:
  - key: a
    steps: [{offset: 0, channel: pigeon, template: hi}]`,
			want: "unknown channel",
		},
		{
			name: "email without subject",
			yaml: `
campaigns:
  - key: a
    steps: [{offset: 0, channel: email, template: hi}]`,
			want: "subject",
		},
		{
			name: "unknown template field",
			yaml: `
campaigns:
  - key: a
    steps: [{offset: 0, channel: sms, template: "hi {{.Nickname}}"}]`,
			want: "step 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseCatalogAllowsSameTimeSteps(t *testing.T) {
	_, err := ParseCatalog([]byte(`
campaigns:
  - key: a
    steps:
      - {offset: 1h, channel: sms, template: hi}
      - {offset: 1h, channel: email, subject: hello, template: hi}`))
	if err != nil {
		t.Fatalf("expected equal offsets to be accepted: %v", err)
	}
}

func TestParseOffset(t *testing.T) {
	tests := map[string]time.Duration{
		"":      0,
		"0":     0,
		"90m":   90 * time.Minute,
		"3d":    72 * time.Hour,
		" 12h ": 12 * time.Hour,
	}
	for in, want := range tests {
		got, err := parseOffset(in)
		if err != nil {
			t.Errorf("parseOffset(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("parseOffset(%q) = %s, want %s", in, got, want)
		}
	}

	for _, bad := range []string{"xd", "-2d", "soon"} {
		if _, err := parseOffset(bad); err == nil {
			t.Errorf("parseOffset(%q) expected error", bad)
		}
	}
}
