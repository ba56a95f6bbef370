// Package drip schedules multi-step SMS, WhatsApp and email campaigns and
// dispatches due messages.
package drip

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"iamblessed-funnel-go/internal/messaging"
	"iamblessed-funnel-go/internal/models"

	"gopkg.in/yaml.v2"
)

// Well-known campaign keys
const (
	WelcomeCampaign = "welcome"
	NudgeCampaign   = "joy-keys-nudge"
)

type Step struct {
	Offset   time.Duration
	Channel  string
	Subject  string
	Template string
}

type Campaign struct {
	Key   string
	Name  string
	Steps []Step
}

// Catalog holds the campaign definitions by key.
type Catalog struct {
	campaigns map[string]Campaign
	order     []string
}

type stepConfig struct {
	Offset   string `yaml:"offset"`
	Channel  string `yaml:"channel"`
	Subject  string `yaml:"subject"`
	Template string `yaml:"template"`
}

type campaignConfig struct {
	Key   string       `yaml:"key"`
	Name  string       `yaml:"name"`
	Steps []stepConfig `yaml:"steps"`
}

type campaignsConfig struct {
	Campaigns []campaignConfig `yaml:"campaigns"`
}

// LoadCatalog reads campaign definitions from a YAML file.
func LoadCatalog(campaignsFile string) (*Catalog, error) {
	campaignsPath := campaignsFile
	if !filepath.IsAbs(campaignsFile) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		campaignsPath = filepath.Join(wd, campaignsFile)
	}

	data, err := os.ReadFile(campaignsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", campaignsFile, err)
	}

	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s: %w", campaignsFile, err)
	}
	return catalog, nil
}

// ParseCatalog decodes and validates campaign YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var config campaignsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse campaigns: %w", err)
	}
	if len(config.Campaigns) == 0 {
		return nil, fmt.Errorf("no campaigns defined")
	}

	catalog := &Catalog{campaigns: make(map[string]Campaign)}
	for i, cc := range config.Campaigns {
		c, err := buildCampaign(cc)
		if err != nil {
			return nil, fmt.Errorf("campaign at index %d: %w", i, err)
		}
		if _, dup := catalog.campaigns[c.Key]; dup {
			return nil, fmt.Errorf("duplicate campaign key %q", c.Key)
		}
		catalog.campaigns[c.Key] = c
		catalog.order = append(catalog.order, c.Key)
	}
	return catalog, nil
}

func buildCampaign(cc campaignConfig) (Campaign, error) {
	if cc.Key == "" {
		return Campaign{}, fmt.Errorf("missing key")
	}
	if len(cc.Steps) == 0 {
		return Campaign{}, fmt.Errorf("%s: no steps", cc.Key)
	}

	c := Campaign{Key: cc.Key, Name: cc.Name}
	if c.Name == "" {
		c.Name = cc.Key
	}

	var previous time.Duration
	for i, sc := range cc.Steps {
		offset, err := parseOffset(sc.Offset)
		if err != nil {
			return Campaign{}, fmt.Errorf("%s step %d: %w", cc.Key, i+1, err)
		}
		if offset < previous {
			return Campaign{}, fmt.Errorf("%s step %d: offset %s is before the previous step (%s)", cc.Key, i+1, offset, previous)
		}
		previous = offset

		switch sc.Channel {
		case models.ChannelSMS, models.ChannelWhatsApp:
		case models.ChannelEmail:
			if sc.Subject == "" {
				return Campaign{}, fmt.Errorf("%s step %d: email steps need a subject", cc.Key, i+1)
			}
		default:
			return Campaign{}, fmt.Errorf("%s step %d: unknown channel %q", cc.Key, i+1, sc.Channel)
		}

		if strings.TrimSpace(sc.Template) == "" {
			return Campaign{}, fmt.Errorf("%s step %d: empty template", cc.Key, i+1)
		}
		if err := messaging.Validate(sc.Template); err != nil {
			return Campaign{}, fmt.Errorf("%s step %d: %w", cc.Key, i+1, err)
		}
		if err := messaging.Validate(sc.Subject); err != nil {
			return Campaign{}, fmt.Errorf("%s step %d subject: %w", cc.Key, i+1, err)
		}

		c.Steps = append(c.Steps, Step{
			Offset:   offset,
			Channel:  sc.Channel,
			Subject:  sc.Subject,
			Template: sc.Template,
		})
	}
	return c, nil
}

// parseOffset accepts Go durations plus a "d" suffix for days.
func parseOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
		if n < 0 {
			return 0, fmt.Errorf("negative offset %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative offset %q", s)
	}
	return d, nil
}

func (c *Catalog) Get(key string) (Campaign, bool) {
	campaign, ok := c.campaigns[key]
	return campaign, ok
}

// Campaigns returns the campaigns in file order.
func (c *Catalog) Campaigns() []Campaign {
	out := make([]Campaign, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.campaigns[key])
	}
	return out
}
