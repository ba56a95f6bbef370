package tiers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type tierConfig struct {
	Name      string  `yaml:"name"`
	Threshold float64 `yaml:"threshold"`
	Reward    float64 `yaml:"reward"`
	Rate      float64 `yaml:"rate"`
}

type tiersConfig struct {
	Affiliate []tierConfig `yaml:"affiliate"`
	Clipper   []tierConfig `yaml:"clipper"`
}

// Load returns the built-in ladders overridden by any ladder present in tiersFile.
// An empty path or a missing file yields the defaults.
func Load(tiersFile string) (*Set, error) {
	set := Defaults()
	if tiersFile == "" {
		return set, nil
	}

	tiersPath := tiersFile
	if !filepath.IsAbs(tiersFile) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		tiersPath = filepath.Join(wd, tiersFile)
	}

	data, err := os.ReadFile(tiersPath)
	if os.IsNotExist(err) {
		zap.L().Info("No tiers file found, using built-in ladders", zap.String("path", tiersPath))
		return set, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", tiersFile, err)
	}

	return Parse(data)
}

// Parse decodes tiers YAML on top of the defaults.
func Parse(data []byte) (*Set, error) {
	var config tiersConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse tiers: %w", err)
	}

	set := Defaults()
	if config.Affiliate != nil {
		l, err := buildLadder(Affiliate, config.Affiliate)
		if err != nil {
			return nil, err
		}
		set.Affiliate = l
	}
	if config.Clipper != nil {
		l, err := buildLadder(Clipper, config.Clipper)
		if err != nil {
			return nil, err
		}
		set.Clipper = l
	}
	return set, nil
}

func buildLadder(name string, cfg []tierConfig) (*Ladder, error) {
	tiers := make([]Tier, len(cfg))
	for i, t := range cfg {
		tiers[i] = Tier{
			Name:      t.Name,
			Threshold: decimal.NewFromFloat(t.Threshold),
			Reward:    decimal.NewFromFloat(t.Reward),
			Rate:      decimal.NewFromFloat(t.Rate),
		}
	}
	l, err := NewLadder(name, tiers)
	if err != nil {
		return nil, fmt.Errorf("invalid %s ladder: %w", name, err)
	}
	return l, nil
}
