package bridge

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Currency describes a card currency the bridge accepts.
type Currency struct {
	Code       string
	MinorUnits int32

	// Rate is the number of settlement asset units per currency unit.
	Rate decimal.Decimal
}

// RateTable holds the conversion rates into the settlement asset.
type RateTable struct {
	Asset           string
	AssetMinorUnits int32
	currencies      map[string]Currency
}

type rateFile struct {
	Asset           string `yaml:"asset"`
	AssetMinorUnits int32  `yaml:"asset_minor_units"`
	Currencies      []struct {
		Code       string `yaml:"code"`
		MinorUnits int32  `yaml:"minor_units"`
		Rate       string `yaml:"rate"`
	} `yaml:"currencies"`
}

// DefaultRates settles USD at parity into a six decimal stablecoin. KES is accepted at a fixed
// rate until a rates file is configured.
func DefaultRates(asset string) *RateTable {
	rt := &RateTable{
		Asset:           asset,
		AssetMinorUnits: 6,
		currencies:      map[string]Currency{},
	}

	rt.currencies["USD"] = Currency{Code: "USD", MinorUnits: 2, Rate: decimal.NewFromInt(1)}
	rt.currencies["KES"] = Currency{Code: "KES", MinorUnits: 2, Rate: decimal.RequireFromString("0.0077")}

	return rt
}

// LoadRates reads a YAML rate table.
func LoadRates(path string) (*RateTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read rates")
	}

	return ParseRates(b)
}

// ParseRates parses a YAML rate table:
//
//	asset: USDC
//	asset_minor_units: 6
//	currencies:
//	  - code: USD
//	    minor_units: 2
//	    rate: "1"
func ParseRates(b []byte) (*RateTable, error) {
	var f rateFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrap(err, "parse rates")
	}

	if len(f.Asset) == 0 {
		return nil, errors.New("rates: asset required")
	}
	if f.AssetMinorUnits < 0 {
		return nil, errors.New("rates: negative asset minor units")
	}

	rt := &RateTable{
		Asset:           f.Asset,
		AssetMinorUnits: f.AssetMinorUnits,
		currencies:      map[string]Currency{},
	}

	for _, c := range f.Currencies {
		code := strings.ToUpper(c.Code)
		rate, err := decimal.NewFromString(c.Rate)
		if err != nil {
			return nil, errors.Wrapf(err, "rates: %s rate", code)
		}
		if !rate.IsPositive() {
			return nil, errors.Errorf("rates: %s rate must be positive", code)
		}
		if c.MinorUnits < 0 {
			return nil, errors.Errorf("rates: %s negative minor units", code)
		}
		if _, exists := rt.currencies[code]; exists {
			return nil, errors.Errorf("rates: %s listed twice", code)
		}

		rt.currencies[code] = Currency{Code: code, MinorUnits: c.MinorUnits, Rate: rate}
	}

	if len(rt.currencies) == 0 {
		return nil, errors.New("rates: no currencies")
	}

	return rt, nil
}

// Lookup returns the currency for code, ignoring case.
func (rt *RateTable) Lookup(code string) (Currency, bool) {
	c, ok := rt.currencies[strings.ToUpper(code)]
	return c, ok
}

// Convert returns amount in the settlement asset, rounded half away from zero to the asset's
// minor unit. A rate of one returns the amount unchanged.
func (rt *RateTable) Convert(amount decimal.Decimal, c Currency) decimal.Decimal {
	if c.Rate.Equal(decimal.NewFromInt(1)) {
		return amount
	}

	return amount.Mul(c.Rate).Round(rt.AssetMinorUnits)
}
