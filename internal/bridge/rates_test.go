package bridge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/trustvault/settlement/internal/platform/tests"

	"github.com/shopspring/decimal"
)

func TestParseRates(t *testing.T) {
	raw := []byte(`
asset: USDC
asset_minor_units: 6
currencies:
  - code: usd
    minor_units: 2
    rate: "1"
  - code: KES
    minor_units: 2
    rate: "0.0075"
`)

	rt, err := ParseRates(raw)
	if err != nil {
		t.Fatalf("\t%s\tParse rates : %s", tests.Failed, err)
	}

	usd, ok := rt.Lookup("USD")
	if !ok {
		t.Fatalf("\t%s\tUSD missing", tests.Failed)
	}
	if got := rt.Convert(decimal.RequireFromString("100.00"), usd); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("\t%s\tUSD conversion : got %s", tests.Failed, got)
	}

	kes, _ := rt.Lookup("KES")
	if got := rt.Convert(decimal.RequireFromString("1000.00"), kes); !got.Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("\t%s\tKES conversion : got %s", tests.Failed, got)
	}
	t.Logf("\t%s\tRates parsed", tests.Success)

	for _, code := range []string{"usd", "Usd", "kes"} {
		c, ok := rt.Lookup(code)
		if !ok {
			t.Fatalf("\t%s\tLookup %s : missing", tests.Failed, code)
		}
		if c.Code != strings.ToUpper(code) {
			t.Fatalf("\t%s\tLookup %s : got code %s", tests.Failed, code, c.Code)
		}
	}
	if _, ok := rt.Lookup("eur"); ok {
		t.Fatalf("\t%s\tLookup eur : unexpectedly present", tests.Failed)
	}
	t.Logf("\t%s\tLookup ignores case", tests.Success)
}

func TestParseRatesInvalid(t *testing.T) {
	cases := map[string]string{
		"no asset":      "currencies:\n  - code: USD\n    rate: \"1\"\n",
		"bad rate":      "asset: USDC\ncurrencies:\n  - code: USD\n    rate: abc\n",
		"zero rate":     "asset: USDC\ncurrencies:\n  - code: USD\n    rate: \"0\"\n",
		"duplicate":     "asset: USDC\ncurrencies:\n  - code: USD\n    rate: \"1\"\n  - code: usd\n    rate: \"1\"\n",
		"no currencies": "asset: USDC\n",
		"not yaml":      "asset: [",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseRates([]byte(raw)); err == nil {
				t.Fatalf("\t%s\tShould reject", tests.Failed)
			}
			t.Logf("\t%s\tRejected", tests.Success)
		})
	}
}

func TestLoadRates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	if err := os.WriteFile(path, []byte("asset: USDT\nasset_minor_units: 6\ncurrencies:\n  - code: USD\n    minor_units: 2\n    rate: \"1\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	rt, err := LoadRates(path)
	if err != nil {
		t.Fatalf("\t%s\tLoad rates : %s", tests.Failed, err)
	}
	if rt.Asset != "USDT" {
		t.Fatalf("\t%s\tAsset : got %s", tests.Failed, rt.Asset)
	}

	if _, err := LoadRates(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("\t%s\tMissing file should fail", tests.Failed)
	}
	t.Logf("\t%s\tRates loaded", tests.Success)
}
