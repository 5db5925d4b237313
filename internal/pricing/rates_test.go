package pricing

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestWithDefaults_FillsMissingAndKeepsExtraKeys(t *testing.T) {
	cfg := RateConfiguration{
		BaseRates:       map[string]float64{CategoryBase: 1000, "corner": 700},
		TierMultipliers: map[string]float64{TierPremium: 0.95},
	}

	got := cfg.WithDefaults()

	nearlyEqual(t, "base", got.BaseRates[CategoryBase], 1000)
	nearlyEqual(t, "corner", got.BaseRates["corner"], 700)
	nearlyEqual(t, "hanging default", got.BaseRates[CategoryHanging], 38452.58)
	nearlyEqual(t, "premium", got.TierMultipliers[TierPremium], 0.95)
	nearlyEqual(t, "luxury default", got.TierMultipliers[TierLuxury], 1)
	nearlyEqual(t, "basic default", got.CabinetTypeMultipliers[CabinetTypeBasic], 0.8)
	nearlyEqual(t, "tall withFees", got.SheetRates[CategoryTall].WithFees, 82286.1)
	if len(got.TierSpecs) != 3 {
		t.Fatalf("expected 3 tier specs, got %d", len(got.TierSpecs))
	}

	if _, ok := cfg.BaseRates[CategoryHanging]; ok {
		t.Fatalf("WithDefaults must not mutate its receiver")
	}
}

func TestWithDefaults_ReplacesInvalidValues(t *testing.T) {
	cfg := RateConfiguration{
		BaseRates:              map[string]float64{CategoryBase: -1},
		TierMultipliers:        map[string]float64{TierStandard: 0},
		CabinetTypeMultipliers: map[string]float64{CabinetTypePremium: -0.9},
	}

	got := cfg.WithDefaults()

	nearlyEqual(t, "base", got.BaseRates[CategoryBase], 40476.4)
	nearlyEqual(t, "standard", got.TierMultipliers[TierStandard], 0.8)
	nearlyEqual(t, "premium type", got.CabinetTypeMultipliers[CabinetTypePremium], 0.9)
}

func TestWithDefaults_CompleteConfigIsUnchanged(t *testing.T) {
	cfg := DefaultRateConfiguration()
	cfg.BaseRates[CategoryBase] = 1234

	if got := cfg.WithDefaults(); !reflect.DeepEqual(got, cfg) {
		t.Fatalf("complete config changed:\n%+v\n%+v", got, cfg)
	}
}

func TestMerge_OverlaysPerKey(t *testing.T) {
	current := DefaultRateConfiguration()
	partial := RateConfiguration{
		BaseRates: map[string]float64{CategoryTall: 70000},
		TierSpecs: map[string]TierSpec{TierLuxury: {Items: []string{"Solid oak"}, Exclusive: []string{}}},
	}

	got := current.Merge(partial)

	nearlyEqual(t, "tall", got.BaseRates[CategoryTall], 70000)
	nearlyEqual(t, "base untouched", got.BaseRates[CategoryBase], 40476.4)
	nearlyEqual(t, "tier untouched", got.TierMultipliers[TierPremium], 0.9)
	if got.TierSpecs[TierLuxury].Items[0] != "Solid oak" {
		t.Fatalf("luxury spec not replaced: %+v", got.TierSpecs[TierLuxury])
	}
	if len(got.TierSpecs[TierStandard].Items) == 0 {
		t.Fatalf("standard spec should be untouched")
	}
	nearlyEqual(t, "receiver untouched", current.BaseRates[CategoryTall], 65182.2)
}

func TestValidate(t *testing.T) {
	if err := DefaultRateConfiguration().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	cases := []struct {
		name string
		cfg  RateConfiguration
		want string
	}{
		{"negative rate", RateConfiguration{BaseRates: map[string]float64{CategoryBase: -1}}, "baseRates.base"},
		{"zero tier multiplier", RateConfiguration{TierMultipliers: map[string]float64{TierLuxury: 0}}, "tierMultipliers.luxury"},
		{"negative type multiplier", RateConfiguration{CabinetTypeMultipliers: map[string]float64{CabinetTypeBasic: -2}}, "cabinetTypeMultipliers.basic"},
		{"negative sheet rate", RateConfiguration{SheetRates: map[string]SheetRate{CategoryTall: {WithFees: -3}}}, "sheetRates.tall"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tc.want)
			}
		})
	}
}

func TestMissingKeys(t *testing.T) {
	cfg := DefaultRateConfiguration()
	delete(cfg.BaseRates, CategoryHanging)
	cfg.TierMultipliers = nil

	got := cfg.MissingKeys()
	want := []string{"baseRates.hanging", "tierMultipliers.luxury", "tierMultipliers.premium", "tierMultipliers.standard"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MissingKeys() = %v, want %v", got, want)
	}
}

func TestMissingKeys_ReportsTierSpecs(t *testing.T) {
	cfg := DefaultRateConfiguration()
	delete(cfg.TierSpecs, TierPremium)

	got := cfg.MissingKeys()
	want := []string{"tierSpecs.premium"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MissingKeys() = %v, want %v", got, want)
	}
}

func TestBaseRateFor(t *testing.T) {
	cfg := RateConfiguration{BaseRates: map[string]float64{CategoryBase: 1000, CategoryTall: -5, "corner": 700}}

	cases := []struct {
		category string
		want     float64
		ok       bool
	}{
		{CategoryBase, 1000, true},
		{CategoryTall, 65182.2, true},
		{CategoryHanging, 38452.58, true},
		{"corner", 700, true},
		{"", 0, false},
		{"island", 0, false},
	}
	for _, tc := range cases {
		got, ok := cfg.BaseRateFor(tc.category)
		if ok != tc.ok {
			t.Fatalf("BaseRateFor(%q) ok = %v, want %v", tc.category, ok, tc.ok)
		}
		nearlyEqual(t, "BaseRateFor("+tc.category+")", got, tc.want)
	}
}

func TestRateConfigurationJSONKeepsEmptyMaps(t *testing.T) {
	cfg := RateConfiguration{BaseRates: map[string]float64{}}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got RateConfiguration
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(got, cfg) {
		t.Fatalf("round trip = %#v, want %#v", got, cfg)
	}
	if got.BaseRates == nil || got.TierMultipliers != nil {
		t.Fatalf("empty and absent maps must stay distinct: %#v", got)
	}
}

func TestSheetRateFor(t *testing.T) {
	cfg := RateConfiguration{}
	nearlyEqual(t, "without fees", cfg.SheetRateFor(CategoryHanging, false), 38452.58)
	nearlyEqual(t, "with fees", cfg.SheetRateFor(CategoryHanging, true), 48542.53)
}

func TestDefaultTierSpecsCarryExclusions(t *testing.T) {
	for _, tier := range []string{TierStandard, TierPremium, TierLuxury} {
		spec, ok := RateConfiguration{}.TierSpecFor(tier)
		if !ok {
			t.Fatalf("missing default spec for %s", tier)
		}
		if len(spec.Items) != 4 {
			t.Fatalf("%s: expected 4 items, got %d", tier, len(spec.Items))
		}
		if !reflect.DeepEqual(spec.Exclusive, []string{"Special Mechanism", "Lighting", "Appliances"}) {
			t.Fatalf("%s: unexpected exclusions %v", tier, spec.Exclusive)
		}
	}
}

func TestPrefillReplayReproducesEstimate(t *testing.T) {
	req := EstimateRequest{
		ProjectType:          "kitchen",
		CabinetCategory:      CategoryBase,
		Tier:                 TierPremium,
		Installation:         true,
		ApplyTax:             true,
		TaxRate:              0.12,
		Discount:             0.05,
		DowngradeToMFC:       true,
		ApplyImportSurcharge: true,
		Units: []Unit{
			{Enabled: true, Category: CategoryBase, Meters: 3.2, Material: "laminate"},
			{Enabled: true, Category: CategoryHanging, Meters: 2, Finish: "stained"},
		},
		Rates: flatRates(),
	}
	original := Estimate(req)

	prefill := NewPrefill(req, original)
	replayed := Estimate(prefill.Request(req.Rates))

	if !reflect.DeepEqual(original, replayed) {
		t.Fatalf("replay differs:\n%+v\n%+v", original, replayed)
	}
	if prefill.Estimate != original.Total || prefill.Subtotal != original.Breakdown.Subtotal {
		t.Fatalf("prefill figures do not match result: %+v", prefill)
	}
}
