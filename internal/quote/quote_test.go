package quote

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Simplici0/cabinetry/internal/pricing"
)

func TestMoney(t *testing.T) {
	cases := map[float64]string{
		0:            "0.00",
		5:            "5.00",
		999.999:      "1,000.00",
		1234.005:     "1,234.01",
		40476.4:      "40,476.40",
		1234567.891:  "1,234,567.89",
		-2500.5:      "-2,500.50",
		123456789.12: "123,456,789.12",
	}
	for in, want := range cases {
		if got := Money(in); got != want {
			t.Errorf("Money(%v) = %q, want %q", in, got, want)
		}
	}
}

func render(t *testing.T, q Quote) string {
	t.Helper()

	var b strings.Builder
	if err := Render(&b, q); err != nil {
		t.Fatalf("render quote: %v", err)
	}
	return b.String()
}

func TestRender_PerUnitQuote(t *testing.T) {
	req := pricing.EstimateRequest{
		ProjectType:     "kitchen",
		CabinetCategory: pricing.CategoryBase,
		Tier:            pricing.TierPremium,
		Installation:    true,
		IncludeFees:     true,
		Units: []pricing.Unit{
			{Enabled: true, Category: pricing.CategoryBase, Meters: 2},
		},
		Rates: pricing.RateConfiguration{
			BaseRates:       map[string]float64{pricing.CategoryBase: 1000},
			TierMultipliers: map[string]float64{pricing.TierPremium: 0.9},
		},
	}
	res := pricing.Estimate(req)

	out := render(t, Quote{
		Currency: "COP",
		IssuedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Request:  req,
		Result:   res,
	})

	for _, want := range []string{
		"CABINETRY QUOTE",
		"Issued:        2024-03-01 12:00 UTC",
		"Mode:          per-unit",
		"COP 1,800.00",
		"installation",
		"COP 600.00",
		"COP 2,400.00",
		"INCLUDED (premium)",
		"Quartz countertop",
		"NOT INCLUDED",
		"  - Appliances",
		"Reference sheet rate (base, with fees): COP 51,097.40",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("quote missing %q:\n%s", want, out)
		}
	}
}

func TestRender_LegacyQuote(t *testing.T) {
	req := pricing.EstimateRequest{
		CabinetCategory: pricing.CategoryBase,
		Tier:            pricing.TierStandard,
		LinearMeter:     3,
		Rates: pricing.RateConfiguration{
			BaseRates: map[string]float64{pricing.CategoryBase: 3000},
		},
	}
	out := render(t, Quote{Request: req, Result: pricing.Estimate(req)})

	for _, want := range []string{
		"Mode:          legacy",
		"Cabinet type:  basic",
		"Linear meters: 3.00",
		"7,200.00",
		"Reference sheet rate (base, without fees): 40,476.40",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("quote missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "LINE ITEMS") {
		t.Errorf("legacy quote must not list line items:\n%s", out)
	}
}

func TestRender_NothingToPrice(t *testing.T) {
	req := pricing.EstimateRequest{Tier: "bespoke"}
	out := render(t, Quote{Title: "Draft", Request: req, Result: pricing.Estimate(req)})

	if !strings.Contains(out, "DRAFT") || !strings.Contains(out, "Nothing to price") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "INCLUDED") {
		t.Errorf("unknown tier must not list a bill of materials:\n%s", out)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestRender_ReportsWriteError(t *testing.T) {
	err := Render(failingWriter{}, Quote{})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write error, got %v", err)
	}
}
