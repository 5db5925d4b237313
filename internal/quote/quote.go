// Package quote renders an estimate as a plain-text customer quote.
package quote

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/cabinetry/internal/pricing"
)

const rule = "------------------------------------------------------------------------"

// Quote is everything a rendered quote shows.
type Quote struct {
	Title    string
	Currency string
	IssuedAt time.Time
	Request  pricing.EstimateRequest
	Result   pricing.Result
}

// Money formats v rounded half-up to two places with thousands separators.
func Money(v float64) string {
	fixed := decimal.NewFromFloat(v).Round(2).StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

// Render writes q to w.
func Render(w io.Writer, q Quote) error {
	p := &printer{w: w}
	rates := q.Request.Rates.WithDefaults()
	bd := q.Result.Breakdown

	title := q.Title
	if title == "" {
		title = "CABINETRY QUOTE"
	}
	p.line(rule)
	p.line(strings.ToUpper(title))
	p.line(rule)
	if !q.IssuedAt.IsZero() {
		p.field("Issued", q.IssuedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if q.Request.ProjectType != "" {
		p.field("Project", q.Request.ProjectType)
	}
	p.field("Category", q.Request.CabinetCategory)
	p.field("Tier", q.Request.Tier)
	p.field("Mode", string(bd.Mode))
	p.line("")

	switch bd.Mode {
	case pricing.ModePerUnit:
		p.line("LINE ITEMS")
		for i, li := range bd.Units {
			p.printf("%2d. %-8s %7s m  x %14s  %16s\n",
				i+1, li.Category, decimal.NewFromFloat(li.Meters).StringFixed(2), Money(li.BaseRate), q.money(li.LineTotal))
			if li.InstallationAdd > 0 {
				p.printf("    %-38s %16s\n", "installation", q.money(li.InstallationAdd))
			}
		}
		p.line("")
		p.amount("Subtotal", q.money(bd.Subtotal))
		if q.Request.DowngradeToMFC {
			p.line("  includes MFC downgrade (-10%)")
		}
		if q.Request.ApplyImportSurcharge {
			p.line("  includes import surcharge (+10%)")
		}
		p.amount("Tax", q.money(bd.Tax))
		p.amount("Discount", "-"+q.money(bd.Discount))
	case pricing.ModeLegacy:
		p.field("Cabinet type", pricing.LegacyCabinetType(legacyType(q.Request)))
		p.field("Linear meters", decimal.NewFromFloat(q.Request.LinearMeter).StringFixed(2))
		if q.Request.Installation {
			p.line("Installation included")
		}
		p.line("")
	default:
		p.line("Nothing to price: add an enabled unit with meters or a linear meter value.")
		p.line("")
	}

	p.line(rule)
	p.amount("TOTAL", q.money(q.Result.Total))
	p.line(rule)

	if spec, ok := rates.TierSpecFor(q.Request.Tier); ok {
		p.line("")
		p.printf("INCLUDED (%s)\n", q.Request.Tier)
		for _, item := range spec.Items {
			p.printf("  - %s\n", item)
		}
		if len(spec.Exclusive) > 0 {
			p.line("NOT INCLUDED")
			for _, item := range spec.Exclusive {
				p.printf("  - %s\n", item)
			}
		}
	}

	if q.Request.CabinetCategory != "" {
		fees := "without fees"
		if q.Request.IncludeFees {
			fees = "with fees"
		}
		p.line("")
		p.printf("Reference sheet rate (%s, %s): %s\n",
			q.Request.CabinetCategory, fees, q.money(rates.SheetRateFor(q.Request.CabinetCategory, q.Request.IncludeFees)))
	}

	if p.err != nil {
		return fmt.Errorf("render quote: %w", p.err)
	}
	return nil
}

func (q Quote) money(v float64) string {
	if q.Currency == "" {
		return Money(v)
	}
	return q.Currency + " " + Money(v)
}

func legacyType(req pricing.EstimateRequest) string {
	if req.CabinetType != "" {
		return req.CabinetType
	}
	return req.Tier
}

// printer keeps the first write error so Render can check once at the end.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) line(s string) {
	p.printf("%s\n", s)
}

func (p *printer) field(label, value string) {
	p.printf("%-14s %s\n", label+":", value)
}

func (p *printer) amount(label, value string) {
	p.printf("%-40s %31s\n", label, value)
}
