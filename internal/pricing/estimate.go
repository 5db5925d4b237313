package pricing

import (
	"math"
	"strings"
)

// Mode is the calculation path chosen for a request.
type Mode string

const (
	ModeNone    Mode = "none"
	ModePerUnit Mode = "per-unit"
	ModeLegacy  Mode = "legacy"
)

const (
	installationRate    = 0.3
	mfcDowngradeRate    = 0.10
	importSurchargeRate = 0.10
)

// Factor tables for per-unit selections. Unknown or empty selections use 1.
var (
	materialFactors = map[string]float64{
		"melamine": 1.0,
		"laminate": 1.2,
		"wood":     1.8,
		"premium":  2.5,
	}
	finishFactors = map[string]float64{
		"standard": 1.0,
		"painted":  1.3,
		"stained":  1.4,
		"lacquer":  1.6,
	}
	hardwareFactors = map[string]float64{
		"basic":      1.0,
		"soft_close": 1.2,
		"premium":    1.5,
	}
)

// Unit is one cabinet run in a per-unit estimate.
type Unit struct {
	Enabled  bool    `json:"enabled"`
	Category string  `json:"category"`
	Meters   float64 `json:"meters"`
	Material string  `json:"material,omitempty"`
	Finish   string  `json:"finish,omitempty"`
	Hardware string  `json:"hardware,omitempty"`
	Tier     string  `json:"tier,omitempty"`
}

// Qualifies reports whether u takes part in a per-unit calculation.
func (u Unit) Qualifies() bool {
	return u.Enabled && sanitize(u.Meters) > 0
}

// EstimateRequest is the full input of Estimate.
type EstimateRequest struct {
	ProjectType          string            `json:"projectType,omitempty"`
	CabinetType          string            `json:"cabinetType,omitempty"`
	LinearMeter          float64           `json:"linearMeter,omitempty"`
	Installation         bool              `json:"installation"`
	CabinetCategory      string            `json:"cabinetCategory"`
	Tier                 string            `json:"tier"`
	Units                []Unit            `json:"units"`
	Discount             float64           `json:"discount"`
	ApplyTax             bool              `json:"applyTax"`
	TaxRate              float64           `json:"taxRate"`
	IncludeFees          bool              `json:"includeFees"`
	ApplyImportSurcharge bool              `json:"applyImportSurcharge"`
	DowngradeToMFC       bool              `json:"downgradeToMFC"`
	Rates                RateConfiguration `json:"rates"`
}

// LineItem is the computed cost of one qualifying unit.
type LineItem struct {
	Category        string  `json:"category"`
	Meters          float64 `json:"meters"`
	BaseRate        float64 `json:"baseRate"`
	TierFactor      float64 `json:"tierFactor"`
	MaterialFactor  float64 `json:"materialFactor"`
	FinishFactor    float64 `json:"finishFactor"`
	HardwareFactor  float64 `json:"hardwareFactor"`
	InstallationAdd float64 `json:"installationAdd"`
	LineTotal       float64 `json:"lineTotal"`
}

// Breakdown carries the aggregate values behind Result.Total.
type Breakdown struct {
	Mode     Mode       `json:"mode"`
	Subtotal float64    `json:"subtotal"`
	Tax      float64    `json:"tax"`
	Discount float64    `json:"discount"`
	Units    []LineItem `json:"units"`
}

// Result is the output of Estimate.
type Result struct {
	Total     float64   `json:"total"`
	Breakdown Breakdown `json:"breakdown"`
}

// SelectMode decides the calculation path. Any qualifying unit wins over the
// legacy linear meter. A positive linear meter selects legacy mode only when
// the project category has a base rate; otherwise there is nothing to price.
func SelectMode(req EstimateRequest) Mode {
	for _, u := range req.Units {
		if u.Qualifies() {
			return ModePerUnit
		}
	}
	if sanitize(req.LinearMeter) > 0 {
		if _, ok := req.Rates.BaseRateFor(req.CabinetCategory); ok {
			return ModeLegacy
		}
	}
	return ModeNone
}

// Estimate prices req. It is pure and never fails: incomplete input yields a zero result.
func Estimate(req EstimateRequest) Result {
	rates := req.Rates.WithDefaults()

	switch SelectMode(req) {
	case ModePerUnit:
		return estimatePerUnit(req, rates)
	case ModeLegacy:
		return estimateLegacy(req, rates)
	default:
		return Result{Breakdown: Breakdown{Mode: ModeNone, Units: []LineItem{}}}
	}
}

func estimatePerUnit(req EstimateRequest, rates RateConfiguration) Result {
	lines := make([]LineItem, 0, len(req.Units))
	subtotal := 0.0

	for _, u := range req.Units {
		if !u.Qualifies() {
			continue
		}
		line := priceUnit(u, req, rates)
		subtotal += line.LineTotal + line.InstallationAdd
		lines = append(lines, line)
	}

	// Downgrade first, then surcharge. Stored snapshots depend on this order.
	if req.DowngradeToMFC {
		subtotal *= 1 - mfcDowngradeRate
	}
	if req.ApplyImportSurcharge {
		subtotal *= 1 + importSurchargeRate
	}

	tax := 0.0
	if req.ApplyTax {
		tax = subtotal * sanitize(req.TaxRate)
	}
	discount := sanitize(req.Discount) * subtotal

	return Result{
		Total: math.Max(0, subtotal+tax-discount),
		Breakdown: Breakdown{
			Mode:     ModePerUnit,
			Subtotal: subtotal,
			Tax:      tax,
			Discount: discount,
			Units:    lines,
		},
	}
}

func priceUnit(u Unit, req EstimateRequest, rates RateConfiguration) LineItem {
	category := u.Category
	if category == "" {
		category = req.CabinetCategory
	}
	baseRate, ok := rates.BaseRates[category]
	if !ok {
		baseRate = rates.BaseRates[req.CabinetCategory]
	}

	tier := u.Tier
	if tier == "" {
		tier = req.Tier
	}
	tierFactor, ok := rates.TierMultipliers[tier]
	if !ok {
		tierFactor = 1
	}

	meters := sanitize(u.Meters)
	materialFactor := lookupFactor(materialFactors, u.Material)
	finishFactor := lookupFactor(finishFactors, u.Finish)
	hardwareFactor := lookupFactor(hardwareFactors, u.Hardware)

	installationAdd := 0.0
	if req.Installation {
		installationAdd = meters * baseRate * installationRate
	}

	return LineItem{
		Category:        category,
		Meters:          meters,
		BaseRate:        baseRate,
		TierFactor:      tierFactor,
		MaterialFactor:  materialFactor,
		FinishFactor:    finishFactor,
		HardwareFactor:  hardwareFactor,
		InstallationAdd: installationAdd,
		LineTotal:       meters * baseRate * tierFactor * materialFactor * finishFactor * hardwareFactor,
	}
}

// estimateLegacy reproduces the single-field calculator: luxury base rate times
// linear meters, discounted by cabinet type. Tier multipliers, factors, fees,
// surcharges, tax and discount do not apply.
func estimateLegacy(req EstimateRequest, rates RateConfiguration) Result {
	meters := sanitize(req.LinearMeter)
	luxuryRate := rates.BaseRates[req.CabinetCategory]

	cabinetType := req.CabinetType
	if cabinetType == "" {
		cabinetType = req.Tier
	}
	typeFactor, ok := rates.CabinetTypeMultipliers[LegacyCabinetType(cabinetType)]
	if !ok {
		typeFactor = 1
	}

	total := luxuryRate * meters * typeFactor
	if req.Installation {
		total += luxuryRate * installationRate * meters
	}

	return Result{
		Total: total,
		Breakdown: Breakdown{
			Mode:     ModeLegacy,
			Subtotal: total,
			Units:    []LineItem{},
		},
	}
}

// LegacyCabinetType maps a tier name onto the legacy cabinet type vocabulary.
func LegacyCabinetType(tierOrType string) string {
	t := strings.ToLower(strings.TrimSpace(tierOrType))
	if t == TierStandard {
		return CabinetTypeBasic
	}
	return t
}

func lookupFactor(table map[string]float64, key string) float64 {
	if f, ok := table[strings.ToLower(strings.TrimSpace(key))]; ok {
		return f
	}
	return 1
}

// sanitize maps NaN, infinities and negatives to zero.
func sanitize(v float64) float64 {
	if !validNumber(v) || v < 0 {
		return 0
	}
	return v
}

func validNumber(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
