package pricing

import (
	"fmt"
	"sort"
)

// Cabinet categories.
const (
	CategoryBase    = "base"
	CategoryHanging = "hanging"
	CategoryTall    = "tall"
)

// Quality tiers.
const (
	TierLuxury   = "luxury"
	TierPremium  = "premium"
	TierStandard = "standard"
)

// Legacy cabinet types. The legacy calculator calls the lowest grade "basic".
const (
	CabinetTypeLuxury  = "luxury"
	CabinetTypePremium = "premium"
	CabinetTypeBasic   = "basic"
)

// SheetRate is the absolute sheet cost for a category with and without fees.
type SheetRate struct {
	WithoutFees float64 `json:"withoutFees"`
	WithFees    float64 `json:"withFees"`
}

// TierSpec is the bill of materials disclosed for a tier. It does not affect price.
type TierSpec struct {
	Items     []string `json:"items"`
	Exclusive []string `json:"exclusive"`
}

// RateConfiguration holds every pricing input that can be edited by an admin.
// A nil map means "not provided"; WithDefaults fills it. Nil and empty maps
// encode differently (null and {}) so both survive a JSON round trip.
type RateConfiguration struct {
	BaseRates              map[string]float64   `json:"baseRates"`
	TierMultipliers        map[string]float64   `json:"tierMultipliers"`
	CabinetTypeMultipliers map[string]float64   `json:"cabinetTypeMultipliers"`
	SheetRates             map[string]SheetRate `json:"sheetRates"`
	TierSpecs              map[string]TierSpec  `json:"tierSpecs"`
}

var defaultExclusions = []string{"Special Mechanism", "Lighting", "Appliances"}

// DefaultRateConfiguration returns the configuration used when nothing has been persisted yet.
// Every call returns fresh maps.
func DefaultRateConfiguration() RateConfiguration {
	return RateConfiguration{
		BaseRates: map[string]float64{
			CategoryBase:    40476.4,
			CategoryHanging: 38452.58,
			CategoryTall:    65182.2,
		},
		TierMultipliers: map[string]float64{
			TierLuxury:   1,
			TierPremium:  0.9,
			TierStandard: 0.8,
		},
		CabinetTypeMultipliers: map[string]float64{
			CabinetTypeLuxury:  1,
			CabinetTypePremium: 0.9,
			CabinetTypeBasic:   0.8,
		},
		SheetRates: map[string]SheetRate{
			CategoryBase:    {WithoutFees: 40476.4, WithFees: 51097.4},
			CategoryHanging: {WithoutFees: 38452.58, WithFees: 48542.53},
			CategoryTall:    {WithoutFees: 65182.2, WithFees: 82286.1},
		},
		TierSpecs: map[string]TierSpec{
			TierStandard: {
				Items: []string{
					"18mm MFC carcass and doors",
					"Standard hinges",
					"Roller drawer runners",
					"Post-formed laminate countertop",
				},
				Exclusive: cloneStrings(defaultExclusions),
			},
			TierPremium: {
				Items: []string{
					"18mm moisture-resistant MFC carcass, high-gloss acrylic doors",
					"Soft-close hinges",
					"Full-extension soft-close drawer runners",
					"Quartz countertop",
				},
				Exclusive: cloneStrings(defaultExclusions),
			},
			TierLuxury: {
				Items: []string{
					"18mm marine plywood carcass, lacquered or veneer doors",
					"Blum soft-close hinges",
					"Blum Legrabox drawer system",
					"Sintered stone countertop",
				},
				Exclusive: cloneStrings(defaultExclusions),
			},
		},
	}
}

// WithDefaults returns a copy where every missing entry, and every entry that would
// make a price meaningless (negative rate, non-positive multiplier), is replaced by
// its default. Entries that exist only in c are kept.
func (c RateConfiguration) WithDefaults() RateConfiguration {
	d := DefaultRateConfiguration()
	out := c.Clone()

	out.BaseRates = fillRates(out.BaseRates, d.BaseRates, func(v float64) bool { return v >= 0 })
	out.TierMultipliers = fillRates(out.TierMultipliers, d.TierMultipliers, func(v float64) bool { return v > 0 })
	out.CabinetTypeMultipliers = fillRates(out.CabinetTypeMultipliers, d.CabinetTypeMultipliers, func(v float64) bool { return v > 0 })

	if out.SheetRates == nil {
		out.SheetRates = map[string]SheetRate{}
	}
	for k, v := range d.SheetRates {
		cur, ok := out.SheetRates[k]
		if !ok || !validNumber(cur.WithoutFees) || !validNumber(cur.WithFees) || cur.WithoutFees < 0 || cur.WithFees < 0 {
			out.SheetRates[k] = v
		}
	}

	if out.TierSpecs == nil {
		out.TierSpecs = map[string]TierSpec{}
	}
	for k, v := range d.TierSpecs {
		if _, ok := out.TierSpecs[k]; !ok {
			out.TierSpecs[k] = v
		}
	}

	return out
}

func fillRates(cur, defaults map[string]float64, valid func(float64) bool) map[string]float64 {
	if cur == nil {
		cur = make(map[string]float64, len(defaults))
	}
	for k, v := range cur {
		if !validNumber(v) || !valid(v) {
			delete(cur, k)
		}
	}
	for k, v := range defaults {
		if _, ok := cur[k]; !ok {
			cur[k] = v
		}
	}
	return cur
}

// Merge overlays partial onto c key by key and returns the result. Maps absent
// from partial leave c untouched; keys absent from a partial map keep their value.
func (c RateConfiguration) Merge(partial RateConfiguration) RateConfiguration {
	out := c.Clone()
	out.BaseRates = mergeMap(out.BaseRates, partial.BaseRates)
	out.TierMultipliers = mergeMap(out.TierMultipliers, partial.TierMultipliers)
	out.CabinetTypeMultipliers = mergeMap(out.CabinetTypeMultipliers, partial.CabinetTypeMultipliers)
	out.SheetRates = mergeMap(out.SheetRates, partial.SheetRates)
	for k, v := range partial.TierSpecs {
		if out.TierSpecs == nil {
			out.TierSpecs = map[string]TierSpec{}
		}
		out.TierSpecs[k] = v.clone()
	}
	return out
}

func mergeMap[V any](dst, src map[string]V) map[string]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]V, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// IsZero reports whether no field of c was provided.
func (c RateConfiguration) IsZero() bool {
	return c.BaseRates == nil && c.TierMultipliers == nil && c.CabinetTypeMultipliers == nil &&
		c.SheetRates == nil && c.TierSpecs == nil
}

// Validate reports the first rate below zero or multiplier not above zero, in key order.
func (c RateConfiguration) Validate() error {
	for _, k := range sortedKeys(c.BaseRates) {
		if v := c.BaseRates[k]; !validNumber(v) || v < 0 {
			return fmt.Errorf("baseRates.%s must be a number >= 0", k)
		}
	}
	for _, k := range sortedKeys(c.TierMultipliers) {
		if v := c.TierMultipliers[k]; !validNumber(v) || v <= 0 {
			return fmt.Errorf("tierMultipliers.%s must be a number > 0", k)
		}
	}
	for _, k := range sortedKeys(c.CabinetTypeMultipliers) {
		if v := c.CabinetTypeMultipliers[k]; !validNumber(v) || v <= 0 {
			return fmt.Errorf("cabinetTypeMultipliers.%s must be a number > 0", k)
		}
	}
	for _, k := range sortedKeys(c.SheetRates) {
		sr := c.SheetRates[k]
		if !validNumber(sr.WithoutFees) || !validNumber(sr.WithFees) || sr.WithoutFees < 0 || sr.WithFees < 0 {
			return fmt.Errorf("sheetRates.%s must be numbers >= 0", k)
		}
	}
	return nil
}

// MissingKeys lists the default keys c does not provide, as "field.key".
// Adapters log these; the estimator silently falls back.
func (c RateConfiguration) MissingKeys() []string {
	d := DefaultRateConfiguration()
	var missing []string
	for _, k := range sortedKeys(d.BaseRates) {
		if _, ok := c.BaseRates[k]; !ok {
			missing = append(missing, "baseRates."+k)
		}
	}
	for _, k := range sortedKeys(d.TierMultipliers) {
		if _, ok := c.TierMultipliers[k]; !ok {
			missing = append(missing, "tierMultipliers."+k)
		}
	}
	for _, k := range sortedKeys(d.CabinetTypeMultipliers) {
		if _, ok := c.CabinetTypeMultipliers[k]; !ok {
			missing = append(missing, "cabinetTypeMultipliers."+k)
		}
	}
	for _, k := range sortedKeys(d.SheetRates) {
		if _, ok := c.SheetRates[k]; !ok {
			missing = append(missing, "sheetRates."+k)
		}
	}
	for _, k := range sortedKeys(d.TierSpecs) {
		if _, ok := c.TierSpecs[k]; !ok {
			missing = append(missing, "tierSpecs."+k)
		}
	}
	return missing
}

// BaseRateFor returns the usable base rate for category: the configured value
// when it is a number >= 0, otherwise the default. ok is false when neither exists.
func (c RateConfiguration) BaseRateFor(category string) (float64, bool) {
	if v, ok := c.BaseRates[category]; ok && validNumber(v) && v >= 0 {
		return v, true
	}
	v, ok := DefaultRateConfiguration().BaseRates[category]
	return v, ok
}

// TierSpecFor returns the bill of materials for tier, falling back to the default spec.
func (c RateConfiguration) TierSpecFor(tier string) (TierSpec, bool) {
	if spec, ok := c.TierSpecs[tier]; ok {
		return spec, true
	}
	spec, ok := DefaultRateConfiguration().TierSpecs[tier]
	return spec, ok
}

// SheetRateFor returns the informational sheet cost for a category.
func (c RateConfiguration) SheetRateFor(category string, includeFees bool) float64 {
	sr, ok := c.SheetRates[category]
	if !ok {
		sr = DefaultRateConfiguration().SheetRates[category]
	}
	if includeFees {
		return sr.WithFees
	}
	return sr.WithoutFees
}

// Clone returns a deep copy.
func (c RateConfiguration) Clone() RateConfiguration {
	out := RateConfiguration{
		BaseRates:              cloneMap(c.BaseRates),
		TierMultipliers:        cloneMap(c.TierMultipliers),
		CabinetTypeMultipliers: cloneMap(c.CabinetTypeMultipliers),
		SheetRates:             cloneMap(c.SheetRates),
	}
	if c.TierSpecs != nil {
		out.TierSpecs = make(map[string]TierSpec, len(c.TierSpecs))
		for k, v := range c.TierSpecs {
			out.TierSpecs[k] = v.clone()
		}
	}
	return out
}

func (s TierSpec) clone() TierSpec {
	return TierSpec{Items: cloneStrings(s.Items), Exclusive: cloneStrings(s.Exclusive)}
}

func cloneMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
