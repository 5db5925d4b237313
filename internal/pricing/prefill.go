package pricing

// FormData is the legacy calculator form captured with a snapshot.
type FormData struct {
	ProjectType  string  `json:"projectType,omitempty"`
	CabinetType  string  `json:"cabinetType,omitempty"`
	LinearMeter  float64 `json:"linearMeter,omitempty"`
	Installation bool    `json:"installation"`
}

// Prefill is the calculator state stored with a pricing snapshot, including the
// figures that were quoted at the time.
type Prefill struct {
	FormData        FormData `json:"formData"`
	Units           []Unit   `json:"units"`
	ApplyTax        bool     `json:"applyTax"`
	TaxRate         float64  `json:"taxRate"`
	Discount        float64  `json:"discount"`
	CabinetCategory string   `json:"cabinetCategory"`
	Tier            string   `json:"tier"`
	IncludeFees     bool     `json:"includeFees"`
	ImportSurcharge bool     `json:"importSurcharge"`
	DowngradeMFC    bool     `json:"downgradeMFC"`
	Estimate        float64  `json:"estimate"`
	Subtotal        float64  `json:"subtotal"`
	Tax             float64  `json:"tax"`
}

// NewPrefill captures req and the result it produced.
func NewPrefill(req EstimateRequest, res Result) Prefill {
	units := make([]Unit, len(req.Units))
	copy(units, req.Units)

	return Prefill{
		FormData: FormData{
			ProjectType:  req.ProjectType,
			CabinetType:  req.CabinetType,
			LinearMeter:  req.LinearMeter,
			Installation: req.Installation,
		},
		Units:           units,
		ApplyTax:        req.ApplyTax,
		TaxRate:         req.TaxRate,
		Discount:        req.Discount,
		CabinetCategory: req.CabinetCategory,
		Tier:            req.Tier,
		IncludeFees:     req.IncludeFees,
		ImportSurcharge: req.ApplyImportSurcharge,
		DowngradeMFC:    req.DowngradeToMFC,
		Estimate:        res.Total,
		Subtotal:        res.Breakdown.Subtotal,
		Tax:             res.Breakdown.Tax,
	}
}

// Request rebuilds the estimator input captured by p, priced with rates.
func (p Prefill) Request(rates RateConfiguration) EstimateRequest {
	units := make([]Unit, len(p.Units))
	copy(units, p.Units)

	return EstimateRequest{
		ProjectType:          p.FormData.ProjectType,
		CabinetType:          p.FormData.CabinetType,
		LinearMeter:          p.FormData.LinearMeter,
		Installation:         p.FormData.Installation,
		CabinetCategory:      p.CabinetCategory,
		Tier:                 p.Tier,
		Units:                units,
		Discount:             p.Discount,
		ApplyTax:             p.ApplyTax,
		TaxRate:              p.TaxRate,
		IncludeFees:          p.IncludeFees,
		ApplyImportSurcharge: p.ImportSurcharge,
		DowngradeToMFC:       p.DowngradeMFC,
		Rates:                rates.Clone(),
	}
}
