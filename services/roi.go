package services

import (
	"math"

	"devleads/models"
	"devleads/utils"
)

// ROIConfig is the development cost model.
type ROIConfig struct {
	CoverageRatio    float64
	HardCostPerSF    float64
	SoftCostPct      float64
	ResalePricePerSF float64
	SkipUnpriced     bool
}

// BuildableEstimator derives buildable area from lot size.
type BuildableEstimator struct {
	coverage float64
}

func NewBuildableEstimator(coverage float64) *BuildableEstimator {
	return &BuildableEstimator{coverage: coverage}
}

// Estimate sets BuildableSF; an unknown lot yields 0.
func (b *BuildableEstimator) Estimate(records []*models.Property) {
	for _, p := range records {
		p.BuildableSF = 0
		if p.LotSqft != nil && isFinite(*p.LotSqft) {
			p.BuildableSF = *p.LotSqft * b.coverage
		}
	}
}

// ROIResult is the outcome of the cost model for one record.
type ROIResult struct {
	DevCost       float64
	ResaleValue   float64
	Profit        float64
	ROIPercentage float64
	ROIScore      int
}

// ROICalculator applies the cost model.
type ROICalculator struct {
	cfg    ROIConfig
	logger *utils.Logger
}

func NewROICalculator(cfg ROIConfig, logger *utils.Logger) *ROICalculator {
	return &ROICalculator{cfg: cfg, logger: logger}
}

// Compute runs the cost model for a land cost and buildable area. Money
// values are rounded to cents.
func (c *ROICalculator) Compute(landCost, buildableSF float64) ROIResult {
	hard := buildableSF * c.cfg.HardCostPerSF
	soft := (landCost + hard) * c.cfg.SoftCostPct
	dev := landCost + hard + soft
	resale := buildableSF * c.cfg.ResalePricePerSF
	profit := resale - dev

	pct := profit / dev * 100
	if !isFinite(pct) {
		pct = 0
	}
	score := int(math.Round(pct / 2))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return ROIResult{
		DevCost:       round2(dev),
		ResaleValue:   round2(resale),
		Profit:        round2(profit),
		ROIPercentage: round2(pct),
		ROIScore:      score,
	}
}

// Enrich sets the ROI fields on every record. An unknown price counts as a
// zero land cost and is recorded as a degradation, or leaves the ROI fields
// null when SkipUnpriced is set.
func (c *ROICalculator) Enrich(records []*models.Property) {
	unpriced := 0
	for _, p := range records {
		land := 0.0
		if p.Price != nil && isFinite(*p.Price) {
			land = *p.Price
		} else {
			unpriced++
			if c.cfg.SkipUnpriced {
				p.Degrade(models.StageROI, "price unknown; roi not computed")
				p.DevCost, p.ResaleValue, p.Profit, p.ROIPercentage, p.ROIScore = nil, nil, nil, nil, nil
				continue
			}
			p.Degrade(models.StageROI, "price unknown; land cost taken as 0")
		}

		r := c.Compute(land, p.BuildableSF)
		p.DevCost = &r.DevCost
		p.ResaleValue = &r.ResaleValue
		p.Profit = &r.Profit
		p.ROIPercentage = &r.ROIPercentage
		p.ROIScore = &r.ROIScore
	}
	if unpriced > 0 {
		c.logger.Warn("[roi] %d records without a usable price", unpriced)
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
