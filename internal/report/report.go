// Package report aggregates scored policy records into a marketplace
// viability assessment. Computation is deterministic and independent of
// record order.
package report

import (
	"fmt"
	"sort"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Status is the headline verdict of a viability report.
type Status string

// Verdict tiers keyed off market coverage.
const (
	StatusViable           Status = "VIABLE"
	StatusViableRestricted Status = "VIABLE_WITH_RESTRICTIONS"
	StatusNotViable        Status = "NOT_VIABLE"
)

// Config holds the viability thresholds.
type Config struct {
	// CoverageIdeal and CoverageMinimum are market coverage percentages that
	// separate the three verdict tiers.
	CoverageIdeal   float64
	CoverageMinimum float64
	// MaxAcceptableCostCOP is the ceiling for a transfer fee to count as
	// reasonable in the composite score.
	MaxAcceptableCostCOP int
	// MinViableSources downgrades the verdict to NOT_VIABLE when fewer
	// sources qualify (transfer allowed, cost at or under the ceiling). It
	// never upgrades.
	MinViableSources int
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{
		CoverageIdeal:        60,
		CoverageMinimum:      40,
		MaxAcceptableCostCOP: 200_000,
		MinViableSources:     3,
	}
}

// CostStats summarizes the domestic name change costs seen across sources.
type CostStats struct {
	Average int `json:"avg_cost_domestic_cop"`
	Min     int `json:"min_cost_domestic_cop"`
	Max     int `json:"max_cost_domestic_cop"`
	Median  int `json:"median_cost_domestic_cop"`
}

// Report is the aggregated viability assessment.
type Report struct {
	TotalAirlines       int `json:"total_airlines"`
	ScrapedSuccessfully int `json:"scraped_successfully"`

	AllowTransfer     int `json:"allow_transfer"`
	AllowNameChange   int `json:"allow_name_change"`
	AllowCorrection   int `json:"allow_name_correction_only"`
	AllowCancellation int `json:"allow_cancellation"`
	RequiresReview    int `json:"requires_review"`

	Costs *CostStats `json:"cost_stats,omitempty"`
	// IncompleteCost counts records without a domestic cost; they are left
	// out of the cost statistics instead of counting as zero.
	IncompleteCost int `json:"cost_incomplete_count"`

	ViableAirlines    []string `json:"viable_airlines"`
	NonViableAirlines []string `json:"non_viable_airlines"`

	MarketCoverage float64 `json:"market_coverage_percentage"`
	OverallScore   float64 `json:"overall_viability_score"`
	Status         Status  `json:"status"`

	// DataCoverage maps each critical field to the percentage of records
	// that populated it.
	DataCoverage map[string]float64 `json:"data_coverage"`

	Conclusion     string `json:"conclusion"`
	Recommendation string `json:"recommendation"`
}

// Compute builds the viability report. An empty record set yields a
// NOT_VIABLE report with zeroed metrics.
func Compute(records []policy.Extracted, cfg Config) Report {
	if cfg.CoverageIdeal <= 0 {
		cfg = DefaultConfig()
	}

	// Sort a copy by airline code so every aggregate below is independent of
	// input order.
	sorted := append([]policy.Extracted(nil), records...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AirlineCode < sorted[j].AirlineCode
	})

	r := Report{
		TotalAirlines: len(sorted),
		Status:        StatusNotViable,
		DataCoverage:  map[string]float64{},
	}
	if len(sorted) == 0 {
		r.Conclusion = "Sin datos de aerolíneas; no es posible evaluar la viabilidad del marketplace."
		r.Recommendation = "RECOMENDACIÓN: Ejecutar el scraping antes de generar el reporte."
		return r
	}

	var costs []int
	for _, rec := range sorted {
		if rec.TransferViable() {
			r.ViableAirlines = append(r.ViableAirlines, rec.AirlineName)
		} else {
			r.NonViableAirlines = append(r.NonViableAirlines, rec.AirlineName)
		}
		if boolTrue(rec.AllowsTransferToThirdParty) {
			r.AllowTransfer++
		}
		if boolTrue(rec.AllowsFullNameChange) {
			r.AllowNameChange++
		}
		if boolTrue(rec.AllowsNameCorrection) {
			r.AllowCorrection++
		}
		if boolTrue(rec.AllowsCancellation) {
			r.AllowCancellation++
		}
		if rec.ManualReview {
			r.RequiresReview++
		}
		if rec.CostNameChangeDomesticCOP != nil {
			costs = append(costs, *rec.CostNameChangeDomesticCOP)
		}
	}
	r.ScrapedSuccessfully = r.TotalAirlines - r.RequiresReview
	r.Costs = costStats(costs)
	r.IncompleteCost = r.TotalAirlines - len(costs)
	r.DataCoverage = dataCoverage(sorted)

	total := float64(r.TotalAirlines)
	viable := len(r.ViableAirlines)
	r.MarketCoverage = round1(float64(viable) / total * 100)
	r.OverallScore = overallScore(sorted, costs, cfg)

	r.Status = status(r.MarketCoverage, qualifying(sorted, cfg), cfg)
	r.Conclusion = conclusion(r.Status, viable, r.TotalAirlines, r.MarketCoverage)
	r.Recommendation = recommendation(r.Status, viable)
	return r
}

// qualifying counts sources that allow third party transfer at a cost no
// higher than the acceptable ceiling. An unknown cost does not disqualify.
func qualifying(records []policy.Extracted, cfg Config) int {
	n := 0
	for _, rec := range records {
		if !boolTrue(rec.AllowsTransferToThirdParty) {
			continue
		}
		if c := rec.CostNameChangeDomesticCOP; c != nil && *c > cfg.MaxAcceptableCostCOP {
			continue
		}
		n++
	}
	return n
}

// status maps coverage to a tier, then applies the minimum-sources
// constraint. Too few qualifying sources means a market carried by a couple
// of outliers, so the verdict drops to NOT_VIABLE regardless of coverage.
func status(coverage float64, qualifying int, cfg Config) Status {
	var s Status
	switch {
	case coverage >= cfg.CoverageIdeal:
		s = StatusViable
	case coverage >= cfg.CoverageMinimum:
		s = StatusViableRestricted
	default:
		s = StatusNotViable
	}
	if s != StatusNotViable && qualifying < cfg.MinViableSources {
		s = StatusNotViable
	}
	return s
}

// overallScore blends three fractions: transfer-friendly sources (half the
// weight), sources with reasonable costs (0.3) and sources that cleared
// automated review (0.2).
func overallScore(records []policy.Extracted, costs []int, cfg Config) float64 {
	total := float64(len(records))
	if total == 0 {
		return 0
	}

	var transfer, clean float64
	for _, rec := range records {
		if boolTrue(rec.AllowsTransferToThirdParty) {
			transfer++
		}
		if !rec.ManualReview {
			clean++
		}
	}
	var reasonable float64
	for _, c := range costs {
		if c <= cfg.MaxAcceptableCostCOP {
			reasonable++
		}
	}

	score := transfer/total*0.5 + reasonable/total*0.3 + clean/total*0.2
	return round2(score)
}

func costStats(costs []int) *CostStats {
	if len(costs) == 0 {
		return nil
	}
	sorted := append([]int(nil), costs...)
	sort.Ints(sorted)

	sum := 0
	for _, c := range sorted {
		sum += c
	}
	return &CostStats{
		Average: sum / len(sorted),
		Min:     sorted[0],
		Max:     sorted[len(sorted)-1],
		Median:  median(sorted),
	}
}

func median(sorted []int) int {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func dataCoverage(records []policy.Extracted) map[string]float64 {
	coverage := make(map[string]float64, len(policy.CriticalFields))
	total := float64(len(records))
	for _, name := range policy.CriticalFields {
		var filled float64
		for i := range records {
			if records[i].FieldSet(name) {
				filled++
			}
		}
		coverage[name] = round1(filled / total * 100)
	}
	return coverage
}

func conclusion(s Status, viable, total int, coverage float64) string {
	switch s {
	case StatusViable:
		return fmt.Sprintf(
			"El marketplace de reventa de boletos ES VIABLE en Colombia. "+
				"%d de %d aerolíneas (%.1f%%) permiten transferencia o cambio de nombre, "+
				"lo cual representa una cobertura excelente del mercado. "+
				"Los costos promedio son razonables y el proceso es factible.",
			viable, total, coverage)
	case StatusViableRestricted:
		return fmt.Sprintf(
			"El marketplace de reventa de boletos ES VIABLE CON RESTRICCIONES en Colombia. "+
				"%d de %d aerolíneas (%.1f%%) permiten transferencia o cambio de nombre. "+
				"Aunque no es cobertura ideal, representa un mercado suficiente para iniciar "+
				"operaciones, especialmente si se enfoca en las aerolíneas con políticas más flexibles.",
			viable, total, coverage)
	default:
		return fmt.Sprintf(
			"El marketplace de reventa de boletos tradicional NO ES VIABLE en Colombia. "+
				"Solo %d de %d aerolíneas (%.1f%%) permiten transferencia o cambio de nombre, "+
				"lo cual es insuficiente para un marketplace efectivo. "+
				"Se recomienda explorar modelos alternativos de negocio.",
			viable, total, coverage)
	}
}

func recommendation(s Status, viable int) string {
	switch s {
	case StatusViable:
		return "RECOMENDACIÓN: Proceder con desarrollo de MVP. Enfocarse en las aerolíneas " +
			"con políticas más flexibles. Establecer partnerships con aerolíneas viables. " +
			"Considerar sistema de verificación de identidad robusto para transferencias."
	case StatusViableRestricted:
		return fmt.Sprintf(
			"RECOMENDACIÓN: Proceder con piloto limitado. Enfocarse inicialmente en las "+
				"%d aerolíneas viables. Validar modelo de negocio antes de escalar. "+
				"Considerar ofrecer servicios adicionales (seguros, compensación) para aumentar valor.",
			viable)
	default:
		return "RECOMENDACIÓN: NO proceder con marketplace tradicional. Explorar modelos alternativos: " +
			"1) Marketplace de compensación (pagos entre usuarios sin transferencia oficial), " +
			"2) Plataforma de seguros de cancelación, " +
			"3) Sistema de alertas y recompra automática. " +
			"Validar restricciones legales antes de implementar cualquier alternativa."
	}
}

func boolTrue(b *bool) bool {
	return b != nil && *b
}

func round1(f float64) float64 {
	return float64(int(f*10+0.5)) / 10
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
