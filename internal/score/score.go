// Package score assigns confidence to extracted policy records and decides
// which need human review. Scoring is pure: the same record and context
// always produce the same result.
package score

import (
	"fmt"
	"sort"
	"strings"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Config bounds plausibility checks and the review cutoff.
type Config struct {
	// ReviewThreshold flags records whose confidence falls below it.
	ReviewThreshold float64
	// MaxCostCOP/MaxCostUSD cap what counts as a believable extracted fee.
	MaxCostCOP int
	MaxCostUSD float64
}

// DefaultConfig mirrors the production thresholds.
func DefaultConfig() Config {
	return Config{
		ReviewThreshold: 0.4,
		MaxCostCOP:      10_000_000,
		MaxCostUSD:      5000,
	}
}

// Context carries cross-record signals that a single extraction cannot see.
type Context struct {
	// Captcha marks content that came from a challenge page.
	Captcha bool
	// PeerCostsCOP holds domestic name change costs from other sources in the
	// same run, used to spot magnitude outliers.
	PeerCostsCOP []int
}

// Scorer computes confidence and review decisions.
type Scorer struct {
	cfg Config
}

// New returns a scorer with the given thresholds. Zero-value fields fall back
// to defaults.
func New(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = def.ReviewThreshold
	}
	if cfg.MaxCostCOP <= 0 {
		cfg.MaxCostCOP = def.MaxCostCOP
	}
	if cfg.MaxCostUSD <= 0 {
		cfg.MaxCostUSD = def.MaxCostUSD
	}
	return &Scorer{cfg: cfg}
}

// Score returns a copy of the record with Confidence, ManualReview and
// ReviewNotes set. A flagged record always carries at least one note.
func (s *Scorer) Score(record policy.Extracted, sctx Context) policy.Extracted {
	record.Confidence = confidence(&record)

	var notes []string
	if sctx.Captcha {
		notes = append(notes, "captcha detectado, contenido parcial")
	}
	notes = append(notes, s.plausibilityNotes(&record, sctx.PeerCostsCOP)...)

	if record.Confidence < s.cfg.ReviewThreshold {
		notes = append(notes, fmt.Sprintf("confianza %.2f bajo el umbral %.2f", record.Confidence, s.cfg.ReviewThreshold))
	}
	if missing := record.MissingCritical(); len(missing) > 2 {
		notes = append(notes, "faltan campos críticos: "+strings.Join(missing, ", "))
	}

	record.ManualReview = len(notes) > 0
	record.ReviewNotes = strings.Join(notes, "; ")
	return record
}

// confidence weights critical fields double against important fields. The
// result lands in [0, 1] by construction.
func confidence(record *policy.Extracted) float64 {
	var filled, total float64
	for _, name := range policy.CriticalFields {
		total += 2
		if record.FieldSet(name) {
			filled += 2
		}
	}
	for _, name := range policy.ImportantFields {
		total++
		if record.FieldSet(name) {
			filled++
		}
	}
	if total == 0 {
		return 0
	}
	c := filled / total
	if c > 1 {
		c = 1
	}
	return c
}

func (s *Scorer) plausibilityNotes(record *policy.Extracted, peers []int) []string {
	var notes []string

	if c := record.CostNameChangeDomesticCOP; c != nil && (*c <= 0 || *c > s.cfg.MaxCostCOP) {
		notes = append(notes, fmt.Sprintf("costo doméstico COP fuera de rango: %d", *c))
	}
	if c := record.CancellationCostCOP; c != nil && (*c <= 0 || *c > s.cfg.MaxCostCOP) {
		notes = append(notes, fmt.Sprintf("costo de cancelación COP fuera de rango: %d", *c))
	}
	if c := record.CostNameChangeUSD; c != nil && (*c <= 0 || *c > s.cfg.MaxCostUSD) {
		notes = append(notes, fmt.Sprintf("costo USD fuera de rango: %.2f", *c))
	}
	if p := record.RefundPercentage; p != nil && (*p < 0 || *p > 100) {
		notes = append(notes, fmt.Sprintf("porcentaje de reembolso inválido: %d", *p))
	}

	if c := record.CostNameChangeDomesticCOP; c != nil {
		if note, outlier := magnitudeOutlier(*c, peers); outlier {
			notes = append(notes, note)
		}
	}
	return notes
}

// magnitudeOutlier flags a cost that sits an order of magnitude away from the
// peer median. Fewer than two peers give no baseline.
func magnitudeOutlier(cost int, peers []int) (string, bool) {
	if cost <= 0 || len(peers) < 2 {
		return "", false
	}
	sorted := append([]int(nil), peers...)
	sort.Ints(sorted)
	median := sorted[len(sorted)/2]
	if median <= 0 {
		return "", false
	}
	if cost >= median*10 || cost*10 <= median {
		return fmt.Sprintf("costo %d difiere en un orden de magnitud de la mediana %d", cost, median), true
	}
	return "", false
}
