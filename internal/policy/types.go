// Package policy defines core types shared across the scraping pipeline.
package policy

import (
	"time"
)

// Source describes one airline's policy page and how to extract from it.
// Instances are built once from configuration and never mutated.
type Source struct {
	Code       string `mapstructure:"code" json:"code"`
	Name       string `mapstructure:"name" json:"name"`
	BaseURL    string `mapstructure:"base_url" json:"base_url"`
	PolicyURL  string `mapstructure:"policy_url" json:"policy_url"`
	RequiresJS bool   `mapstructure:"requires_javascript" json:"requires_javascript"`
	PatternSet string `mapstructure:"pattern_set" json:"pattern_set"`
}

// FetchOutcome classifies a single network attempt. Outcomes are mutually
// exclusive per attempt.
type FetchOutcome string

// Attempt outcomes emitted in logs and metrics.
const (
	OutcomeSuccess      FetchOutcome = "success"
	OutcomeTimeout      FetchOutcome = "timeout"
	OutcomeHTTPError    FetchOutcome = "http_error"
	OutcomeNetworkError FetchOutcome = "network_error"
	OutcomeCaptcha      FetchOutcome = "captcha"
)

// FetchResult is the terminal result of a fetch, after retries resolve.
type FetchResult struct {
	Content []byte
	Hash    string
	// Changed reports whether the content hash differs from the most recent
	// snapshot for the same source. Always true on the first capture.
	Changed bool
	// Captcha marks partial content retrieved from a challenge page. Terminal;
	// the content is retained for manual review, not re-fetched.
	Captcha bool
}

// Snapshot is a timestamped, hashed capture of raw retrieved content.
// Snapshots are append-only and never rewritten.
type Snapshot struct {
	SourceCode string
	CapturedAt time.Time
	Hash       string
	Payload    []byte
}

// Extracted holds the structured policy facts pulled from one source, plus
// scoring metadata. A record is built once per successful extraction and never
// mutated; re-scraping produces a new record.
type Extracted struct {
	AirlineName string `json:"airline_name"`
	AirlineCode string `json:"airline_code"`

	AllowsFullNameChange      *bool    `json:"allows_full_name_change"`
	AllowsNameCorrection      *bool    `json:"allows_name_correction"`
	CostNameChangeDomesticCOP *int     `json:"cost_name_change_domestic_cop"`
	CostNameChangeIntlCOP     *int     `json:"cost_name_change_intl_cop"`
	CostNameChangeUSD         *float64 `json:"cost_name_change_usd"`

	AllowsTransferToThirdParty *bool   `json:"allows_transfer_to_third_party"`
	TransferProcess            *string `json:"transfer_process_description"`

	AllowsCancellation  *bool `json:"allows_cancellation"`
	CancellationCostCOP *int  `json:"cancellation_cost_cop"`
	RefundPercentage    *int  `json:"refund_percentage"`

	TimeRestrictions    *string `json:"time_restrictions"`
	FareTypeDifferences *string `json:"fare_type_differences"`
	MaxChangeDeadline   *string `json:"max_change_deadline"`

	TermsURL     *string `json:"terms_url"`
	SupportPhone *string `json:"support_phone"`
	SupportEmail *string `json:"support_email"`

	RequiredDocumentation *string `json:"required_documentation"`
	NotableExceptions     *string `json:"notable_exceptions"`

	SourceURL   string    `json:"source_url"`
	ScrapedAt   time.Time `json:"scraped_at"`
	ContentHash string    `json:"content_hash"`
	RunID       string    `json:"run_id"`

	Confidence    float64  `json:"confidence_score"`
	ManualReview  bool     `json:"requires_manual_review"`
	ReviewNotes   string   `json:"manual_review_notes,omitempty"`
	CriticalFound []string `json:"-"`
}

// Critical fields feed viability scoring directly; important fields refine the
// confidence score with half the weight. Names match the record's JSON keys.
var (
	CriticalFields = []string{
		"allows_full_name_change",
		"allows_name_correction",
		"allows_transfer_to_third_party",
		"cost_name_change_domestic_cop",
	}
	ImportantFields = []string{
		"allows_cancellation",
		"cancellation_cost_cop",
		"refund_percentage",
		"time_restrictions",
	}
)

// TransferViable reports whether the source qualifies for a resale
// marketplace on transfer policy alone.
func (e *Extracted) TransferViable() bool {
	return boolSet(e.AllowsTransferToThirdParty) || boolSet(e.AllowsFullNameChange)
}

// FieldSet reports whether the named critical/important field is populated.
func (e *Extracted) FieldSet(name string) bool {
	switch name {
	case "allows_full_name_change":
		return e.AllowsFullNameChange != nil
	case "allows_name_correction":
		return e.AllowsNameCorrection != nil
	case "allows_transfer_to_third_party":
		return e.AllowsTransferToThirdParty != nil
	case "cost_name_change_domestic_cop":
		return e.CostNameChangeDomesticCOP != nil
	case "allows_cancellation":
		return e.AllowsCancellation != nil
	case "cancellation_cost_cop":
		return e.CancellationCostCOP != nil
	case "refund_percentage":
		return e.RefundPercentage != nil
	case "time_restrictions":
		return e.TimeRestrictions != nil
	default:
		return false
	}
}

// MissingCritical returns the critical fields that remain unset.
func (e *Extracted) MissingCritical() []string {
	var missing []string
	for _, name := range CriticalFields {
		if !e.FieldSet(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

func boolSet(b *bool) bool {
	return b != nil && *b
}

// State tracks one source through the pipeline. Terminal states are final; a
// new run starts a fresh instance per source.
type State string

// Pipeline states per source.
const (
	StateInit        State = "init"
	StateFetching    State = "fetching"
	StateFetched     State = "fetched"
	StateCaptcha     State = "captcha"
	StateFetchFailed State = "fetch_failed"
	StateExtracting  State = "extracting"
	StateExtracted   State = "extracted"
	StateScoring     State = "scoring"
	StateComplete    State = "complete"
	StateFlagged     State = "flagged_for_review"
	StateUnavailable State = "unavailable"
)

// Terminal reports whether the state ends the per-source lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateComplete, StateFlagged, StateUnavailable:
		return true
	default:
		return false
	}
}
