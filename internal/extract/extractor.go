package extract

import (
	"bytes"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Profile tunes the shared extraction flow for one airline's page language.
// The zero keyword slices fall back to the generic Spanish sets.
type Profile struct {
	TransferKeywords     []string
	CancellationKeywords []string
	// TransferHints strengthen the positive signal when deciding whether name
	// changes are allowed.
	TransferHints []string
	// TermsURL overrides the policy URL as the recorded terms link.
	TermsURL string
	// Notes is attached as a notable exception regardless of page content.
	Notes string
	// LowCost marks carriers whose pages advertise restrictive fare rules.
	LowCost bool
}

var genericProfile = Profile{
	TransferKeywords: []string{
		"cambio de nombre", "transferencia", "cambiar nombre",
		"modificación de nombre", "cambio del pasajero",
	},
	CancellationKeywords: []string{
		"cancelación", "cancelar", "reembolso", "devolución",
	},
}

// Extractor pulls structured policy facts out of fetched HTML. Extraction
// never fails: unparseable content simply yields a record with nil fields.
type Extractor struct {
	profiles map[string]Profile
	logger   *zap.Logger
}

// New builds an extractor with the default per-airline profiles registered.
func New(logger *zap.Logger) *Extractor {
	e := &Extractor{
		profiles: make(map[string]Profile),
		logger:   logger,
	}
	for name, p := range defaultProfiles {
		e.profiles[name] = p
	}
	return e
}

// Register adds or replaces the profile for a pattern set name.
func (e *Extractor) Register(patternSet string, p Profile) {
	e.profiles[patternSet] = p
}

// Extract builds a policy record from the fetched content. Unknown pattern
// sets fall back to the generic profile.
func (e *Extractor) Extract(src policy.Source, fetched policy.FetchResult, scrapedAt time.Time) policy.Extracted {
	profile, ok := e.profiles[src.PatternSet]
	if !ok {
		e.logger.Debug("no profile for pattern set, using generic",
			zap.String("source", src.Code),
			zap.String("pattern_set", src.PatternSet),
		)
		profile = genericProfile
	}
	profile = profile.withDefaults()

	record := policy.Extracted{
		AirlineName: src.Name,
		AirlineCode: src.Code,
		SourceURL:   src.PolicyURL,
		ScrapedAt:   scrapedAt,
		ContentHash: fetched.Hash,
	}

	text := pageText(fetched.Content, e.logger, src.Code)
	if text == "" {
		return record
	}

	e.extractTransfer(&record, text, profile)
	e.extractCancellation(&record, text, profile)
	e.extractContact(&record, text)
	e.extractRestrictions(&record, text, profile)

	record.CriticalFound = foundCritical(&record)
	return record
}

func (e *Extractor) extractTransfer(record *policy.Extracted, pageText string, p Profile) {
	sections := SentencesWithKeywords(pageText, p.TransferKeywords, 2)
	if len(sections) == 0 {
		return
	}
	text := strings.Join(sections, " ")
	lower := strings.ToLower(text)

	allowsChange, _ := DetectBoolean(text, p.TransferHints...)
	record.AllowsFullNameChange = allowsChange

	correction := strings.Contains(lower, "corrección") || strings.Contains(lower, "error tipográfico")
	record.AllowsNameCorrection = &correction

	if cop, ok := ExtractCOP(text); ok {
		record.CostNameChangeDomesticCOP = &cop
	}
	if usd, ok := ExtractUSD(text); ok {
		record.CostNameChangeUSD = &usd
	}

	if strings.Contains(lower, "transferir") || strings.Contains(lower, "tercero") {
		transfer, _ := DetectBoolean(text, "transferir", "transferencia")
		record.AllowsTransferToThirdParty = transfer
	} else {
		// Pages that only discuss name changes treat a full change as the
		// transfer mechanism.
		record.AllowsTransferToThirdParty = allowsChange
	}

	desc := truncate(CleanText(text), 500)
	record.TransferProcess = &desc
}

func (e *Extractor) extractCancellation(record *policy.Extracted, pageText string, p Profile) {
	sections := SentencesWithKeywords(pageText, p.CancellationKeywords, 2)
	if len(sections) == 0 {
		return
	}
	text := strings.Join(sections, " ")

	allowsCancel, _ := DetectBoolean(text, "puede cancelar", "permite cancelación")
	record.AllowsCancellation = allowsCancel

	if cop, ok := ExtractCOP(text); ok {
		record.CancellationCostCOP = &cop
	}
	if pct, ok := ExtractPercent(text); ok {
		record.RefundPercentage = &pct
	}
}

func (e *Extractor) extractContact(record *policy.Extracted, pageText string) {
	if phone, ok := ExtractPhone(pageText); ok {
		record.SupportPhone = &phone
	}
	if email, ok := ExtractEmail(pageText); ok {
		record.SupportEmail = &email
	}
}

func (e *Extractor) extractRestrictions(record *policy.Extracted, pageText string, p Profile) {
	if restrictions, ok := TimeRestrictions(pageText); ok {
		record.TimeRestrictions = &restrictions
	}

	fareKeywords := []string{"básica", "flexible", "business", "económica", "premium"}
	if sections := SentencesWithKeywords(pageText, fareKeywords, 1); len(sections) > 0 {
		fares := truncate(CleanText(strings.Join(sections, " ")), 300)
		record.FareTypeDifferences = &fares
	}

	terms := p.TermsURL
	if terms == "" {
		terms = record.SourceURL
	}
	record.TermsURL = &terms

	lower := strings.ToLower(pageText)
	switch {
	case p.Notes != "":
		record.NotableExceptions = &p.Notes
	case p.LowCost && (strings.Contains(lower, "low cost") || strings.Contains(lower, "bajo costo")):
		note := "Aerolínea de bajo costo con políticas restrictivas"
		record.NotableExceptions = &note
	case strings.Contains(lower, "no reembolsable"):
		note := "Algunas tarifas son no reembolsables"
		record.NotableExceptions = &note
	}
}

func (p Profile) withDefaults() Profile {
	if len(p.TransferKeywords) == 0 {
		p.TransferKeywords = genericProfile.TransferKeywords
	}
	if len(p.CancellationKeywords) == 0 {
		p.CancellationKeywords = genericProfile.CancellationKeywords
	}
	return p
}

// pageText flattens the document body to whitespace-separated text. Script
// and style nodes are stripped so javascript source never reaches the
// pattern matchers.
func pageText(content []byte, logger *zap.Logger, sourceCode string) string {
	if len(content) == 0 {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		logger.Warn("unparseable html, skipping extraction",
			zap.String("source", sourceCode),
			zap.Error(err),
		)
		return ""
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(sel.Text())
		b.WriteString(" ")
	})
	text := b.String()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return CleanText(text)
}

func foundCritical(record *policy.Extracted) []string {
	var found []string
	for _, name := range policy.CriticalFields {
		if record.FieldSet(name) {
			found = append(found, name)
		}
	}
	return found
}
