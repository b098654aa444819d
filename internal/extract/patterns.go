// Package extract turns raw policy HTML into structured records using a
// Spanish-language pattern library and per-airline extraction strategies.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Monetary amounts, percentages and booleans are located with ordered pattern
// lists; the first pattern that yields a parseable value wins.
var (
	copPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\$\s*([\d,.]+)\s*(?:COP|pesos)`),
		regexp.MustCompile(`(?i)([\d,.]+)\s*pesos\s+colombianos`),
		regexp.MustCompile(`(?i)valor(?:\s+de)?\s+\$?\s*([\d,.]+)`),
		regexp.MustCompile(`(?i)\$\s*([\d,.]+)(?:\s|$)`),
		regexp.MustCompile(`(?i)([\d,.]+)\s*COP`),
	}
	usdPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)USD?\s*\$?\s*([\d,.]+)`),
		regexp.MustCompile(`(?i)\$\s*([\d,.]+)\s*(?:USD|dólares|dolares)`),
		regexp.MustCompile(`(?i)([\d,.]+)\s*dólares?`),
	}
	percentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*%`),
		regexp.MustCompile(`(?i)(\d+)\s*por\s*ciento`),
	}
	timePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*horas?\s+antes`),
		regexp.MustCompile(`(?i)(\d+)\s*días?\s+antes`),
		regexp.MustCompile(`(?i)hasta\s+(\d+)\s+horas?`),
		regexp.MustCompile(`(?i)hasta\s+(\d+)\s+días?`),
	}

	negativeKeywords = []*regexp.Regexp{
		regexp.MustCompile(`(?i)no\s+(?:se\s+)?permite`),
		regexp.MustCompile(`(?i)no\s+(?:es\s+)?posible`),
		regexp.MustCompile(`(?i)no\s+(?:se\s+)?autoriza`),
		regexp.MustCompile(`(?i)imposible`),
		regexp.MustCompile(`(?i)prohibido`),
		regexp.MustCompile(`(?i)no\s+(?:se\s+)?puede`),
		regexp.MustCompile(`(?i)no\s+(?:es\s+)?permitido`),
		regexp.MustCompile(`(?i)no\s+reembolsable`),
	}
	positiveKeywords = []*regexp.Regexp{
		regexp.MustCompile(`(?i)permite`),
		regexp.MustCompile(`(?i)posible`),
		regexp.MustCompile(`(?i)puede`),
		regexp.MustCompile(`(?i)autorizado`),
		regexp.MustCompile(`(?i)permitido`),
		regexp.MustCompile(`(?i)disponible`),
		regexp.MustCompile(`(?i)se\s+acepta`),
	}

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\+?\d{1,3}[\s-]?\d{3}[\s-]?\d{3}[\s-]?\d{4}`),
		regexp.MustCompile(`\d{3}[\s-]\d{3}[\s-]\d{4}`),
		regexp.MustCompile(`\d{10,}`),
	}
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	// Sentence boundaries need trailing whitespace so dots inside amounts
	// like "$150.000" survive the split.
	sentenceSplit = regexp.MustCompile(`[.!?]+(?:\s+|$)`)
)

// ExtractCOP returns the first Colombian peso amount found in text. Both "."
// and "," are thousands separators in the local convention, so they are
// stripped before parsing.
func ExtractCOP(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, re := range copPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.NewReplacer(",", "", ".", "").Replace(m[1])
		n, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// ExtractUSD returns the first US dollar amount found in text. Commas are
// thousands separators; the dot stays as the decimal point.
func ExtractUSD(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	for _, re := range usdPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		return f, true
	}
	return 0, false
}

// ExtractPercent returns the first percentage found in text.
func ExtractPercent(text string) (int, bool) {
	for _, re := range percentPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

// DetectBoolean weighs positive against negative policy language. The extra
// keywords count as positive signals. Confidence is 0 when the evidence ties.
func DetectBoolean(text string, extra ...string) (value *bool, confidence float64) {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return nil, 0
	}

	var positive, negative int
	for _, re := range positiveKeywords {
		if re.MatchString(text) {
			positive++
		}
	}
	for _, re := range negativeKeywords {
		if re.MatchString(text) {
			negative++
		}
	}
	for _, kw := range extra {
		if strings.Contains(text, strings.ToLower(kw)) {
			positive++
		}
	}

	switch {
	case positive > negative:
		v := true
		return &v, boundedRatio(positive, negative)
	case negative > positive:
		v := false
		return &v, boundedRatio(negative, positive)
	default:
		return nil, 0
	}
}

func boundedRatio(winner, loser int) float64 {
	c := float64(winner) / float64(winner+loser+1)
	if c > 0.9 {
		return 0.9
	}
	return c
}

// ExtractPhone returns the first phone-shaped token in text.
func ExtractPhone(text string) (string, bool) {
	for _, re := range phonePatterns {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

// ExtractEmail returns the first email address in text.
func ExtractEmail(text string) (string, bool) {
	if m := emailPattern.FindString(text); m != "" {
		return m, true
	}
	return "", false
}

// TimeRestrictions summarizes deadline phrases like "24 horas antes".
func TimeRestrictions(text string) (string, bool) {
	seen := map[string]struct{}{}
	var values []string
	for _, re := range timePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if _, dup := seen[m[1]]; dup {
				continue
			}
			seen[m[1]] = struct{}{}
			values = append(values, m[1])
		}
	}
	if len(values) == 0 {
		return "", false
	}
	return "Restricciones encontradas: " + strings.Join(values, ", "), true
}

// CleanText collapses whitespace runs and trims the ends.
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

// SentencesWithKeywords returns cleaned sentence windows around every sentence
// containing one of the keywords. The window spans contextSize sentences on
// each side.
func SentencesWithKeywords(text string, keywords []string, contextSize int) []string {
	if text == "" || len(keywords) == 0 {
		return nil
	}
	sentences := sentenceSplit.Split(text, -1)
	lowered := make([]string, len(keywords))
	for i, kw := range keywords {
		lowered[i] = strings.ToLower(kw)
	}

	var out []string
	for i, sentence := range sentences {
		s := strings.ToLower(sentence)
		matched := false
		for _, kw := range lowered {
			if strings.Contains(s, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		start := i - contextSize
		if start < 0 {
			start = 0
		}
		end := i + contextSize + 1
		if end > len(sentences) {
			end = len(sentences)
		}
		out = append(out, CleanText(strings.Join(sentences[start:end], " ")))
	}
	return out
}

// truncate limits free-text excerpts stored on records.
// truncate caps text at max bytes without cutting a rune in half, so
// accented Spanish text stays valid UTF-8.
func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}
