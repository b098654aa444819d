package report

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camilorv/aeropolicy/internal/policy"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(n int) *int    { return &n }

func record(code string, transfer bool, cost int) policy.Extracted {
	r := policy.Extracted{
		AirlineName:                "Aerolínea " + code,
		AirlineCode:                code,
		AllowsTransferToThirdParty: boolPtr(transfer),
		AllowsFullNameChange:       boolPtr(transfer),
	}
	if cost > 0 {
		r.CostNameChangeDomesticCOP = intPtr(cost)
	}
	return r
}

// records builds n sources of which viable allow transfer.
func records(n, viable int) []policy.Extracted {
	out := make([]policy.Extracted, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, record(fmt.Sprintf("S%d", i), i < viable, 150000))
	}
	return out
}

func TestComputeEmptyInput(t *testing.T) {
	t.Parallel()

	r := Compute(nil, DefaultConfig())

	assert.Equal(t, StatusNotViable, r.Status)
	assert.Zero(t, r.TotalAirlines)
	assert.Zero(t, r.MarketCoverage)
	assert.NotEmpty(t, r.Conclusion)
	assert.NotEmpty(t, r.Recommendation)
}

func TestComputeStatusBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		total  int
		viable int
		want   Status
	}{
		{"ExactlySixtyPercent", 5, 3, StatusViable},
		{"JustUnderSixty", 1000, 599, StatusViableRestricted},
		{"ExactlyForty", 10, 4, StatusViableRestricted},
		{"UnderForty", 10, 3, StatusNotViable},
		{"AllViable", 4, 4, StatusViable},
		{"NoneViable", 4, 0, StatusNotViable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Compute(records(tt.total, tt.viable), DefaultConfig())
			assert.Equal(t, tt.want, r.Status, "coverage %.1f", r.MarketCoverage)
		})
	}
}

func TestComputeMinViableSourcesDowngrades(t *testing.T) {
	t.Parallel()

	// Two of three viable is 66.7% coverage, over the ideal threshold, but
	// only two sources qualify, so the verdict collapses to not viable.
	r := Compute(records(3, 2), DefaultConfig())
	assert.Equal(t, StatusNotViable, r.Status)

	// Costs above the acceptable ceiling disqualify a source even when it
	// allows transfers.
	expensive := []policy.Extracted{
		record("AV", true, 900000),
		record("LA", true, 900000),
		record("P5", true, 900000),
	}
	assert.Equal(t, StatusNotViable, Compute(expensive, DefaultConfig()).Status)

	// The constraint never upgrades a poor coverage verdict.
	low := Compute(records(10, 2), DefaultConfig())
	assert.Equal(t, StatusNotViable, low.Status)
}

func TestComputeOrderIndependent(t *testing.T) {
	t.Parallel()

	base := []policy.Extracted{
		record("AV", true, 150000),
		record("LA", true, 90000),
		record("P5", false, 0),
		record("9R", false, 300000),
		record("CM", true, 120000),
	}
	want := Compute(base, DefaultConfig())

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := append([]policy.Extracted(nil), base...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		assert.Equal(t, want, Compute(shuffled, DefaultConfig()))
	}
}

func TestComputeSevenSourceSplit(t *testing.T) {
	t.Parallel()

	// Four transfer-friendly sources with costs under the ceiling, three
	// refusals: 57.1% coverage lands in the restricted tier.
	var recs []policy.Extracted
	for i := 0; i < 4; i++ {
		recs = append(recs, record(fmt.Sprintf("V%d", i), true, 150000))
	}
	for i := 0; i < 3; i++ {
		recs = append(recs, record(fmt.Sprintf("N%d", i), false, 0))
	}

	r := Compute(recs, DefaultConfig())

	assert.InDelta(t, 57.1, r.MarketCoverage, 0.1)
	assert.Equal(t, StatusViableRestricted, r.Status)
	assert.Len(t, r.ViableAirlines, 4)
	assert.Len(t, r.NonViableAirlines, 3)
}

func TestComputeCostStats(t *testing.T) {
	t.Parallel()

	recs := []policy.Extracted{
		record("AV", true, 100000),
		record("LA", true, 200000),
		record("P5", true, 300000),
		record("9R", false, 0),
	}
	r := Compute(recs, DefaultConfig())

	require.NotNil(t, r.Costs)
	assert.Equal(t, 200000, r.Costs.Average)
	assert.Equal(t, 100000, r.Costs.Min)
	assert.Equal(t, 300000, r.Costs.Max)
	assert.Equal(t, 200000, r.Costs.Median)
	assert.Equal(t, 1, r.IncompleteCost)
}

func TestComputeNoCostsNoStats(t *testing.T) {
	t.Parallel()

	r := Compute([]policy.Extracted{record("AV", true, 0)}, DefaultConfig())
	assert.Nil(t, r.Costs)
}

func TestComputeOverallScore(t *testing.T) {
	t.Parallel()

	// All transfer-friendly, all costs reasonable, none flagged: the three
	// weighted fractions sum to 1.
	r := Compute(records(4, 4), DefaultConfig())
	assert.InDelta(t, 1.0, r.OverallScore, 0.001)

	// Flagged records only lose the review weight.
	flagged := records(4, 4)
	for i := range flagged {
		flagged[i].ManualReview = true
	}
	fr := Compute(flagged, DefaultConfig())
	assert.InDelta(t, 0.8, fr.OverallScore, 0.001)
	assert.Equal(t, 0, fr.ScrapedSuccessfully)
}

func TestComputeDataCoverage(t *testing.T) {
	t.Parallel()

	recs := []policy.Extracted{
		record("AV", true, 150000),
		{AirlineName: "Vacía", AirlineCode: "XX"},
	}
	r := Compute(recs, DefaultConfig())

	assert.Equal(t, 50.0, r.DataCoverage["allows_transfer_to_third_party"])
	assert.Equal(t, 50.0, r.DataCoverage["cost_name_change_domestic_cop"])
	assert.Equal(t, 0.0, r.DataCoverage["allows_name_correction"])
}
