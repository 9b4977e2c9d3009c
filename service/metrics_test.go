package service

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BerniceZTT/posalpro_end/models"
)

func decodeAggregate(t *testing.T, s string) models.RawDashboardAggregate {
	t.Helper()
	var raw models.RawDashboardAggregate
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

func TestDeriveKPIsMapping(t *testing.T) {
	raw := decodeAggregate(t, `{
		"totalRevenue": 1250000,
		"monthlyRevenue": 98000.5,
		"quarterlyGrowth": 12.4,
		"totalProposals": 140,
		"wonDeals": 31,
		"winRate": 27.5,
		"avgDealSize": 40322.58,
		"avgSalesCycle": 34,
		"atRiskDeals": 6,
		"closingThisMonth": 17,
		"teamSize": 9
	}`)

	got := NewMetricsDeriver().DeriveKPIs(raw)

	want := models.EnhancedKPIs{
		TotalRevenue:    1250000,
		MonthlyRevenue:  98000.5,
		RevenueGrowth:   12.4,
		TotalProposals:  140,
		ActiveProposals: 17,
		WonDeals:        31,
		WinRate:         27.5,
		AvgDealSize:     40322.58,
		AvgCycleTime:    34,
		AtRiskDeals:     6,
		TeamSize:        9,
		TotalCustomers:  9,
		ActiveCustomers: 9,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeriveKPIs() mismatch (-want +got):\n%s", diff)
	}
}

// 客户数量目前取团队人数，这是已知的临时映射；上游提供真实客户数后需要同步修改这里
func TestDeriveKPIsCustomerCountIsTeamSizeProxy(t *testing.T) {
	raw := models.RawDashboardAggregate{"teamSize": 12, "totalCustomers": 500, "activeCustomers": 400}

	got := NewMetricsDeriver().DeriveKPIs(raw)

	assert.Equal(t, 12.0, got.TotalCustomers)
	assert.Equal(t, 12.0, got.ActiveCustomers)
}

func TestDeriveKPIsActiveProposalsIsClosingThisMonth(t *testing.T) {
	raw := models.RawDashboardAggregate{"activeProposals": 99, "closingThisMonth": 4}
	assert.Equal(t, 4.0, NewMetricsDeriver().DeriveKPIs(raw).ActiveProposals)
}

func TestDeriveKPIsRevenueGrowthIsQuarterlyGrowth(t *testing.T) {
	raw := models.RawDashboardAggregate{"revenueGrowth": 80, "quarterlyGrowth": -3.5}
	assert.Equal(t, -3.5, NewMetricsDeriver().DeriveKPIs(raw).RevenueGrowth)
}

func TestDeriveKPIsAvgCycleTimeDefault(t *testing.T) {
	d := NewMetricsDeriver()

	assert.Equal(t, 21.0, d.DeriveKPIs(models.RawDashboardAggregate{}).AvgCycleTime)
	assert.Equal(t, 21.0, d.DeriveKPIs(decodeAggregate(t, `{"avgSalesCycle": null}`)).AvgCycleTime)
	assert.Equal(t, 45.0, d.DeriveKPIs(models.RawDashboardAggregate{"avgSalesCycle": 45}).AvgCycleTime)
	assert.Equal(t, 0.0, d.DeriveKPIs(models.RawDashboardAggregate{"avgSalesCycle": "soon"}).AvgCycleTime)
}

func TestDeriveKPIsZeroDefaults(t *testing.T) {
	garbage := []interface{}{nil, "", "abc", true, math.NaN(), math.Inf(1), map[string]interface{}{}, []interface{}{1}}
	keys := []string{
		models.AggTotalRevenue, models.AggMonthlyRevenue, models.AggQuarterlyGrowth, models.AggTotalProposals,
		models.AggWonDeals, models.AggWinRate, models.AggAvgDealSize, models.AggAtRiskDeals,
		models.AggClosingThisMonth, models.AggTeamSize,
	}

	d := NewMetricsDeriver()
	for _, g := range garbage {
		raw := models.RawDashboardAggregate{}
		for _, k := range keys {
			raw[k] = g
		}

		kpis := d.DeriveKPIs(raw)

		v := reflect.ValueOf(kpis)
		for i := 0; i < v.NumField(); i++ {
			name := v.Type().Field(i).Name
			f := v.Field(i).Float()
			if name == "AvgCycleTime" {
				continue
			}
			assert.Equalf(t, 0.0, f, "%s for input %#v", name, g)
		}
	}

	empty := d.DeriveKPIs(nil)
	assert.Equal(t, 0.0, empty.TotalRevenue)
	assert.Equal(t, 21.0, empty.AvgCycleTime)
}

func TestDeriveRevenuePreservesOrderAndCoerces(t *testing.T) {
	raw := decodeAggregate(t, `{
		"revenueChart": [
			{"period": "2026-03", "actual": 120, "target": 100, "forecast": 130, "proposals": 8},
			{"period": "2026-01", "actual": "95", "target": null},
			{"period": "2026-02"},
			"not an object"
		]
	}`)

	got := NewMetricsDeriver().DeriveRevenue(raw)

	want := models.RevenueSeries{
		{Period: "2026-03", Actual: 120, Target: 100, Forecast: 130, Proposals: 8},
		{Period: "2026-01", Actual: 95},
		{Period: "2026-02"},
		{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeriveRevenue() mismatch (-want +got):\n%s", diff)
	}
}

func TestDeriveRevenueMissingChart(t *testing.T) {
	got := NewMetricsDeriver().DeriveRevenue(models.RawDashboardAggregate{"revenueChart": "oops"})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDeriveFunnelWinRate(t *testing.T) {
	raw := decodeAggregate(t, `{
		"pipelineStages": [
			{"stage": "Submitted", "count": 40},
			{"stage": "Won", "count": 10}
		]
	}`)

	dash := NewMetricsDeriver().Derive(raw)

	assert.Equal(t, 25.0, dash.FunnelWinRate)
	assert.Equal(t, 25.0, dash.Funnel.WinRate())
}

func TestDeriveFunnelWinRateMissingStages(t *testing.T) {
	tests := []struct {
		name   string
		stages string
		want   float64
	}{
		{"no stages", `[]`, 0},
		{"no submitted", `[{"stage": "Won", "count": 10}]`, 0},
		{"no won", `[{"stage": "Submitted", "count": 10}]`, 0},
		{"case mismatch", `[{"stage": "submitted", "count": 10}, {"stage": "won", "count": 5}]`, 0},
		{"zero submitted", `[{"stage": "Submitted", "count": 0}, {"stage": "Won", "count": 5}]`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decodeAggregate(t, `{"pipelineStages": `+tt.stages+`}`)
			assert.Equal(t, tt.want, NewMetricsDeriver().Derive(raw).FunnelWinRate)
		})
	}
}

func TestDeriveFunnelPreservesOrder(t *testing.T) {
	raw := decodeAggregate(t, `{
		"pipelineStages": [
			{"stage": "Won", "count": 3, "conversionRate": 7.5, "value": 90000},
			{"stage": "Draft", "count": "12", "conversionRate": "x", "value": null},
			{"stage": "Submitted", "count": 40, "conversionRate": 100, "value": 1200000}
		]
	}`)

	got := NewMetricsDeriver().DeriveFunnel(raw)

	want := models.ConversionFunnel{
		{Stage: "Won", Count: 3, ConversionRate: 7.5, Value: 90000},
		{Stage: "Draft", Count: 12},
		{Stage: "Submitted", Count: 40, ConversionRate: 100, Value: 1200000},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DeriveFunnel() mismatch (-want +got):\n%s", diff)
	}
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		count float64
		typ   models.RiskType
		want  models.RiskSeverity
	}{
		{11, models.RiskOverdue, models.SeverityHigh},
		{10, models.RiskOverdue, models.SeverityMedium},
		{4, models.RiskOverdue, models.SeverityMedium},
		{3, models.RiskOverdue, models.SeverityLow},
		{1, models.RiskOverdue, models.SeverityLow},
		{6, models.RiskAtRisk, models.SeverityMedium},
		{5, models.RiskAtRisk, models.SeverityLow},
		{1, models.RiskAtRisk, models.SeverityLow},
		{500, models.RiskStalled, models.SeverityLow},
		{1, models.RiskStalled, models.SeverityLow},
		{50, models.RiskType("unknown"), models.SeverityLow},
	}

	for _, tt := range tests {
		if got := ClassifyRisk(tt.count, tt.typ); got != tt.want {
			t.Errorf("ClassifyRisk(%v, %q) = %q, want %q", tt.count, tt.typ, got, tt.want)
		}
	}
}

func TestDeriveRisksOmitsZeroCounts(t *testing.T) {
	d := NewMetricsDeriver()

	t.Run("all zero", func(t *testing.T) {
		risks := d.DeriveRisks(models.RawDashboardAggregate{"overdueProposals": 0, "atRiskDeals": "0", "stalledProposals": nil})
		assert.NotNil(t, risks)
		assert.Empty(t, risks)
	})

	t.Run("only non-zero categories, fixed order", func(t *testing.T) {
		raw := models.RawDashboardAggregate{
			"stalledProposals": 2,
			"overdueProposals": 12,
			"atRiskDeals":      0,
			"riskTrends":       map[string]interface{}{"overdue": 3, "stalled": -1, "at_risk": 9},
		}

		got := d.DeriveRisks(raw)

		want := models.RiskIndicatorSet{
			{Type: models.RiskOverdue, Count: 12, Severity: models.SeverityHigh, Trend: 3},
			{Type: models.RiskStalled, Count: 2, Severity: models.SeverityLow, Trend: -1},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("DeriveRisks() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("negative counts are omitted", func(t *testing.T) {
		assert.Empty(t, d.DeriveRisks(models.RawDashboardAggregate{"overdueProposals": -4}))
	})
}

func TestDeriveNeverPanicsOnMalformedInput(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"revenueChart": null, "pipelineStages": null, "riskTrends": null}`,
		`{"revenueChart": 5, "pipelineStages": {"stage": "Won"}, "riskTrends": [1,2]}`,
		`{"revenueChart": [null, 1, "x", []], "pipelineStages": [null, {"count": {}}]}`,
	}

	d := NewMetricsDeriver()
	for _, in := range inputs {
		raw := decodeAggregate(t, in)
		assert.NotPanics(t, func() { d.Derive(raw) }, in)
	}
	assert.NotPanics(t, func() { d.Derive(nil) })
}

func TestDerivedDashboardSerializesWithoutNulls(t *testing.T) {
	dash := NewMetricsDeriver().Derive(models.RawDashboardAggregate{})

	data, err := json.Marshal(dash)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, []interface{}{}, out["revenue"])
	assert.Equal(t, []interface{}{}, out["funnel"])
	assert.Equal(t, []interface{}{}, out["risks"])
}
