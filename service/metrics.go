package service

import (
	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/utils"
)

// DefaultAvgCycleTimeDays 上游没有销售周期数据时使用的业务基线（天）
const DefaultAvgCycleTimeDays = 21

// MetricsDeriver 从原始看板聚合数据派生KPI、收入序列、转化漏斗和风险指标。
// 无状态，可并发使用；任何输入都不会导致 panic。
type MetricsDeriver struct{}

// NewMetricsDeriver 创建派生器
func NewMetricsDeriver() *MetricsDeriver {
	return &MetricsDeriver{}
}

// Derive 派生看板视图模型
func (d *MetricsDeriver) Derive(raw models.RawDashboardAggregate) models.DerivedDashboard {
	funnel := d.DeriveFunnel(raw)
	return models.DerivedDashboard{
		KPIs:          d.DeriveKPIs(raw),
		Revenue:       d.DeriveRevenue(raw),
		Funnel:        funnel,
		FunnelWinRate: funnel.WinRate(),
		Risks:         d.DeriveRisks(raw),
	}
}

// DeriveKPIs 派生KPI
func (d *MetricsDeriver) DeriveKPIs(raw models.RawDashboardAggregate) models.EnhancedKPIs {
	num := func(key string) float64 { return utils.ToNumber(raw[key]) }

	// 客户数量上游没有单独统计，暂用团队人数代替
	teamSize := num(models.AggTeamSize)

	return models.EnhancedKPIs{
		TotalRevenue:   num(models.AggTotalRevenue),
		MonthlyRevenue: num(models.AggMonthlyRevenue),
		// 上游没有单独的收入增长率，使用季度增长率
		RevenueGrowth:  num(models.AggQuarterlyGrowth),
		TotalProposals: num(models.AggTotalProposals),
		// 进行中的提案以本月待结单数量表示
		ActiveProposals: num(models.AggClosingThisMonth),
		WonDeals:        num(models.AggWonDeals),
		WinRate:         num(models.AggWinRate),
		AvgDealSize:     num(models.AggAvgDealSize),
		AvgCycleTime:    utils.ToNumberOr(raw[models.AggAvgSalesCycle], DefaultAvgCycleTimeDays),
		AtRiskDeals:     num(models.AggAtRiskDeals),
		TeamSize:        teamSize,
		TotalCustomers:  teamSize,
		ActiveCustomers: teamSize,
	}
}

// DeriveRevenue 派生收入序列，保持上游顺序
func (d *MetricsDeriver) DeriveRevenue(raw models.RawDashboardAggregate) models.RevenueSeries {
	items := utils.ToSlice(raw[models.AggRevenueChart])
	series := make(models.RevenueSeries, 0, len(items))
	for _, item := range items {
		m := utils.ToMap(item)
		series = append(series, models.RevenuePoint{
			Period:    utils.ToString(m["period"]),
			Actual:    utils.ToNumber(m["actual"]),
			Target:    utils.ToNumber(m["target"]),
			Forecast:  utils.ToNumber(m["forecast"]),
			Proposals: utils.ToNumber(m["proposals"]),
		})
	}
	return series
}

// DeriveFunnel 派生转化漏斗，保持上游顺序
func (d *MetricsDeriver) DeriveFunnel(raw models.RawDashboardAggregate) models.ConversionFunnel {
	items := utils.ToSlice(raw[models.AggPipelineStages])
	funnel := make(models.ConversionFunnel, 0, len(items))
	for _, item := range items {
		m := utils.ToMap(item)
		funnel = append(funnel, models.FunnelStage{
			Stage:          utils.ToString(m["stage"]),
			Count:          utils.ToNumber(m["count"]),
			ConversionRate: utils.ToNumber(m["conversionRate"]),
			Value:          utils.ToNumber(m["value"]),
		})
	}
	return funnel
}

// DeriveRisks 派生风险指标，数量为0的类别不输出
func (d *MetricsDeriver) DeriveRisks(raw models.RawDashboardAggregate) models.RiskIndicatorSet {
	counts := map[models.RiskType]float64{
		models.RiskOverdue: utils.ToNumber(raw[models.AggOverdue]),
		models.RiskAtRisk:  utils.ToNumber(raw[models.AggAtRiskDeals]),
		models.RiskStalled: utils.ToNumber(raw[models.AggStalled]),
	}
	trends := utils.ToMap(raw[models.AggRiskTrends])

	risks := models.RiskIndicatorSet{}
	for _, t := range models.RiskTypeOrder {
		count := counts[t]
		if count <= 0 {
			continue
		}
		risks = append(risks, models.RiskIndicator{
			Type:     t,
			Count:    count,
			Severity: ClassifyRisk(count, t),
			Trend:    utils.ToNumber(trends[string(t)]),
		})
	}
	return risks
}

// ClassifyRisk 按数量阈值判断风险严重程度
func ClassifyRisk(count float64, riskType models.RiskType) models.RiskSeverity {
	switch riskType {
	case models.RiskOverdue:
		switch {
		case count > 10:
			return models.SeverityHigh
		case count > 3:
			return models.SeverityMedium
		}
	case models.RiskAtRisk:
		if count > 5 {
			return models.SeverityMedium
		}
	}
	return models.SeverityLow
}
