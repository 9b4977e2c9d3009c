package models

import "time"

// RawDashboardAggregate 上游聚合层返回的原始看板数据。
// 字段是松散类型的 JSON，数值字段可能缺失、为 null 或为字符串，派生时统一做数值转换。
type RawDashboardAggregate map[string]interface{}

// 原始聚合数据的字段名
const (
	AggTotalRevenue     = "totalRevenue"
	AggMonthlyRevenue   = "monthlyRevenue"
	AggQuarterlyGrowth  = "quarterlyGrowth"
	AggTotalProposals   = "totalProposals"
	AggWonDeals         = "wonDeals"
	AggWinRate          = "winRate"
	AggAvgDealSize      = "avgDealSize"
	AggAvgSalesCycle    = "avgSalesCycle"
	AggAtRiskDeals      = "atRiskDeals"
	AggOverdue          = "overdueProposals"
	AggStalled          = "stalledProposals"
	AggClosingThisMonth = "closingThisMonth"
	AggTeamSize         = "teamSize"
	AggRevenueChart     = "revenueChart"
	AggPipelineStages   = "pipelineStages"
	AggRiskTrends       = "riskTrends"
)

// EnhancedKPIs 看板KPI视图模型，所有字段缺省为0
type EnhancedKPIs struct {
	TotalRevenue    float64 `json:"totalRevenue" bson:"totalRevenue"`
	MonthlyRevenue  float64 `json:"monthlyRevenue" bson:"monthlyRevenue"`
	RevenueGrowth   float64 `json:"revenueGrowth" bson:"revenueGrowth"`
	TotalProposals  float64 `json:"totalProposals" bson:"totalProposals"`
	ActiveProposals float64 `json:"activeProposals" bson:"activeProposals"`
	WonDeals        float64 `json:"wonDeals" bson:"wonDeals"`
	WinRate         float64 `json:"winRate" bson:"winRate"`
	AvgDealSize     float64 `json:"avgDealSize" bson:"avgDealSize"`
	AvgCycleTime    float64 `json:"avgCycleTime" bson:"avgCycleTime"` // 天
	AtRiskDeals     float64 `json:"atRiskDeals" bson:"atRiskDeals"`
	TeamSize        float64 `json:"teamSize" bson:"teamSize"`
	TotalCustomers  float64 `json:"totalCustomers" bson:"totalCustomers"`
	ActiveCustomers float64 `json:"activeCustomers" bson:"activeCustomers"`
}

// RevenuePoint 收入时间序列中的一个点
type RevenuePoint struct {
	Period    string  `json:"period" bson:"period"`
	Actual    float64 `json:"actual" bson:"actual"`
	Target    float64 `json:"target" bson:"target"`
	Forecast  float64 `json:"forecast" bson:"forecast"`
	Proposals float64 `json:"proposals" bson:"proposals"`
}

// RevenueSeries 按上游顺序排列的收入序列
type RevenueSeries []RevenuePoint

// FunnelStage 转化漏斗阶段
type FunnelStage struct {
	Stage          string  `json:"stage" bson:"stage"`
	Count          float64 `json:"count" bson:"count"`
	ConversionRate float64 `json:"conversionRate" bson:"conversionRate"`
	Value          float64 `json:"value" bson:"value"`
}

// ConversionFunnel 按上游顺序排列的漏斗阶段
type ConversionFunnel []FunnelStage

// StageCount 按名称精确查找阶段数量，找不到返回0
func (f ConversionFunnel) StageCount(name string) float64 {
	for _, s := range f {
		if s.Stage == name {
			return s.Count
		}
	}
	return 0
}

// WinRate 胜率 = Won / Submitted * 100
func (f ConversionFunnel) WinRate() float64 {
	total := f.StageCount(StageSubmitted)
	if total <= 0 {
		return 0
	}
	return f.StageCount(StageWon) / total * 100
}

// RiskType 风险类别
type RiskType string

const (
	RiskOverdue RiskType = "overdue"
	RiskAtRisk  RiskType = "at_risk"
	RiskStalled RiskType = "stalled"
)

// RiskTypeOrder 风险指标的输出顺序
var RiskTypeOrder = []RiskType{RiskOverdue, RiskAtRisk, RiskStalled}

// RiskSeverity 风险严重程度
type RiskSeverity string

const (
	SeverityHigh   RiskSeverity = "high"
	SeverityMedium RiskSeverity = "medium"
	SeverityLow    RiskSeverity = "low"
)

// RiskIndicator 风险指标
type RiskIndicator struct {
	Type     RiskType     `json:"type" bson:"type"`
	Count    float64      `json:"count" bson:"count"`
	Severity RiskSeverity `json:"severity" bson:"severity"`
	Trend    float64      `json:"trend" bson:"trend"`
}

// RiskIndicatorSet 只包含数量大于0的风险指标
type RiskIndicatorSet []RiskIndicator

// Count 返回某类风险的数量，未出现的类别为0
func (s RiskIndicatorSet) Count(t RiskType) float64 {
	for _, r := range s {
		if r.Type == t {
			return r.Count
		}
	}
	return 0
}

// DerivedDashboard 看板派生结果
type DerivedDashboard struct {
	KPIs          EnhancedKPIs     `json:"kpis" bson:"kpis"`
	Revenue       RevenueSeries    `json:"revenue" bson:"revenue"`
	Funnel        ConversionFunnel `json:"funnel" bson:"funnel"`
	FunnelWinRate float64          `json:"funnelWinRate" bson:"funnelWinRate"`
	Risks         RiskIndicatorSet `json:"risks" bson:"risks"`
}

// DashboardScope 看板数据范围，OwnerID 为空表示全局
type DashboardScope struct {
	OwnerID string
}

// IsGlobal 是否为全局范围
func (s DashboardScope) IsGlobal() bool {
	return s.OwnerID == ""
}

// StageTotal 某个提案状态的数量与金额
type StageTotal struct {
	Status ProposalStatus `json:"status" bson:"_id"`
	Count  int64          `json:"count" bson:"count"`
	Value  float64        `json:"value" bson:"value"`
}

// MonthTotal 月度统计
type MonthTotal struct {
	Month     string  `json:"month" bson:"_id"` // 格式: YYYY-MM
	Revenue   float64 `json:"revenue" bson:"revenue"`
	Proposals int64   `json:"proposals" bson:"proposals"`
}

// AggregateStats 数据源查询出的原始统计，由看板服务组装成 RawDashboardAggregate
type AggregateStats struct {
	Stages            []StageTotal
	WonByMonth        []MonthTotal // 按成交月份统计的成交金额
	CreatedByMonth    []MonthTotal // 按创建月份统计的提案数量
	WonThisMonth      float64
	WonThisQuarter    float64
	WonLastQuarter    float64
	AvgSalesCycleDays *float64 // 没有成交记录时为nil
	Overdue           int64
	AtRisk            int64
	Stalled           int64
	ClosingThisMonth  int64
	TeamSize          int64
	MonthlyTarget     float64
	GeneratedAt       time.Time
}

// DashboardSnapshot 定时保存的看板快照，用于计算风险趋势
type DashboardSnapshot struct {
	TakenAt   time.Time        `json:"takenAt" bson:"takenAt"`
	Dashboard DerivedDashboard `json:"dashboard" bson:"dashboard"`
}
