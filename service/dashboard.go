package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/utils"
)

// RevenueChartMonths 收入图表覆盖的月份数（含当月）
const RevenueChartMonths = 6

// AggregateSource 看板统计数据源
type AggregateSource interface {
	FetchStats(ctx context.Context, scope models.DashboardScope, now time.Time) (models.AggregateStats, error)
}

// SnapshotStore 看板快照存储
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot models.DashboardSnapshot) error
	LatestSnapshot(ctx context.Context) (*models.DashboardSnapshot, error)
}

// DashboardService 组装原始聚合数据并派生看板
type DashboardService struct {
	source    AggregateSource
	snapshots SnapshotStore // 可为nil，此时风险趋势为0
	deriver   *MetricsDeriver
	now       func() time.Time
}

// NewDashboardService 创建看板服务
func NewDashboardService(source AggregateSource, snapshots SnapshotStore, deriver *MetricsDeriver) *DashboardService {
	if deriver == nil {
		deriver = NewMetricsDeriver()
	}
	return &DashboardService{source: source, snapshots: snapshots, deriver: deriver, now: time.Now}
}

// BuildRaw 查询统计数据并组装为原始聚合数据
func (s *DashboardService) BuildRaw(ctx context.Context, scope models.DashboardScope) (models.RawDashboardAggregate, error) {
	now := s.now()
	stats, err := s.source.FetchStats(ctx, scope, now)
	if err != nil {
		return nil, fmt.Errorf("查询看板统计失败: %w", err)
	}

	// 快照是全局数据，只用于全局范围的趋势
	var previous *models.DashboardSnapshot
	if s.snapshots != nil && scope.IsGlobal() {
		previous, err = s.snapshots.LatestSnapshot(ctx)
		if err != nil {
			utils.LogError(err, nil, "读取看板快照失败，风险趋势按0处理")
			previous = nil
		}
	}

	return AssembleAggregate(stats, previous, now), nil
}

// Build 查询并派生看板
func (s *DashboardService) Build(ctx context.Context, scope models.DashboardScope) (models.DerivedDashboard, error) {
	raw, err := s.BuildRaw(ctx, scope)
	if err != nil {
		return models.DerivedDashboard{}, err
	}
	return s.deriver.Derive(raw), nil
}

// TakeSnapshot 生成全局看板并保存快照
func (s *DashboardService) TakeSnapshot(ctx context.Context) (models.DashboardSnapshot, error) {
	if s.snapshots == nil {
		return models.DashboardSnapshot{}, fmt.Errorf("未配置快照存储")
	}
	dash, err := s.Build(ctx, models.DashboardScope{})
	if err != nil {
		return models.DashboardSnapshot{}, err
	}
	snapshot := models.DashboardSnapshot{TakenAt: s.now().UTC(), Dashboard: dash}
	if err := s.snapshots.SaveSnapshot(ctx, snapshot); err != nil {
		return models.DashboardSnapshot{}, fmt.Errorf("保存看板快照失败: %w", err)
	}
	return snapshot, nil
}

// AssembleAggregate 将数据源统计组装为上游聚合格式
func AssembleAggregate(stats models.AggregateStats, previous *models.DashboardSnapshot, now time.Time) models.RawDashboardAggregate {
	var totalProposals, wonCount, lostCount int64
	var wonValue float64
	byStatus := make(map[models.ProposalStatus]models.StageTotal, len(stats.Stages))
	for _, st := range stats.Stages {
		byStatus[st.Status] = st
		totalProposals += st.Count
		switch st.Status {
		case models.ProposalStatusWON:
			wonCount = st.Count
			wonValue = st.Value
		case models.ProposalStatusLOST:
			lostCount = st.Count
		}
	}

	raw := models.RawDashboardAggregate{
		models.AggTotalRevenue:     wonValue,
		models.AggMonthlyRevenue:   stats.WonThisMonth,
		models.AggQuarterlyGrowth:  growth(stats.WonThisQuarter, stats.WonLastQuarter),
		models.AggTotalProposals:   totalProposals,
		models.AggWonDeals:         wonCount,
		models.AggWinRate:          percent(float64(wonCount), float64(wonCount+lostCount)),
		models.AggAvgDealSize:      round2(ratio(wonValue, float64(wonCount))),
		models.AggAtRiskDeals:      stats.AtRisk,
		models.AggOverdue:          stats.Overdue,
		models.AggStalled:          stats.Stalled,
		models.AggClosingThisMonth: stats.ClosingThisMonth,
		models.AggTeamSize:         stats.TeamSize,
		models.AggRevenueChart:     revenueChart(stats, now),
		models.AggPipelineStages:   pipelineStages(byStatus, totalProposals),
	}
	// 没有成交记录时不输出，由派生器使用默认周期
	if stats.AvgSalesCycleDays != nil {
		raw[models.AggAvgSalesCycle] = round2(*stats.AvgSalesCycleDays)
	}
	if previous != nil {
		prev := previous.Dashboard.Risks
		raw[models.AggRiskTrends] = map[string]interface{}{
			string(models.RiskOverdue): float64(stats.Overdue) - prev.Count(models.RiskOverdue),
			string(models.RiskAtRisk):  float64(stats.AtRisk) - prev.Count(models.RiskAtRisk),
			string(models.RiskStalled): float64(stats.Stalled) - prev.Count(models.RiskStalled),
		}
	}
	return raw
}

// revenueChart 最近 RevenueChartMonths 个月的收入序列，按时间正序
func revenueChart(stats models.AggregateStats, now time.Time) []interface{} {
	won := make(map[string]float64, len(stats.WonByMonth))
	for _, m := range stats.WonByMonth {
		won[m.Month] = m.Revenue
	}
	created := make(map[string]int64, len(stats.CreatedByMonth))
	for _, m := range stats.CreatedByMonth {
		created[m.Month] = m.Proposals
	}

	// 与数据源一致按 UTC 划分月份
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	chart := make([]interface{}, 0, RevenueChartMonths)
	var recent []float64
	for i := RevenueChartMonths - 1; i >= 0; i-- {
		period := first.AddDate(0, -i, 0).Format("2006-01")
		actual := won[period]
		recent = append(recent, actual)
		chart = append(chart, map[string]interface{}{
			"period":    period,
			"actual":    actual,
			"target":    stats.MonthlyTarget,
			"forecast":  forecast(recent),
			"proposals": created[period],
		})
	}
	return chart
}

// forecast 最近三个月的简单移动平均
func forecast(recent []float64) float64 {
	start := len(recent) - 3
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, v := range recent[start:] {
		sum += v
	}
	return round2(sum / float64(len(recent)-start))
}

// pipelineStages 按固定阶段顺序输出漏斗，转化率为该阶段占全部提案的百分比
func pipelineStages(byStatus map[models.ProposalStatus]models.StageTotal, total int64) []interface{} {
	stages := make([]interface{}, 0, len(models.PipelineStageOrder))
	for _, status := range models.PipelineStageOrder {
		st := byStatus[status]
		stages = append(stages, map[string]interface{}{
			"stage":          status.StageName(),
			"count":          st.Count,
			"conversionRate": percent(float64(st.Count), float64(total)),
			"value":          st.Value,
		})
	}
	return stages
}

func growth(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return round2((current - previous) / math.Abs(previous) * 100)
}

func percent(part, whole float64) float64 {
	return round2(ratio(part, whole) * 100)
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
