package repository

import (
	"time"

	"github.com/BerniceZTT/posalpro_end/models"
)

const (
	// AtRiskWindow 截止日期在该时间内的进行中提案视为有风险
	AtRiskWindow = 7 * 24 * time.Hour
	// StalledAfter 超过该时间未更新的进行中提案视为停滞
	StalledAfter = 30 * 24 * time.Hour
	// chartMonths 与看板收入图表的月份数一致
	chartMonths = 6
)

// openStatuses 进行中的提案状态
var openStatuses = func() []models.ProposalStatus {
	var out []models.ProposalStatus
	for _, s := range models.PipelineStageOrder {
		if s.IsOpen() {
			out = append(out, s)
		}
	}
	return out
}()

// statWindows 统计查询使用的时间边界，均为 UTC
type statWindows struct {
	Now              time.Time
	MonthStart       time.Time
	NextMonthStart   time.Time
	QuarterStart     time.Time
	LastQuarterStart time.Time
	ChartStart       time.Time
	AtRiskUntil      time.Time
	StalledBefore    time.Time
}

func newStatWindows(now time.Time) statWindows {
	now = now.UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	quarterMonth := time.Month((int(now.Month())-1)/3*3 + 1)
	quarterStart := time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, time.UTC)
	return statWindows{
		Now:              now,
		MonthStart:       monthStart,
		NextMonthStart:   monthStart.AddDate(0, 1, 0),
		QuarterStart:     quarterStart,
		LastQuarterStart: quarterStart.AddDate(0, -3, 0),
		ChartStart:       monthStart.AddDate(0, -(chartMonths - 1), 0),
		AtRiskUntil:      now.Add(AtRiskWindow),
		StalledBefore:    now.Add(-StalledAfter),
	}
}

func openStatusStrings() []string {
	out := make([]string, len(openStatuses))
	for i, s := range openStatuses {
		out[i] = string(s)
	}
	return out
}
