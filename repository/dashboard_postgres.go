package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/utils"
)

// PostgresAggregateSource 基于报表库 (PostgreSQL) 的看板统计，表结构与 proposals/users 集合对应
type PostgresAggregateSource struct {
	db            *sql.DB
	monthlyTarget float64
}

// OpenPostgres 打开报表库连接并检查连通性
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开PostgreSQL失败: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping PostgreSQL失败: %w", err)
	}
	utils.Logger.Info().Msg("已连接到PostgreSQL报表库")
	return db, nil
}

// NewPostgresAggregateSource 创建 PostgreSQL 看板数据源
func NewPostgresAggregateSource(db *sql.DB, monthlyTarget float64) *PostgresAggregateSource {
	return &PostgresAggregateSource{db: db, monthlyTarget: monthlyTarget}
}

// $1 为负责人ID，空字符串表示全局
const ownerClause = `($1 = '' OR owner_id = $1)`

const (
	pgStagesQuery = `
		SELECT status, COUNT(*), COALESCE(SUM(value), 0)
		FROM proposals
		WHERE ` + ownerClause + `
		GROUP BY status`

	pgWonByMonthQuery = `
		SELECT to_char(closed_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, COALESCE(SUM(value), 0), COUNT(*)
		FROM proposals
		WHERE ` + ownerClause + ` AND status = 'WON' AND closed_at >= $2
		GROUP BY month
		ORDER BY month`

	pgCreatedByMonthQuery = `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM') AS month, 0, COUNT(*)
		FROM proposals
		WHERE ` + ownerClause + ` AND created_at >= $2
		GROUP BY month
		ORDER BY month`

	pgWonSumQuery = `
		SELECT COALESCE(SUM(value), 0)
		FROM proposals
		WHERE ` + ownerClause + ` AND status = 'WON' AND closed_at >= $2 AND closed_at < $3`

	pgAvgCycleQuery = `
		SELECT AVG(EXTRACT(EPOCH FROM (closed_at - created_at)) / 86400)
		FROM proposals
		WHERE ` + ownerClause + ` AND status = 'WON' AND closed_at IS NOT NULL`

	pgOpenCountQuery = `
		SELECT
			COUNT(*) FILTER (WHERE due_date < $3),
			COUNT(*) FILTER (WHERE due_date >= $3 AND due_date <= $4),
			COUNT(*) FILTER (WHERE updated_at < $5),
			COUNT(*) FILTER (WHERE due_date >= $6 AND due_date < $7)
		FROM proposals
		WHERE ` + ownerClause + ` AND status = ANY($2)`

	pgTeamSizeQuery = `SELECT COUNT(*) FROM users WHERE status = $1`
)

// FetchStats 查询看板统计
func (s *PostgresAggregateSource) FetchStats(ctx context.Context, scope models.DashboardScope, now time.Time) (models.AggregateStats, error) {
	w := newStatWindows(now)
	stats := models.AggregateStats{MonthlyTarget: s.monthlyTarget, GeneratedAt: w.Now}
	owner := scope.OwnerID

	var err error
	if stats.Stages, err = s.stages(ctx, owner); err != nil {
		return stats, fmt.Errorf("统计提案阶段失败: %w", err)
	}
	if stats.WonByMonth, err = s.monthTotals(ctx, pgWonByMonthQuery, owner, w.ChartStart); err != nil {
		return stats, fmt.Errorf("统计月度成交失败: %w", err)
	}
	if stats.CreatedByMonth, err = s.monthTotals(ctx, pgCreatedByMonthQuery, owner, w.ChartStart); err != nil {
		return stats, fmt.Errorf("统计月度提案失败: %w", err)
	}

	wonSums := []struct {
		dst      *float64
		from, to time.Time
	}{
		{&stats.WonThisMonth, w.MonthStart, w.NextMonthStart},
		{&stats.WonThisQuarter, w.QuarterStart, w.Now},
		{&stats.WonLastQuarter, w.LastQuarterStart, w.QuarterStart},
	}
	for _, ws := range wonSums {
		if err := s.db.QueryRowContext(ctx, pgWonSumQuery, owner, ws.from, ws.to).Scan(ws.dst); err != nil {
			return stats, fmt.Errorf("统计成交金额失败: %w", err)
		}
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, pgAvgCycleQuery, owner).Scan(&avg); err != nil {
		return stats, fmt.Errorf("统计平均销售周期失败: %w", err)
	}
	if avg.Valid {
		stats.AvgSalesCycleDays = &avg.Float64
	}

	err = s.db.QueryRowContext(ctx, pgOpenCountQuery,
		owner, pq.Array(openStatusStrings()),
		w.Now, w.AtRiskUntil, w.StalledBefore, w.MonthStart, w.NextMonthStart,
	).Scan(&stats.Overdue, &stats.AtRisk, &stats.Stalled, &stats.ClosingThisMonth)
	if err != nil {
		return stats, fmt.Errorf("统计风险提案失败: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, pgTeamSizeQuery, string(models.UserStatusACTIVE)).Scan(&stats.TeamSize); err != nil {
		return stats, fmt.Errorf("统计团队人数失败: %w", err)
	}
	return stats, nil
}

func (s *PostgresAggregateSource) stages(ctx context.Context, owner string) ([]models.StageTotal, error) {
	rows, err := s.db.QueryContext(ctx, pgStagesQuery, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.StageTotal
	for rows.Next() {
		var st models.StageTotal
		if err := rows.Scan(&st.Status, &st.Count, &st.Value); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresAggregateSource) monthTotals(ctx context.Context, query, owner string, since time.Time) ([]models.MonthTotal, error) {
	rows, err := s.db.QueryContext(ctx, query, owner, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MonthTotal
	for rows.Next() {
		var m models.MonthTotal
		if err := rows.Scan(&m.Month, &m.Revenue, &m.Proposals); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
