package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/BerniceZTT/posalpro_end/models"
)

// dbRetries 看板统计查询的重试次数
const dbRetries = 3

// MongoAggregateSource 基于 MongoDB 提案集合的看板统计
type MongoAggregateSource struct {
	proposals     *mongo.Collection
	users         *mongo.Collection
	monthlyTarget float64
}

// NewMongoAggregateSource 创建 MongoDB 看板数据源
func NewMongoAggregateSource(database *mongo.Database, monthlyTarget float64) *MongoAggregateSource {
	return &MongoAggregateSource{
		proposals:     database.Collection(ProposalsCollection),
		users:         database.Collection(UsersCollection),
		monthlyTarget: monthlyTarget,
	}
}

// FetchStats 查询看板统计
func (s *MongoAggregateSource) FetchStats(ctx context.Context, scope models.DashboardScope, now time.Time) (models.AggregateStats, error) {
	w := newStatWindows(now)
	stats := models.AggregateStats{MonthlyTarget: s.monthlyTarget, GeneratedAt: w.Now}

	var err error
	if stats.Stages, err = aggregateAll[models.StageTotal](ctx, s.proposals, stagePipeline(scope)); err != nil {
		return stats, fmt.Errorf("统计提案阶段失败: %w", err)
	}
	if stats.WonByMonth, err = aggregateAll[models.MonthTotal](ctx, s.proposals, wonByMonthPipeline(scope, w)); err != nil {
		return stats, fmt.Errorf("统计月度成交失败: %w", err)
	}
	if stats.CreatedByMonth, err = aggregateAll[models.MonthTotal](ctx, s.proposals, createdByMonthPipeline(scope, w)); err != nil {
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
		if *ws.dst, err = s.sumWon(ctx, scope, ws.from, ws.to); err != nil {
			return stats, fmt.Errorf("统计成交金额失败: %w", err)
		}
	}

	if stats.AvgSalesCycleDays, err = s.avgSalesCycle(ctx, scope); err != nil {
		return stats, fmt.Errorf("统计平均销售周期失败: %w", err)
	}

	counts := []struct {
		dst    *int64
		filter bson.M
	}{
		{&stats.Overdue, overdueFilter(scope, w)},
		{&stats.AtRisk, atRiskFilter(scope, w)},
		{&stats.Stalled, stalledFilter(scope, w)},
		{&stats.ClosingThisMonth, closingThisMonthFilter(scope, w)},
	}
	for _, c := range counts {
		if *c.dst, err = countDocuments(ctx, s.proposals, c.filter); err != nil {
			return stats, fmt.Errorf("统计风险提案失败: %w", err)
		}
	}

	if stats.TeamSize, err = countDocuments(ctx, s.users, bson.M{"status": models.UserStatusACTIVE}); err != nil {
		return stats, fmt.Errorf("统计团队人数失败: %w", err)
	}
	return stats, nil
}

func (s *MongoAggregateSource) sumWon(ctx context.Context, scope models.DashboardScope, from, to time.Time) (float64, error) {
	rows, err := aggregateAll[struct {
		Total float64 `bson:"total"`
	}](ctx, s.proposals, wonSumPipeline(scope, from, to))
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return rows[0].Total, nil
}

func (s *MongoAggregateSource) avgSalesCycle(ctx context.Context, scope models.DashboardScope) (*float64, error) {
	rows, err := aggregateAll[struct {
		Days *float64 `bson:"days"`
	}](ctx, s.proposals, avgCyclePipeline(scope))
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0].Days, nil
}

func aggregateAll[T any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]T, error) {
	return ExecuteDbOperation(ctx, dbRetries, func() ([]T, error) {
		cursor, err := coll.Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		var out []T
		if err := cursor.All(ctx, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func countDocuments(ctx context.Context, coll *mongo.Collection, filter bson.M) (int64, error) {
	return ExecuteDbOperation(ctx, dbRetries, func() (int64, error) {
		return coll.CountDocuments(ctx, filter)
	})
}

// scopeFilter 非全局范围只统计本人负责的提案
func scopeFilter(scope models.DashboardScope) bson.M {
	filter := bson.M{}
	if !scope.IsGlobal() {
		filter["ownerId"] = scope.OwnerID
	}
	return filter
}

func openFilter(scope models.DashboardScope) bson.M {
	filter := scopeFilter(scope)
	filter["status"] = bson.M{"$in": openStatuses}
	return filter
}

func overdueFilter(scope models.DashboardScope, w statWindows) bson.M {
	filter := openFilter(scope)
	filter["dueDate"] = bson.M{"$lt": w.Now}
	return filter
}

func atRiskFilter(scope models.DashboardScope, w statWindows) bson.M {
	filter := openFilter(scope)
	filter["dueDate"] = bson.M{"$gte": w.Now, "$lte": w.AtRiskUntil}
	return filter
}

func stalledFilter(scope models.DashboardScope, w statWindows) bson.M {
	filter := openFilter(scope)
	filter["updatedAt"] = bson.M{"$lt": w.StalledBefore}
	return filter
}

func closingThisMonthFilter(scope models.DashboardScope, w statWindows) bson.M {
	filter := openFilter(scope)
	filter["dueDate"] = bson.M{"$gte": w.MonthStart, "$lt": w.NextMonthStart}
	return filter
}

func wonFilter(scope models.DashboardScope) bson.M {
	filter := scopeFilter(scope)
	filter["status"] = models.ProposalStatusWON
	return filter
}

func stagePipeline(scope models.DashboardScope) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: scopeFilter(scope)}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"value": bson.M{"$sum": "$value"},
		}}},
	}
}

func wonByMonthPipeline(scope models.DashboardScope, w statWindows) mongo.Pipeline {
	match := wonFilter(scope)
	match["closedAt"] = bson.M{"$gte": w.ChartStart}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":     monthKey("$closedAt"),
			"revenue": bson.M{"$sum": "$value"},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
}

func createdByMonthPipeline(scope models.DashboardScope, w statWindows) mongo.Pipeline {
	match := scopeFilter(scope)
	match["createdAt"] = bson.M{"$gte": w.ChartStart}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":       monthKey("$createdAt"),
			"proposals": bson.M{"$sum": 1},
		}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}
}

func wonSumPipeline(scope models.DashboardScope, from, to time.Time) mongo.Pipeline {
	match := wonFilter(scope)
	match["closedAt"] = bson.M{"$gte": from, "$lt": to}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$value"}}}},
	}
}

func avgCyclePipeline(scope models.DashboardScope) mongo.Pipeline {
	match := wonFilter(scope)
	match["closedAt"] = bson.M{"$ne": nil}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"days": bson.M{"$avg": bson.M{"$divide": bson.A{
				bson.M{"$subtract": bson.A{"$closedAt", "$createdAt"}},
				int64(24 * time.Hour / time.Millisecond),
			}}},
		}}},
	}
}

func monthKey(field string) bson.M {
	return bson.M{"$dateToString": bson.M{"format": "%Y-%m", "date": field, "timezone": "UTC"}}
}

// MongoSnapshotStore 看板快照存储
type MongoSnapshotStore struct {
	coll *mongo.Collection
}

// NewMongoSnapshotStore 创建快照存储
func NewMongoSnapshotStore(database *mongo.Database) *MongoSnapshotStore {
	return &MongoSnapshotStore{coll: database.Collection(DashboardSnapshotsCollection)}
}

// SaveSnapshot 保存快照
func (s *MongoSnapshotStore) SaveSnapshot(ctx context.Context, snapshot models.DashboardSnapshot) error {
	_, err := s.coll.InsertOne(ctx, snapshot)
	return err
}

// LatestSnapshot 最近一次快照，没有快照时返回nil
func (s *MongoSnapshotStore) LatestSnapshot(ctx context.Context) (*models.DashboardSnapshot, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "takenAt", Value: -1}})
	var snapshot models.DashboardSnapshot
	err := s.coll.FindOne(ctx, bson.M{}, opts).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}
