package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BerniceZTT/posalpro_end/models"
	"github.com/BerniceZTT/posalpro_end/utils"
)

// snapshotTimeout 单次快照任务的超时时间
const snapshotTimeout = 2 * time.Minute

// Snapshotter 生成并保存看板快照
type Snapshotter interface {
	TakeSnapshot(ctx context.Context) (models.DashboardSnapshot, error)
}

// SnapshotScheduler 按 cron 表达式定时保存看板快照
type SnapshotScheduler struct {
	cron        *cron.Cron
	snapshotter Snapshotter
}

// NewSnapshotScheduler 创建定时任务，expr 为标准5段 cron 表达式或 @every/@daily 等描述符
func NewSnapshotScheduler(snapshotter Snapshotter, expr string) (*SnapshotScheduler, error) {
	s := &SnapshotScheduler{
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		snapshotter: snapshotter,
	}
	if _, err := s.cron.AddFunc(expr, s.RunOnce); err != nil {
		return nil, fmt.Errorf("无效的快照 cron 表达式 %q: %w", expr, err)
	}
	return s, nil
}

// Start 启动定时任务
func (s *SnapshotScheduler) Start() {
	s.cron.Start()
	utils.Logger.Info().Time("next", s.Next()).Msg("看板快照定时任务已启动")
}

// Stop 停止定时任务，并等待正在执行的任务结束或 ctx 超时
func (s *SnapshotScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		utils.Logger.Warn().Msg("等待看板快照任务结束超时")
	}
}

// Next 下一次执行时间
func (s *SnapshotScheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// RunOnce 执行一次快照任务
func (s *SnapshotScheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	start := time.Now()
	snapshot, err := s.snapshotter.TakeSnapshot(ctx)
	if err != nil {
		utils.LogError(err, nil, "保存看板快照失败")
		return
	}

	utils.Logger.Info().
		Time("takenAt", snapshot.TakenAt).
		Int("risks", len(snapshot.Dashboard.Risks)).
		Dur("duration", time.Since(start)).
		Msg("看板快照已保存")
}
