// Package sweeper 自动审核任务
//
// 定期扫描 pending 超过等待时长的手艺人档案并自动通过。
// 写入使用条件更新：扫描与写入之间被管理员处理过的档案会得到
// ErrPersistenceConflict，计为 Skipped，不覆盖人工决定。
// 单个档案失败只记录日志，不影响同批次其它档案。
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"craftbid/internal/apiserver/verification"
	"craftbid/internal/shared/metrics"
	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
	"craftbid/pkg/logging"
)

// Result 单次扫描结果
type Result struct {
	Approved int `json:"approved"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Approver 自动通过单个档案
type Approver interface {
	AutoApprove(ctx context.Context, snapshot *model.ArtisanProfile, now time.Time, timeout time.Duration) (*model.ArtisanProfile, error)
}

// Sweeper 自动审核任务
type Sweeper struct {
	config   *Config
	store    storage.ArtisanStore
	approver Approver
	logger   *logging.Logger
	metrics  *metrics.Metrics

	runMu sync.Mutex // 保证同一时刻只有一次扫描

	mu      sync.Mutex // 保护 running 状态
	running bool
	stopCh  chan struct{}
}

// NewSweeper 创建自动审核任务
func NewSweeper(store storage.ArtisanStore, approver Approver, cfg *Config, logger *logging.Logger, m *metrics.Metrics) (*Sweeper, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Default("sweeper")
	}
	return &Sweeper{
		config:   cfg,
		store:    store,
		approver: approver,
		logger:   logger,
		metrics:  m,
		stopCh:   make(chan struct{}),
	}, nil
}

// RunOnce 执行一次扫描
//
// 按 BatchSize 分页处理所有超时的档案，页与页之间按 (pending_at, id)
// 键集推进，失败的档案在同一次扫描中不会被重复选中。
// 只有查询失败会返回错误；单个档案的失败计入 Result.Failed。
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) (Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var res Result
	start := time.Now()
	cutoff := now.Add(-s.config.Timeout)

	filter := storage.ArtisanFilter{
		IDVerificationStatus: model.IDVerificationPending,
		PendingBefore:        cutoff,
		Limit:                s.config.BatchSize,
	}
	candidates := 0
	for {
		page, err := s.store.ListArtisans(ctx, filter)
		if err != nil {
			s.finish(res, candidates, start)
			return res, fmt.Errorf("failed to list stale pending artisans: %w", err)
		}
		candidates += len(page)

		for _, p := range page {
			if err := ctx.Err(); err != nil {
				s.logger.WithError(err).Warn("Sweep interrupted", "processed", res.Approved+res.Skipped+res.Failed)
				s.finish(res, candidates, start)
				return res, nil
			}
			s.approve(ctx, p, now, &res)
		}

		if len(page) < s.config.BatchSize {
			break
		}
		last := page[len(page)-1]
		if last.IDVerificationPendingAt == nil {
			break
		}
		filter.After = &storage.ArtisanCursor{PendingAt: *last.IDVerificationPendingAt, ID: last.ID}
	}

	s.finish(res, candidates, start)
	return res, nil
}

func (s *Sweeper) approve(ctx context.Context, p *model.ArtisanProfile, now time.Time, res *Result) {
	var pendingSince string
	if p.IDVerificationPendingAt != nil {
		pendingSince = p.IDVerificationPendingAt.UTC().Format(time.RFC3339)
	}
	plog := s.logger.WithProfile(p.ID, p.UserID)

	_, err := s.approver.AutoApprove(ctx, p, now, s.config.Timeout)
	switch {
	case err == nil:
		res.Approved++
		plog.Info("Artisan auto-approved", "pending_since", pendingSince)
	case errors.Is(err, verification.ErrPersistenceConflict),
		errors.Is(err, verification.ErrProfileNotFound):
		res.Skipped++
		plog.Info("Artisan changed before auto-approval, skipped", "pending_since", pendingSince, "reason", err.Error())
	default:
		res.Failed++
		plog.WithError(err).Error("Auto-approval failed", "pending_since", pendingSince)
	}
}

func (s *Sweeper) finish(res Result, candidates int, start time.Time) {
	duration := time.Since(start)
	s.metrics.RecordSweep(res.Approved, res.Skipped, res.Failed, duration)
	if candidates > 0 {
		s.logger.WithDuration(duration).Info("Sweep finished",
			"candidates", candidates, "approved", res.Approved, "skipped", res.Skipped, "failed", res.Failed)
	}
}

// Start 按间隔循环扫描，直到 ctx 取消或调用 Stop
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	log.Printf("[sweeper.start] timeout=%s interval=%s batch_size=%d",
		s.config.Timeout, s.config.Interval, s.config.BatchSize)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[sweeper.stop] reason=context_cancelled")
			return
		case <-s.stopCh:
			log.Printf("[sweeper.stop] reason=stop_signal")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop 停止循环
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.stopCh)
		s.running = false
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	if _, err := s.RunOnce(ctx, time.Now().UTC()); err != nil {
		log.Printf("[sweeper.run.failed] error=%v", err)
	}
}
