package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftbid/internal/apiserver/verification"
	"craftbid/internal/shared/metrics"
	"craftbid/internal/shared/model"
	"craftbid/internal/shared/storage"
	"craftbid/internal/shared/storage/dbutil"
	"craftbid/pkg/logging"
)

const timeout = 5 * time.Minute

var t0 = time.Date(2025, 4, 6, 14, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) storage.PersistentStore {
	t.Helper()
	store, err := storage.NewPersistentStore(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedPending 创建一个在 pendingAt 提交审核的档案
func seedPending(t *testing.T, store storage.PersistentStore, id string, pendingAt time.Time) *model.ArtisanProfile {
	t.Helper()
	ctx := context.Background()
	u := &model.User{
		ID:        "u-" + id,
		Name:      "Maker " + id,
		Email:     id + "@craftbid.test",
		Roles:     model.NewRoleSet(model.RoleArtisan),
		CreatedAt: t0.Add(-time.Hour),
		UpdatedAt: t0.Add(-time.Hour),
	}
	p := model.NewArtisanProfile(id, u.ID, u.CreatedAt)
	require.NoError(t, store.CreateArtisanUser(ctx, u, p))

	next := p.Clone()
	next.IDVerificationStatus = model.IDVerificationPending
	next.IDVerificationPendingAt = &pendingAt
	next.UpdatedAt = pendingAt
	require.NoError(t, store.UpdateArtisanState(ctx, next, storage.GuardOf(p)))
	return next
}

func newTestSweeper(t *testing.T, store storage.PersistentStore, approver Approver, m *metrics.Metrics) *Sweeper {
	t.Helper()
	if approver == nil {
		approver = verification.NewService(store, nil, verification.NewMachine(true))
	}
	s, err := NewSweeper(store, approver, &Config{Timeout: timeout, Interval: 10 * time.Millisecond}, logging.Discard(), m)
	require.NoError(t, err)
	return s
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{Timeout: time.Minute}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 100, cfg.BatchSize)

	assert.Error(t, (&Config{}).Validate())
	assert.Equal(t, 5*time.Minute, DefaultConfig().Timeout)
}

func TestRunOnce_RespectsTimeout(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "a1", t0)
	s := newTestSweeper(t, store, nil, nil)

	res, err := s.RunOnce(ctx, t0.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)

	p, err := store.GetArtisan(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.IDVerificationPending, p.IDVerificationStatus)

	res, err = s.RunOnce(ctx, t0.Add(5*time.Minute+time.Second))
	require.NoError(t, err)
	assert.Equal(t, Result{Approved: 1}, res)

	p, err = store.GetArtisan(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.IDVerificationConfirmed, p.IDVerificationStatus)
	assert.Equal(t, model.ArtisanStatusActive, p.Status)
	assert.NotNil(t, p.IDVerifiedAt)
	assert.Nil(t, p.IDVerificationPendingAt)

	// 再次扫描不会重复处理
	res, err = s.RunOnce(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRunOnce_OnlyStaleProfiles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "old", t0)
	seedPending(t, store, "fresh", t0.Add(8*time.Minute))
	s := newTestSweeper(t, store, nil, nil)

	res, err := s.RunOnce(ctx, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Approved)

	fresh, err := store.GetArtisan(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, model.IDVerificationPending, fresh.IDVerificationStatus)
}

// racingApprover 在自动通过之前模拟管理员先一步拒绝
type racingApprover struct {
	store storage.PersistentStore
	inner Approver
	race  map[string]bool
}

func (r *racingApprover) AutoApprove(ctx context.Context, snapshot *model.ArtisanProfile, now time.Time, timeout time.Duration) (*model.ArtisanProfile, error) {
	if r.race[snapshot.ID] {
		svc := verification.NewService(r.store, nil, verification.NewMachine(true))
		if _, err := svc.Reject(ctx, snapshot.ID, "admin-1", "blurry ID photo"); err != nil {
			return nil, err
		}
	}
	return r.inner.AutoApprove(ctx, snapshot, now, timeout)
}

func TestRunOnce_ConcurrentHumanDecisionIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "a1", t0)
	seedPending(t, store, "a2", t0)

	approver := &racingApprover{
		store: store,
		inner: verification.NewService(store, nil, verification.NewMachine(true)),
		race:  map[string]bool{"a1": true},
	}
	m := metrics.NewMetrics("test")
	s := newTestSweeper(t, store, approver, m)

	res, err := s.RunOnce(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{Approved: 1, Skipped: 1}, res)

	a1, err := store.GetArtisan(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, model.IDVerificationRejected, a1.IDVerificationStatus)
	assert.Equal(t, "blurry ID photo", *a1.RejectionReason)
}

// flakyApprover 对指定档案返回错误
type flakyApprover struct {
	inner Approver
	fail  string
}

func (f *flakyApprover) AutoApprove(ctx context.Context, snapshot *model.ArtisanProfile, now time.Time, timeout time.Duration) (*model.ArtisanProfile, error) {
	if snapshot.ID == f.fail {
		return nil, errors.New("database is locked")
	}
	return f.inner.AutoApprove(ctx, snapshot, now, timeout)
}

func TestRunOnce_FailureDoesNotAbortBatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "a1", t0)
	seedPending(t, store, "a2", t0.Add(time.Second))
	seedPending(t, store, "a3", t0.Add(2*time.Second))

	approver := &flakyApprover{
		inner: verification.NewService(store, nil, verification.NewMachine(true)),
		fail:  "a2",
	}
	s := newTestSweeper(t, store, approver, nil)

	res, err := s.RunOnce(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{Approved: 2, Failed: 1}, res)
}

func TestRunOnce_ProcessesEveryPage(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	// 同一时间提交，分页依赖 id 作为第二排序键
	for _, id := range []string{"a1", "a2", "a3", "a4", "a5"} {
		seedPending(t, store, id, t0)
	}
	s := newTestSweeper(t, store, nil, nil)
	s.config.BatchSize = 2

	res, err := s.RunOnce(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{Approved: 5}, res)

	pending, err := store.ListArtisans(ctx, storage.ArtisanFilter{IDVerificationStatus: model.IDVerificationPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

// stuckApprover 对指定档案始终失败，并记录每个档案被尝试的次数
type stuckApprover struct {
	inner    Approver
	fail     map[string]bool
	attempts map[string]int
}

func (a *stuckApprover) AutoApprove(ctx context.Context, snapshot *model.ArtisanProfile, now time.Time, timeout time.Duration) (*model.ArtisanProfile, error) {
	a.attempts[snapshot.ID]++
	if a.fail[snapshot.ID] {
		return nil, errors.New("database is locked")
	}
	return a.inner.AutoApprove(ctx, snapshot, now, timeout)
}

func TestRunOnce_FailingProfilesDoNotStarveLaterOnes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedPending(t, store, "a", t0)
	seedPending(t, store, "b", t0.Add(time.Second))
	seedPending(t, store, "c", t0.Add(2*time.Second))

	approver := &stuckApprover{
		inner:    verification.NewService(store, nil, verification.NewMachine(true)),
		fail:     map[string]bool{"a": true, "b": true},
		attempts: map[string]int{},
	}
	s := newTestSweeper(t, store, approver, nil)
	s.config.BatchSize = 2

	res, err := s.RunOnce(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Result{Approved: 1, Failed: 2}, res)
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, approver.attempts)

	c, err := store.GetArtisan(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, model.IDVerificationConfirmed, c.IDVerificationStatus)
}

func TestStartStop(t *testing.T) {
	store := newTestStore(t)
	// 提交时间足够早，首次 tick 即可通过
	seedPending(t, store, "a1", time.Now().UTC().Add(-time.Hour))
	s := newTestSweeper(t, store, nil, nil)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		p, err := store.GetArtisan(context.Background(), "a1")
		return err == nil && p.IDVerificationStatus == model.IDVerificationConfirmed
	}, 2*time.Second, 10*time.Millisecond)

	s.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
