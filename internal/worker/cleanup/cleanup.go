// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// 最終アクセスからSESSION_MAX_AGEを超えたセッションをメモリ上のストアから取り除き、
// 実行中の分析タスクをキャンセルする。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper は期限切れセッションの削除を抽象化するインターフェース。
// *session.Store が実装する。
type SessionSweeper interface {
	DeleteExpired() int
	Count() int
}

// ActiveSessionsRecorder は保持セッション数を記録するインターフェース。
type ActiveSessionsRecorder interface {
	SetActiveSessions(count int)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 何度実行しても結果が変わらない冪等な処理として設計されている。
type CleanupJob struct {
	store   SessionSweeper
	metrics ActiveSessionsRecorder
	logger  *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
// metricsがnilの場合はセッション数を記録しない。
func NewCleanupJob(store SessionSweeper, metrics ActiveSessionsRecorder, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

// Run は期限切れセッションを削除し、削除件数と残りのセッション数を返す。
// ctxが既に終了している場合は何もせずctx.Err()を返す。
func (j *CleanupJob) Run(ctx context.Context) (deleted int, err error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	start := time.Now()

	deleted = j.store.DeleteExpired()
	remaining := j.store.Count()
	if j.metrics != nil {
		j.metrics.SetActiveSessions(remaining)
	}

	level := slog.LevelDebug
	if deleted > 0 {
		level = slog.LevelInfo
	}
	j.logger.Log(ctx, level, "セッションクリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("active_sessions", remaining),
		slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
	)

	return deleted, nil
}

// Start は起動直後に1回実行し、その後intervalごとにRunを呼び出す。
// ctxが終了するまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
