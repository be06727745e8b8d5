package session

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/fitfolio/internal/flow"
)

// AnalysisObserver は分析タスクの進行通知を受け取る。
type AnalysisObserver interface {
	// OnStep は分析ステップが進むたびに呼ばれる。
	OnStep(sessionID string, p flow.Progress)
	// OnFinish はタスク終了時に1回だけ呼ばれる。正常完了時のerrはnil。
	OnFinish(sessionID string, err error, elapsed time.Duration)
}

// Entry は1セッション分のControllerとその排他制御を保持する。
type Entry struct {
	id string

	mu         sync.Mutex
	ctrl       *flow.Controller
	lastAccess time.Time

	parent  context.Context
	cancel  context.CancelFunc
	running bool
}

// ID はセッションIDを返す。
func (e *Entry) ID() string {
	return e.id
}

// Do はロックを取得してfnにControllerを渡す。fnの戻り値をそのまま返す。
func (e *Entry) Do(fn func(c *flow.Controller) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.ctrl)
}

// View はロックを取得して読み取り専用の処理を行う。
func (e *Entry) View(fn func(c *flow.Controller)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.ctrl)
}

// AdvanceAnalysis はロックを取得して分析シーケンスを1ステップ進める。
// flow.Stepperを実装する。
func (e *Entry) AdvanceAnalysis() (flow.Progress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctrl.AdvanceAnalysis()
}

// AnalysisRunning は分析タスクが実行中かどうかを返す。
func (e *Entry) AnalysisRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// StartAnalysis はバックグラウンドで分析タスクを開始する。
// 既に実行中の場合は何もせずfalseを返す。
// 返されるチャネルにはタスクの終了結果が1回だけ送られる。
func (e *Entry) StartAnalysis(runner *flow.Runner, obs AnalysisObserver) (<-chan error, bool) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, false
	}
	ctx, cancel := context.WithCancel(e.parent)
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		start := time.Now()
		var observe func(flow.Progress)
		if obs != nil {
			observe = func(p flow.Progress) { obs.OnStep(e.id, p) }
		}

		err := runner.Run(ctx, e, observe)

		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
		cancel()

		if obs != nil {
			obs.OnFinish(e.id, err, time.Since(start))
		}
		done <- err
	}()

	return done, true
}

// stopAnalysis は実行中の分析タスクをキャンセルする。
func (e *Entry) stopAnalysis() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (e *Entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastAccess = now
	e.mu.Unlock()
}

func (e *Entry) expired(now time.Time, ttl time.Duration) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return now.Sub(e.lastAccess) > ttl
}
