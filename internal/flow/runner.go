package flow

import (
	"context"
	"time"
)

// DefaultStepDelay は分析ステップ間の既定の間隔。
const DefaultStepDelay = 1500 * time.Millisecond

// Stepper は分析シーケンスを1ステップずつ進める対象。
// *Controller および排他制御付きのセッションエントリが実装する。
type Stepper interface {
	AdvanceAnalysis() (Progress, error)
}

// Runner は一定間隔でStepperを進める時限タスク。
type Runner struct {
	delay time.Duration
}

// NewRunner はRunnerを生成する。delayが0以下の場合はDefaultStepDelayを使用する。
func NewRunner(delay time.Duration) *Runner {
	if delay <= 0 {
		delay = DefaultStepDelay
	}
	return &Runner{delay: delay}
}

// Delay はステップ間の間隔を返す。
func (r *Runner) Delay() time.Duration {
	return r.delay
}

// Run は開始直後に1ステップ進め、以降は間隔ごとに1ステップずつ進める。
// 各ステップでobserveを呼び出し、最終ステップで nil を返す。
// ctxがキャンセルされた場合はctx.Err()を返し、シーケンスは途中の位置のまま残る。
func (r *Runner) Run(ctx context.Context, s Stepper, observe func(Progress)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ticker := time.NewTicker(r.delay)
	defer ticker.Stop()

	for {
		p, err := s.AdvanceAnalysis()
		if err != nil {
			return err
		}
		if observe != nil {
			observe(p)
		}
		if p.Final() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
