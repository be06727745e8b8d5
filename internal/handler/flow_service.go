package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hitoshi/fitfolio/internal/flow"
	"github.com/hitoshi/fitfolio/internal/metrics"
	"github.com/hitoshi/fitfolio/internal/security"
	"github.com/hitoshi/fitfolio/internal/session"
)

// FlowService はセッション上の画面フロー操作をまとめる。
// HTML画面とJSON APIの両方から利用し、操作ごとにメトリクスとログを記録する。
// 分析タスクの進行通知を受け取るsession.AnalysisObserverも実装する。
type FlowService struct {
	runner    *flow.Runner
	sanitizer security.InputSanitizerService
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewFlowService はFlowServiceを生成する。
func NewFlowService(runner *flow.Runner, sanitizer security.InputSanitizerService, collector metrics.MetricsCollector, logger *slog.Logger) *FlowService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FlowService{
		runner:    runner,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
	}
}

// SessionState は画面描画とAPIレスポンスに使うセッションのスナップショット。
type SessionState struct {
	Page        flow.Page
	Platforms   []flow.Platform
	Company     string
	Job         string
	Progress    flow.Progress
	HasProgress bool
}

// StepDelay は分析ステップの間隔を返す。
func (s *FlowService) StepDelay() time.Duration {
	return s.runner.Delay()
}

// State は現在のセッション状態を返す。
// analysis画面で分析タスクが止まっている場合は再開する。
func (s *FlowService) State(entry *session.Entry) SessionState {
	s.ensureAnalysis(entry)

	var st SessionState
	entry.View(func(c *flow.Controller) {
		st.Page = c.CurrentPage()
		st.Platforms = c.ConnectedPlatforms()
		st.Company, st.Job = c.CandidateInfo()
		st.Progress, st.HasProgress = c.LatestProgress()
	})
	return st
}

// Connect はプラットフォームを連携済みにする。
func (s *FlowService) Connect(entry *session.Entry, raw string) error {
	p, err := flow.ParsePlatform(raw)
	if err == nil {
		err = entry.Do(func(c *flow.Controller) error {
			return c.ConnectPlatform(p)
		})
	}
	if err != nil {
		s.reject(entry.ID(), "connect", err)
		return err
	}

	s.metrics.RecordPlatformConnected(string(p))
	s.logger.Debug("platform connected",
		slog.String("session_id", entry.ID()),
		slog.String("platform", string(p)),
	)
	return nil
}

// Transition は画面遷移を要求する。analysisに入った場合は分析タスクを開始する。
func (s *FlowService) Transition(entry *session.Entry, target flow.Page) error {
	var from flow.Page
	err := entry.Do(func(c *flow.Controller) error {
		from = c.CurrentPage()
		return c.RequestTransition(target)
	})
	if err != nil {
		s.reject(entry.ID(), "transition", err)
		return err
	}

	s.transitioned(entry.ID(), from, target)
	if target == flow.PageAnalysis {
		s.ensureAnalysis(entry)
	}
	return nil
}

// SetCandidate は志望企業と職種をタグ除去したうえで保存する。
func (s *FlowService) SetCandidate(entry *session.Entry, company, job string) error {
	company = s.sanitizer.Sanitize(company)
	job = s.sanitizer.Sanitize(job)

	err := entry.Do(func(c *flow.Controller) error {
		return c.SetCandidateInfo(company, job)
	})
	if err != nil {
		s.reject(entry.ID(), "set_candidate", err)
		return err
	}
	return nil
}

// SubmitCandidate は志望企業と職種を保存してanalysisへ遷移する。
// 入力フォームの送信1回に相当し、1回のロックで保存と遷移を行う。
// どちらかが失敗した場合、セッションは送信前の状態のまま残る。
func (s *FlowService) SubmitCandidate(entry *session.Entry, company, job string) error {
	company = s.sanitizer.Sanitize(company)
	job = s.sanitizer.Sanitize(job)

	var from flow.Page
	err := entry.Do(func(c *flow.Controller) error {
		from = c.CurrentPage()
		return c.SubmitCandidateInfo(company, job)
	})
	if err != nil {
		s.reject(entry.ID(), "submit_candidate", err)
		return err
	}

	s.transitioned(entry.ID(), from, flow.PageAnalysis)
	s.ensureAnalysis(entry)
	return nil
}

// Reset はセッションを初期状態に戻す。
// 実行中の分析タスクは次のステップで遷移エラーとなり終了する。
func (s *FlowService) Reset(entry *session.Entry) {
	var from flow.Page
	_ = entry.Do(func(c *flow.Controller) error {
		from = c.CurrentPage()
		c.Reset()
		return nil
	})
	s.logger.Info("session reset",
		slog.String("session_id", entry.ID()),
		slog.String("from", string(from)),
	)
}

// OnStep は分析ステップの進行を記録する。
func (s *FlowService) OnStep(sessionID string, p flow.Progress) {
	s.logger.Debug("analysis step",
		slog.String("session_id", sessionID),
		slog.Int("step", p.Step),
		slog.Int("total", p.Total),
	)
	if p.Final() {
		s.transitioned(sessionID, flow.PageAnalysis, flow.PageResult)
	}
}

// OnFinish は分析タスクの終了を記録する。
func (s *FlowService) OnFinish(sessionID string, err error, elapsed time.Duration) {
	switch {
	case err == nil:
		s.metrics.RecordAnalysisCompleted(elapsed)
		s.logger.Info("analysis completed",
			slog.String("session_id", sessionID),
			slog.Duration("elapsed", elapsed),
		)
	case errors.Is(err, context.Canceled):
		s.logger.Info("analysis cancelled",
			slog.String("session_id", sessionID),
		)
	default:
		s.logger.Warn("analysis stopped",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

// ensureAnalysis はanalysis画面にいて分析タスクが動いていなければ開始する。
func (s *FlowService) ensureAnalysis(entry *session.Entry) {
	var inAnalysis bool
	entry.View(func(c *flow.Controller) {
		inAnalysis = c.CurrentPage() == flow.PageAnalysis
	})
	if !inAnalysis {
		return
	}
	if _, started := entry.StartAnalysis(s.runner, s); started {
		s.logger.Debug("analysis started",
			slog.String("session_id", entry.ID()),
			slog.Duration("step_delay", s.runner.Delay()),
		)
	}
}

func (s *FlowService) transitioned(sessionID string, from, to flow.Page) {
	s.metrics.RecordTransition(string(from), string(to))
	s.logger.Info("page transition",
		slog.String("session_id", sessionID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
}

// reject は拒否された操作をメトリクスとログに記録する。
func (s *FlowService) reject(sessionID, op string, err error) {
	reason := rejectionReason(err)
	s.metrics.RecordRejection(reason)
	s.logger.Debug("operation rejected",
		slog.String("session_id", sessionID),
		slog.String("operation", op),
		slog.String("reason", reason),
		slog.String("error", err.Error()),
	)
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, flow.ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, flow.ErrMissingField):
		return "missing_field"
	case errors.Is(err, flow.ErrInvalidPlatform):
		return "invalid_platform"
	default:
		return "other"
	}
}
