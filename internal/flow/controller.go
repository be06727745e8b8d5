package flow

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Session は1セッション分のフロー状態。
type Session struct {
	Page               Page
	ConnectedPlatforms map[Platform]struct{}
	Company            string
	Job                string
}

// NewSession は初期状態のSessionを返す。
func NewSession() Session {
	return Session{
		Page:               PageLanding,
		ConnectedPlatforms: make(map[Platform]struct{}),
	}
}

// clone は連携済み集合を含めてコピーする。
func (s Session) clone() Session {
	out := s
	out.ConnectedPlatforms = make(map[Platform]struct{}, len(s.ConnectedPlatforms))
	for p := range s.ConnectedPlatforms {
		out.ConnectedPlatforms[p] = struct{}{}
	}
	return out
}

// candidateInfo は入力画面のフォーム値の検証ルール。
type candidateInfo struct {
	Company string `validate:"required"`
	Job     string `validate:"required"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// edge は遷移表の1行を表す。
type edge struct {
	from Page
	to   Page
}

// guard は遷移の前提条件。満たさない場合はエラーを返す。
type guard func(c *Controller) error

// transitions は利用者の操作で要求できる遷移の表。
// analysis -> result は分析シーケンス完了時にのみ自動で発火するため含めない。
var transitions = map[edge]guard{
	{PageLanding, PageConnect}: nil,
	{PageConnect, PageInput}: func(c *Controller) error {
		if len(c.session.ConnectedPlatforms) == 0 {
			return &TransitionError{From: PageConnect, To: PageInput, Reason: "no platform connected"}
		}
		return nil
	},
	{PageInput, PageAnalysis}: func(c *Controller) error {
		return checkCandidateInfo(c.session.Company, c.session.Job)
	},
	{PageResult, PageLanding}: nil,
}

// Option はControllerの設定を変更する。
type Option func(*Controller)

// WithScript は分析メッセージの生成関数を差し替える。
func WithScript(script Script) Option {
	return func(c *Controller) {
		if script != nil {
			c.script = script
		}
	}
}

// Controller は1セッションの画面遷移を管理する。
type Controller struct {
	session  Session
	script   Script
	analysis *Sequence
}

// NewController は初期状態（landing）のControllerを生成する。
func NewController(opts ...Option) *Controller {
	c := &Controller{
		session: NewSession(),
		script:  DefaultScript,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConnectPlatform はプラットフォームを連携済みにする。
// 連携済みのプラットフォームを再度渡しても成功する。
func (c *Controller) ConnectPlatform(p Platform) error {
	if !p.Valid() {
		return &PlatformError{Value: string(p)}
	}
	c.session.ConnectedPlatforms[p] = struct{}{}
	return nil
}

// SetCandidateInfo は前後の空白を除いた志望企業と職種を保存する。
// いずれかが空の場合はFieldErrorを返し、保存済みの値は変更しない。
func (c *Controller) SetCandidateInfo(company, job string) error {
	company = strings.TrimSpace(company)
	job = strings.TrimSpace(job)
	if err := checkCandidateInfo(company, job); err != nil {
		return err
	}
	c.session.Company = company
	c.session.Job = job
	return nil
}

// SubmitCandidateInfo は志望企業と職種を保存して input -> analysis へ遷移する。
// 入力フォームの送信1回に相当し、保存と遷移のいずれかが失敗した場合は状態を一切変更しない。
func (c *Controller) SubmitCandidateInfo(company, job string) error {
	prevCompany, prevJob := c.session.Company, c.session.Job
	if err := c.SetCandidateInfo(company, job); err != nil {
		return err
	}
	if err := c.RequestTransition(PageAnalysis); err != nil {
		c.session.Company, c.session.Job = prevCompany, prevJob
		return err
	}
	return nil
}

// Allowed は現在の画面からtargetへの遷移が可能かを状態を変えずに判定する。
func (c *Controller) Allowed(target Page) error {
	from := c.session.Page
	if !target.Valid() {
		return &TransitionError{From: from, To: target, Reason: "unknown page"}
	}
	g, ok := transitions[edge{from, target}]
	if !ok {
		return &TransitionError{From: from, To: target, Reason: "edge not allowed"}
	}
	if g != nil {
		return g(c)
	}
	return nil
}

// RequestTransition はtargetへの遷移を要求する。
// 失敗した場合は状態を一切変更しない。
// result -> landing はReset を伴う。input -> analysis では新しい分析シーケンスを生成する。
func (c *Controller) RequestTransition(target Page) error {
	if err := c.Allowed(target); err != nil {
		return err
	}

	switch target {
	case PageLanding:
		c.Reset()
		return nil
	case PageAnalysis:
		messages := c.script(c.session.Company, c.session.Job)
		if len(messages) == 0 {
			messages = DefaultScript(c.session.Company, c.session.Job)
		}
		c.analysis = NewSequence(messages)
	}

	c.session.Page = target
	return nil
}

// AdvanceAnalysis は分析シーケンスを1ステップ進める。
// 最終ステップを返すと同時に analysis -> result へ自動遷移する。
// analysis画面以外で呼ばれた場合はTransitionErrorを返す。
func (c *Controller) AdvanceAnalysis() (Progress, error) {
	if c.session.Page != PageAnalysis || c.analysis == nil {
		return Progress{}, &TransitionError{From: c.session.Page, To: PageResult, Reason: "analysis is not running"}
	}

	p, ok := c.analysis.Next()
	if !ok {
		// 最終ステップで遷移済みのため通常は到達しない
		c.session.Page = PageResult
		return Progress{}, &TransitionError{From: PageAnalysis, To: PageResult, Reason: "analysis already completed"}
	}
	if p.Final() {
		c.session.Page = PageResult
	}
	return p, nil
}

// Reset はセッションを初期状態に戻す。
func (c *Controller) Reset() {
	c.session = NewSession()
	c.analysis = nil
}

// CurrentPage は現在の画面を返す。
func (c *Controller) CurrentPage() Page {
	return c.session.Page
}

// ConnectedPlatforms は連携済みプラットフォームをソート済みで返す。
func (c *Controller) ConnectedPlatforms() []Platform {
	return sortedPlatforms(c.session.ConnectedPlatforms)
}

// IsConnected はプラットフォームが連携済みかどうかを返す。
func (c *Controller) IsConnected(p Platform) bool {
	_, ok := c.session.ConnectedPlatforms[p]
	return ok
}

// CandidateInfo は保存済みの志望企業と職種を返す。
func (c *Controller) CandidateInfo() (company, job string) {
	return c.session.Company, c.session.Job
}

// Analysis は現在の分析シーケンスを返す。analysisに入っていない場合はnil。
func (c *Controller) Analysis() *Sequence {
	return c.analysis
}

// LatestProgress は直近の分析ステップを返す。
func (c *Controller) LatestProgress() (Progress, bool) {
	if c.analysis == nil {
		return Progress{}, false
	}
	return c.analysis.Latest()
}

// Snapshot はセッション状態のコピーを返す。
func (c *Controller) Snapshot() Session {
	return c.session.clone()
}

// checkCandidateInfo は両項目が入力済みかを検証し、未入力の項目名を返す。
func checkCandidateInfo(company, job string) error {
	err := validate.Struct(candidateInfo{Company: company, Job: job})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return &FieldError{Fields: fields}
}
