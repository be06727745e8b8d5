package flow

import "fmt"

// Script は志望企業と職種から分析中に表示するメッセージ列を生成する。
type Script func(company, job string) []string

// DefaultScript は5段階の分析メッセージを返す。
func DefaultScript(company, job string) []string {
	return []string{
		fmt.Sprintf("'%s'의 최신 기술 동향을 분석 중입니다...", company),
		"채용 공고의 핵심 요구 역량을 추출하고 있습니다...",
		fmt.Sprintf("'%s' 직무와 회원님의 경험 데이터 매칭 중...", job),
		"프로젝트 설명을 AI가 재구성하는 중...",
		"맞춤 포트폴리오 생성 완료!",
	}
}

// Progress は分析シーケンスの1ステップ。
// Fractionは Step/Total で、最終ステップで1.0になる。
type Progress struct {
	Step     int
	Total    int
	Fraction float64
	Message  string
}

// Final は最終ステップかどうかを返す。
func (p Progress) Final() bool {
	return p.Total > 0 && p.Step == p.Total
}

// Percent は進捗率を0〜100の整数で返す。
func (p Progress) Percent() int {
	return int(p.Fraction*100 + 0.5)
}

// Sequence は分析メッセージを1ステップずつ取り出す有限のジェネレータ。
// 巻き戻しはできない。新しい分析を始める場合は新しいSequenceを生成する。
type Sequence struct {
	messages []string
	next     int
}

// NewSequence はメッセージ列からSequenceを生成する。
func NewSequence(messages []string) *Sequence {
	m := make([]string, len(messages))
	copy(m, messages)
	return &Sequence{messages: m}
}

// Next は次のステップを返す。全ステップを返し終えた後はfalseを返す。
func (s *Sequence) Next() (Progress, bool) {
	if s.next >= len(s.messages) {
		return Progress{}, false
	}
	s.next++
	return s.at(s.next), true
}

// Latest は直近に返したステップを返す。まだ1つも返していない場合はfalse。
func (s *Sequence) Latest() (Progress, bool) {
	if s.next == 0 {
		return Progress{}, false
	}
	return s.at(s.next), true
}

// Len はステップ数を返す。
func (s *Sequence) Len() int {
	return len(s.messages)
}

// Done は全ステップを返し終えたかどうかを返す。
func (s *Sequence) Done() bool {
	return s.next >= len(s.messages)
}

func (s *Sequence) at(step int) Progress {
	total := len(s.messages)
	return Progress{
		Step:     step,
		Total:    total,
		Fraction: float64(step) / float64(total),
		Message:  s.messages[step-1],
	}
}
