package model

import (
	"fmt"

	"github.com/hitoshi/fitfolio/internal/flow"
)

// PlatformInfo は連携画面に表示するプラットフォームの情報。
type PlatformInfo struct {
	ID          flow.Platform
	Name        string
	Description string
	IconURL     string
}

// Project はポートフォリオに載せるプロジェクト。
type Project struct {
	Title       string
	Description string
}

// Profile はデモ用の利用者プロフィール。
type Profile struct {
	Skills   []string
	Projects []Project
}

// Catalog は画面描画に使う静的な参照データ一式。
// Controllerは参照せず、プレゼンテーション層にのみ注入する。
type Catalog struct {
	Platforms         []PlatformInfo
	Profile           Profile
	HighlightedSkills []string
	// KeyThemes は分析結果で強調するキーワード。
	KeyThemes []string
}

// DefaultCatalog はデモ用の参照データを返す。
func DefaultCatalog() Catalog {
	return Catalog{
		Platforms: []PlatformInfo{
			{ID: flow.PlatformGitHub, Name: "GitHub", Description: "프로젝트와 코드를 가져옵니다.", IconURL: "https://simpleicons.org/icons/github.svg"},
			{ID: flow.PlatformLinkedIn, Name: "LinkedIn", Description: "경력과 학력을 가져옵니다.", IconURL: "https://simpleicons.org/icons/linkedin.svg"},
			{ID: flow.PlatformTistory, Name: "블로그 (Tistory)", Description: "작성한 글과 전문성을 가져옵니다.", IconURL: "https://simpleicons.org/icons/tistory.svg"},
			{ID: flow.PlatformBehance, Name: "Behance", Description: "디자인 작업물을 가져옵니다.", IconURL: "https://simpleicons.org/icons/behance.svg"},
		},
		Profile: Profile{
			Skills: []string{"Python", "PyTorch", "TensorFlow", "LLM", "On-Device AI", "React", "Data Analysis"},
			Projects: []Project{
				{
					Title:       "모바일 기기용 이미지 분류 모델 경량화",
					Description: "TensorFlow Lite를 사용하여 CNN 모델의 크기를 줄이고, 모바일 환경에서의 추론 속도를 30% 개선한 프로젝트입니다.",
				},
				{
					Title:       "소셜 미디어 감성 분석 모델",
					Description: "LSTM 기반의 딥러닝 모델을 사용하여 소셜 미디어 텍스트의 긍정/부정을 분류하는 프로젝트를 진행했습니다.",
				},
			},
		},
		HighlightedSkills: []string{"On-Device AI", "LLM", "PyTorch"},
		KeyThemes:         []string{"LLM 경량화", "온디바이스 AI"},
	}
}

// IsHighlighted はスキルが強調対象かどうかを返す。
func (c Catalog) IsHighlighted(skill string) bool {
	for _, s := range c.HighlightedSkills {
		if s == skill {
			return true
		}
	}
	return false
}

// PlatformByID はIDに対応するプラットフォーム情報を返す。
func (c Catalog) PlatformByID(id flow.Platform) (PlatformInfo, bool) {
	for _, p := range c.Platforms {
		if p.ID == id {
			return p, true
		}
	}
	return PlatformInfo{}, false
}

// AIRewrite はプロジェクト説明の「AI Rewrite」段落を生成する。
func (c Catalog) AIRewrite(company string) string {
	return fmt.Sprintf("'%s'가 최근 집중하고 있는 '온디바이스 AI' 전략에 맞춰, "+
		"TensorFlow Lite 기반 모델 경량화 경험을 강조했습니다. "+
		"이를 통해 제한된 하드웨어 환경에서의 효율적인 AI 모델 배포 및 운영 능력을 어필할 수 있습니다.", company)
}
