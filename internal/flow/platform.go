package flow

import "sort"

// Platform は連携対象の外部データソースの識別子。
// 値は固定の閉じた集合に限られる。
type Platform string

const (
	PlatformGitHub   Platform = "github"
	PlatformLinkedIn Platform = "linkedin"
	PlatformTistory  Platform = "tistory"
	PlatformBehance  Platform = "behance"
)

var platforms = []Platform{PlatformGitHub, PlatformLinkedIn, PlatformTistory, PlatformBehance}

// Platforms は連携可能な全プラットフォームを画面表示順で返す。
func Platforms() []Platform {
	out := make([]Platform, len(platforms))
	copy(out, platforms)
	return out
}

// Valid はプラットフォームが既知の集合に含まれるかを判定する。
func (p Platform) Valid() bool {
	for _, known := range platforms {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlatform は文字列をプラットフォームに変換する。
// 未知の値にはErrInvalidPlatformをラップしたエラーを返す。
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", &PlatformError{Value: s}
	}
	return p, nil
}

// sortedPlatforms は集合をソート済みスライスに変換する。
func sortedPlatforms(set map[Platform]struct{}) []Platform {
	out := make([]Platform, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
