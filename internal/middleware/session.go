// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/fitfolio/internal/session"
)

const sessionCookieName = "fitfolio_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionStore はセッションの検索と作成に必要なインターフェース。
// session.Storeの部分集合として定義する。
type SessionStore interface {
	FindByID(id string) (*session.Entry, bool)
	Create() (*session.Entry, error)
}

// SessionCookieConfig はセッションCookieの属性。
type SessionCookieConfig struct {
	MaxAge       int
	CookieSecure bool
	CookieDomain string
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、または期限切れの場合は新しいセッションを作成してCookieを発行する。
func NewSessionMiddleware(store SessionStore, config SessionCookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. CookieからセッションIDを取得
			var entry *session.Entry
			if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
				entry, _ = store.FindByID(cookie.Value)
			}

			// 2. 見つからなければ新規作成
			if entry == nil {
				created, err := store.Create()
				if err != nil {
					slog.Error("failed to create session",
						slog.String("error", err.Error()),
					)
					WriteInternalServerError(w)
					return
				}
				entry = created
				slog.Debug("session created", slog.String("session_id", entry.ID()))
			}

			// 3. アクセスのたびに有効期限を延長する
			http.SetCookie(w, &http.Cookie{
				Name:     sessionCookieName,
				Value:    entry.ID(),
				Path:     "/",
				Domain:   config.CookieDomain,
				MaxAge:   config.MaxAge,
				HttpOnly: true,
				Secure:   config.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})

			// 4. セッションをコンテキストに注入
			ctx := context.WithValue(r.Context(), sessionContextKey, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*session.Entry, error) {
	entry, ok := ctx.Value(sessionContextKey).(*session.Entry)
	if !ok || entry == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return entry, nil
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
func SessionIDFromContext(ctx context.Context) (string, error) {
	entry, err := SessionFromContext(ctx)
	if err != nil {
		return "", err
	}
	return entry.ID(), nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, entry *session.Entry) context.Context {
	return context.WithValue(ctx, sessionContextKey, entry)
}
