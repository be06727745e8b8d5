// Package session はブラウザセッションごとのフロー状態をメモリ上で管理する。
//
// 各セッションは1つのflow.Controllerを所有し、Entryのミューテックスで
// HTTPハンドラーと分析タスクからのアクセスを直列化する。
// 永続化は行わない。プロセス終了または有効期限切れで状態は破棄される。
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/fitfolio/internal/flow"
)

// Config はStoreの設定を保持する。
type Config struct {
	// TTL は最終アクセスからセッションが失効するまでの時間。
	TTL time.Duration
	// Now は現在時刻の取得関数。nilの場合はtime.Now。
	Now func() time.Time
	// ControllerOptions は新規セッションのControllerに渡すオプション。
	ControllerOptions []flow.Option
}

// DefaultTTL はセッションの既定の有効期間。
const DefaultTTL = time.Hour

// Store はセッションIDをキーにEntryを保持するインメモリストア。
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	ttl      time.Duration
	now      func() time.Time
	ctrlOpts []flow.Option

	// ctx はストア配下で動く分析タスクの親コンテキスト。
	ctx    context.Context
	cancel context.CancelFunc
}

// NewStore は新しいStoreを生成する。
func NewStore(cfg Config) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		entries:  make(map[string]*Entry),
		ttl:      cfg.TTL,
		now:      cfg.Now,
		ctrlOpts: cfg.ControllerOptions,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Create は初期状態のセッションを作成して登録する。
func (s *Store) Create() (*Entry, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session id: %w", err)
	}

	e := &Entry{
		id:         id.String(),
		ctrl:       flow.NewController(s.ctrlOpts...),
		lastAccess: s.now(),
		parent:     s.ctx,
	}

	s.mu.Lock()
	s.entries[e.id] = e
	s.mu.Unlock()

	return e, nil
}

// FindByID は指定IDのセッションを取得し、最終アクセス時刻を更新する。
// 存在しないまたは期限切れの場合はfalseを返す。
func (s *Store) FindByID(id string) (*Entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := s.now()
	if e.expired(now, s.ttl) {
		return nil, false
	}
	e.touch(now)
	return e, true
}

// DeleteByID は指定IDのセッションを削除し、実行中の分析タスクを停止する。
func (s *Store) DeleteByID(id string) {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()

	if ok {
		e.stopAnalysis()
	}
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (s *Store) DeleteExpired() int {
	now := s.now()

	var removed []*Entry
	s.mu.Lock()
	for id, e := range s.entries {
		if e.expired(now, s.ttl) {
			delete(s.entries, id)
			removed = append(removed, e)
		}
	}
	s.mu.Unlock()

	for _, e := range removed {
		e.stopAnalysis()
	}
	return len(removed)
}

// Count は保持しているセッション数を返す。
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// TTL はセッションの有効期間を返す。
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Close は全ての分析タスクを停止する。Close後もセッションの参照は可能。
func (s *Store) Close() {
	s.cancel()
}
