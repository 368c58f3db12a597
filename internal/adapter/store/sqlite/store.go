// Package sqlite 是基于 modernc.org/sqlite 的目录存储实现。
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store 同时实现 port.Catalog、port.PluginAdminStore、port.SiteStore 与 port.EventRecorder
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open 打开 (或创建) 数据库文件并执行表结构初始化
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_time_format=sqlite", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开/创建数据库 '%s' 失败: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库 '%s' (Ping) 失败: %w", path, err)
	}
	if err := InitPlatformTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New 用已有连接构造 Store，不做表结构初始化
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// WithClock 替换时间源，仅用于测试
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// isUniqueViolation 判断错误是否来自唯一性约束
func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// 未开启扩展错误码时只能依据消息判断
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}

func nullableInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
