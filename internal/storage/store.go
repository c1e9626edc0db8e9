// Package storage 记录认证尝试的事件历史，默认使用内存 SQLite，不跨进程保留。
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	logger2 "cdpoauth/internal/logger"
	"cdpoauth/pkg/domain"
)

// Attempt 单条认证事件记录，URL 不含查询串
type Attempt struct {
	ID        uint   `gorm:"primaryKey"`
	SessionID string `gorm:"index;size:64"`
	Type      string `gorm:"size:32"`
	URL       string
	Message   string
	Loading   bool
	At        int64 `gorm:"index"`
	CreatedAt time.Time
}

// Store 认证历史存储
type Store struct {
	db *gorm.DB
}

// Open 打开数据库并迁移表结构，prefix 为表名前缀
func Open(dsn, prefix string, l logger2.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l, logger.Warn),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&Attempt{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Record 写入一条事件
func (s *Store) Record(ctx context.Context, ev domain.Event) error {
	a := Attempt{
		SessionID: string(ev.Session),
		Type:      ev.Type,
		URL:       ev.URL,
		Message:   ev.Message,
		Loading:   ev.Loading,
		At:        ev.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// List 按写入顺序返回会话的事件
func (s *Store) List(ctx context.Context, id domain.SessionID) ([]domain.Event, error) {
	var rows []Attempt
	err := s.db.WithContext(ctx).
		Where("session_id = ?", string(id)).
		Order("id asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]domain.Event, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Event{
			Type:      r.Type,
			Session:   domain.SessionID(r.SessionID),
			URL:       r.URL,
			Message:   r.Message,
			Loading:   r.Loading,
			Timestamp: r.At,
		})
	}
	return out, nil
}

// Purge 删除会话的全部记录
func (s *Store) Purge(ctx context.Context, id domain.SessionID) error {
	return s.db.WithContext(ctx).Where("session_id = ?", string(id)).Delete(&Attempt{}).Error
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
