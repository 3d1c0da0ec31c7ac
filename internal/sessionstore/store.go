// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package sessionstore persists a per-session lifecycle audit trail. Rows
// are never deleted while a session is alive; they only transition through
// statuses (created → attached → playing → stopped/failed), so a
// supervising process can inspect what a session was doing after a crash.
// Live playback state never lives here; that is PlayerContext's, mutated
// only by the Worker.
package sessionstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rapidaai/rialto/pkg/commons"
)

// Session statuses.
const (
	StatusCreated  = "created"
	StatusAttached = "attached"
	StatusPlaying  = "playing"
	StatusStopped  = "stopped"
	StatusFailed   = "failed"
)

// Session kinds.
const (
	KindGeneric  = "generic"
	KindWebAudio = "webaudio"
)

// Session is one audit row.
type Session struct {
	SessionID   string `gorm:"primaryKey;column:session_id"`
	Kind        string `gorm:"column:kind"`
	Status      string `gorm:"column:status"`
	MaxWidth    int    `gorm:"column:max_width"`
	MaxHeight   int    `gorm:"column:max_height"`
	Detail      string `gorm:"column:detail"`
	CreatedDate time.Time `gorm:"column:created_date"`
	UpdatedDate time.Time `gorm:"column:updated_date"`
}

// TableName pins the table name independent of gorm's pluralization.
func (Session) TableName() string { return "sessions" }

// Store records session lifecycle transitions.
type Store interface {
	// Save inserts the audit row for a freshly created session.
	Save(ctx context.Context, s *Session) error

	// Get retrieves a session row regardless of its current status.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// List returns every session row, newest first.
	List(ctx context.Context) ([]Session, error)

	// UpdateStatus transitions a session's status, stamping UpdatedDate.
	UpdateStatus(ctx context.Context, sessionID, status, detail string) error
}

type sqliteStore struct {
	db     *gorm.DB
	logger commons.Logger
}

// Open connects to the sqlite-backed store at dsn and migrates the schema.
func Open(dsn string, log commons.Logger) (Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sessionstore: open %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Session{}); err != nil {
		return nil, fmt.Errorf("sessionstore: migrate: %w", err)
	}
	return NewWithDB(db, log), nil
}

// NewWithDB wraps an already opened gorm handle, for tests that inject a
// mocked connection.
func NewWithDB(db *gorm.DB, log commons.Logger) Store {
	if log == nil {
		log = commons.NewNoopLogger()
	}
	return &sqliteStore{db: db, logger: log}
}

func (s *sqliteStore) Save(ctx context.Context, sess *Session) error {
	if sess.Status == "" {
		sess.Status = StatusCreated
	}
	now := time.Now()
	if sess.CreatedDate.IsZero() {
		sess.CreatedDate = now
	}
	sess.UpdatedDate = now

	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.SessionID, err)
	}
	s.logger.Infof("saved session audit row: sessionId=%s, kind=%s, status=%s", sess.SessionID, sess.Kind, sess.Status)
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&sess).Error; err != nil {
		return nil, fmt.Errorf("session not found: %s: %w", sessionID, err)
	}
	return &sess, nil
}

func (s *sqliteStore) List(ctx context.Context) ([]Session, error) {
	var sessions []Session
	if err := s.db.WithContext(ctx).Order("created_date desc").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, sessionID, status, detail string) error {
	result := s.db.WithContext(ctx).Model(&Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"status":       status,
			"detail":       detail,
			"updated_date": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update session %s to %s: %w", sessionID, status, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// Noop is a Store that records nothing, for wiring the session registry in
// tests and in deployments that disable the audit trail.
type Noop struct{}

func (Noop) Save(context.Context, *Session) error                  { return nil }
func (Noop) Get(context.Context, string) (*Session, error)         { return nil, gorm.ErrRecordNotFound }
func (Noop) List(context.Context) ([]Session, error)               { return nil, nil }
func (Noop) UpdateStatus(context.Context, string, string, string) error { return nil }

var (
	_ Store = (*sqliteStore)(nil)
	_ Store = Noop{}
)
