// Package store is the gorm-backed room metadata and chat history store.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/StudyRoom/internal/core"
	"github.com/dkeye/StudyRoom/internal/domain"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	ErrRoomNotFound = core.ErrRoomNotFound
	ErrForbidden    = core.ErrForbidden
)

const DefaultRecentMessages = 100

type Options struct {
	// AutoCreateRooms creates a missing room row on first join instead of
	// failing with ErrRoomNotFound.
	AutoCreateRooms bool
	RecentMessages  int
}

type Store struct {
	db   *gorm.DB
	opts Options
}

// Open connects to the sqlite database at path and migrates the schema.
func Open(path string, opts Options) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite has a single writer.
	sqlDB.SetMaxOpenConns(1)
	return New(db, opts)
}

func New(db *gorm.DB, opts Options) (*Store, error) {
	if err := db.AutoMigrate(&Room{}, &RoomMember{}, &Message{}, &Pomodoro{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if opts.RecentMessages <= 0 {
		opts.RecentMessages = DefaultRecentMessages
	}
	return &Store{db: db, opts: opts}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRoom registers room metadata. The tokengen room commands call it
// when auto_create_rooms is off.
func (s *Store) CreateRoom(ctx context.Context, roomID domain.RoomID, name, ownerID string) error {
	room := &Room{RoomID: string(roomID), Name: name, OwnerID: ownerID}
	if err := s.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (s *Store) findRoom(ctx context.Context, roomID domain.RoomID) (*Room, error) {
	var room Room
	if err := s.db.WithContext(ctx).First(&room, "room_id = ?", string(roomID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// JoinMembership records that userID belongs to roomID. Repeated joins are idempotent.
func (s *Store) JoinMembership(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	if _, err := s.findRoom(ctx, roomID); err != nil {
		if !errors.Is(err, ErrRoomNotFound) || !s.opts.AutoCreateRooms {
			return err
		}
		room := &Room{RoomID: string(roomID), Name: string(roomID), OwnerID: string(userID)}
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(room).Error; err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
	}
	member := &RoomMember{RoomID: string(roomID), UserID: string(userID)}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(member).Error; err != nil {
		return fmt.Errorf("failed to join room: %w", err)
	}
	return nil
}

// RoomSnapshot loads members, the latest messages (oldest first) and the
// stored countdown snapshot.
func (s *Store) RoomSnapshot(ctx context.Context, roomID domain.RoomID) (*domain.RoomSnapshot, error) {
	if _, err := s.findRoom(ctx, roomID); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)

	var members []RoomMember
	if err := db.Where("room_id = ?", string(roomID)).Order("joined_at asc").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}

	var messages []Message
	if err := db.Where("room_id = ?", string(roomID)).
		Order("created_at desc").
		Limit(s.opts.RecentMessages).
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	snap := &domain.RoomSnapshot{
		Members:  make([]domain.MemberRecord, 0, len(members)),
		Messages: make([]domain.ChatMessage, 0, len(messages)),
	}
	for _, m := range members {
		snap.Members = append(snap.Members, domain.MemberRecord{UserID: domain.UserID(m.UserID), JoinedAt: m.JoinedAt})
	}
	for i := len(messages) - 1; i >= 0; i-- {
		snap.Messages = append(snap.Messages, toChatMessage(messages[i]))
	}

	var p Pomodoro
	err := db.First(&p, "room_id = ?", string(roomID)).Error
	switch {
	case err == nil:
		snap.Pomodoro = &domain.Pomodoro{Running: p.Running, Mode: p.Mode, Total: p.Total, Remaining: p.Remaining}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("failed to load pomodoro: %w", err)
	}
	return snap, nil
}

// SaveMessage stores a chat message and returns it with its id and timestamp.
func (s *Store) SaveMessage(ctx context.Context, roomID domain.RoomID, senderID domain.UserID, senderName, text string) (*domain.ChatMessage, error) {
	msg := &Message{
		ID:         uuid.NewString(),
		RoomID:     string(roomID),
		SenderID:   string(senderID),
		SenderName: senderName,
		Text:       text,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	out := toChatMessage(*msg)
	return &out, nil
}

// SavePomodoro upserts the room's countdown snapshot.
func (s *Store) SavePomodoro(ctx context.Context, roomID domain.RoomID, p domain.Pomodoro) error {
	row := &Pomodoro{
		RoomID:    string(roomID),
		Running:   p.Running,
		Mode:      p.Mode,
		Total:     p.Total,
		Remaining: p.Remaining,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "room_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"running", "mode", "total", "remaining", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save pomodoro: %w", err)
	}
	return nil
}

// DeleteRoom removes a room and everything attached to it. Only the owner may.
func (s *Store) DeleteRoom(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	room, err := s.findRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if room.OwnerID != string(userID) {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id := string(roomID)
		for _, model := range []any{&RoomMember{}, &Message{}, &Pomodoro{}} {
			if err := tx.Where("room_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete room data: %w", err)
			}
		}
		if err := tx.Delete(&Room{}, room.ID).Error; err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}
		return nil
	})
}

func toChatMessage(m Message) domain.ChatMessage {
	return domain.ChatMessage{
		ID:         m.ID,
		RoomID:     domain.RoomID(m.RoomID),
		SenderID:   domain.UserID(m.SenderID),
		SenderName: m.SenderName,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
}
