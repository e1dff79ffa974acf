package store

import "time"

// Room is owned by the room metadata service; the hub only references it.
type Room struct {
	ID        uint      `gorm:"primarykey"`
	RoomID    string    `gorm:"size:64;uniqueIndex;not null"`
	Name      string    `gorm:"size:100"`
	OwnerID   string    `gorm:"size:64"`
	CreatedAt time.Time
}

func (Room) TableName() string { return "rooms" }

type RoomMember struct {
	ID       uint      `gorm:"primarykey"`
	RoomID   string    `gorm:"size:64;uniqueIndex:idx_room_user;not null"`
	UserID   string    `gorm:"size:64;uniqueIndex:idx_room_user;not null"`
	JoinedAt time.Time `gorm:"autoCreateTime"`
}

func (RoomMember) TableName() string { return "room_members" }

type Message struct {
	ID         string    `gorm:"primarykey;size:36"`
	RoomID     string    `gorm:"size:64;index;not null"`
	SenderID   string    `gorm:"size:64;not null"`
	SenderName string    `gorm:"size:64"`
	Text       string    `gorm:"size:2000;not null"`
	CreatedAt  time.Time `gorm:"index"`
}

func (Message) TableName() string { return "messages" }

type Pomodoro struct {
	RoomID    string `gorm:"primarykey;size:64"`
	Running   bool
	Mode      string `gorm:"size:16"`
	Total     int
	Remaining int
	UpdatedAt time.Time
}

func (Pomodoro) TableName() string { return "pomodoros" }
