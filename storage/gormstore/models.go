package gormstore

import "time"

type rsvpRow struct {
	Email        string `gorm:"primaryKey;size:254"`
	Status       string `gorm:"size:16;not null"`
	DietaryNotes string `gorm:"type:text"`
	SongRequest  string `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (rsvpRow) TableName() string { return "rsvps" }

type guestRow struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;size:254;not null"`
	FirstName string `gorm:"size:128"`
	LastName  string `gorm:"size:128"`
	CreatedAt time.Time
}

func (guestRow) TableName() string { return "guests" }

type activityRow struct {
	ID        uint              `gorm:"primaryKey"`
	Email     string            `gorm:"index;size:254"`
	Kind      string            `gorm:"index;size:32;not null"`
	IP        string            `gorm:"size:64"`
	Meta      map[string]string `gorm:"type:text;serializer:json"`
	CreatedAt time.Time
}

func (activityRow) TableName() string { return "user_activity" }
