package models

import (
	"time"

	"gorm.io/gorm"
)

type MemberRole string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
)

// Member is the club-platform identity a test attempt belongs to. Identity
// resolution itself lives in the session token; this row is local profile
// data for rosters and exports.
type Member struct {
	ID       string     `json:"id" gorm:"primaryKey;size:255"`
	FullName string     `json:"full_name" gorm:"not null;size:100"`
	Email    string     `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role     MemberRole `json:"role" gorm:"default:member;size:20"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (m *Member) IsAdmin() bool {
	return m.Role == RoleAdmin
}

func (Member) TableName() string {
	return "members"
}
