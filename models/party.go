// models/party.go
package models

import "time"

// InviteCodeLength is the fixed length of a party invite code.
const InviteCodeLength = 6

type Party struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"not null;size:100"`
	InviteCode string    `json:"invite_code" gorm:"uniqueIndex;not null;size:10"`
	CreatorID  uint      `json:"creator_id" gorm:"not null;index"`
	IsActive   bool      `json:"is_active" gorm:"default:true;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Party) TableName() string {
	return "parties"
}
