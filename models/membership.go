// models/membership.go
package models

import "time"

type MembershipRole string

const (
	MembershipRoleCreator MembershipRole = "creator"
	MembershipRoleMember  MembershipRole = "member"
)

// Membership links a user to a party. Leaving flips IsActive instead of
// deleting the row so old activity stays attributed.
type Membership struct {
	ID       uint           `json:"id" gorm:"primaryKey"`
	PartyID  uint           `json:"party_id" gorm:"not null;index;uniqueIndex:idx_memberships_party_user"`
	UserID   uint           `json:"user_id" gorm:"not null;index;uniqueIndex:idx_memberships_party_user"`
	Role     MembershipRole `json:"role" gorm:"not null;default:'member';size:20"`
	JoinedAt time.Time      `json:"joined_at" gorm:"not null"`
	LeftAt   *time.Time     `json:"left_at"`
	IsActive bool           `json:"is_active" gorm:"default:true;index"`
}

func (Membership) TableName() string {
	return "memberships"
}
