package specification

import (
	"time"

	"gorm.io/gorm"
)

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

type ByUserID struct {
	UserID string
}

func (s ByUserID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

type ByRole struct {
	Role string
}

func (s ByRole) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("role = ?", s.Role)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}

// LastUsedBefore matches threads idle since before the cutoff. Used by the
// periodic expiry sweep.
type LastUsedBefore struct {
	Cutoff time.Time
}

func (s LastUsedBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("last_used_at < ?", s.Cutoff)
}
