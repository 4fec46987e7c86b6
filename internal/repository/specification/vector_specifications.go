package specification

import "gorm.io/gorm"

type ByNamespace struct {
	Namespace string
}

func (s ByNamespace) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("namespace = ?", s.Namespace)
}

type BySourceID struct {
	SourceID string
}

func (s BySourceID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_id = ?", s.SourceID)
}

type BySourceIDs struct {
	SourceIDs []string
}

func (s BySourceIDs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_id IN ?", s.SourceIDs)
}

type LiveDataOnly struct{}

func (s LiveDataOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_live_data = ?", true)
}
