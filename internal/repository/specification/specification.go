package specification

import "gorm.io/gorm"

// Specification composes a query filter onto a gorm query.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}
