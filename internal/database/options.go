package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/dupdex/dupdex/domain/store"
)

// ApplyOptions builds a store.Query from the given options and applies its
// conditions to a GORM session.
func ApplyOptions(db *gorm.DB, options ...store.Option) *gorm.DB {
	for _, cond := range store.Build(options...).Conditions() {
		if cond.In() {
			db = db.Where(fmt.Sprintf("%s IN ?", cond.Field()), cond.Value())
		} else {
			db = db.Where(fmt.Sprintf("%s = ?", cond.Field()), cond.Value())
		}
	}
	return db
}
