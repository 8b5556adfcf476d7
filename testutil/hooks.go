package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// AfterQuery runs fn once, right after the first query on table for which
// match reports true (nil matches every query). fn gets a handle on the same
// connection or transaction as the query, so it can stand in for a
// concurrent writer that committed between a read and the write after it.
func AfterQuery(t *testing.T, db *gorm.DB, table string, match func(stmt *gorm.Statement) bool, fn func(tx *gorm.DB)) {
	t.Helper()

	name := fmt.Sprintf("testutil:after_query_%d", seq.Add(1))
	var fired atomic.Bool
	err := db.Callback().Query().After("gorm:query").Register(name, func(d *gorm.DB) {
		if d.Error != nil || d.Statement.Table != table {
			return
		}
		if match != nil && !match(d.Statement) {
			return
		}
		if !fired.CompareAndSwap(false, true) {
			return
		}
		fn(d.Session(&gorm.Session{NewDB: true}))
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Callback().Query().Remove(name) })
}

// Locked matches statements that carry a row locking clause.
func Locked(stmt *gorm.Statement) bool {
	_, ok := stmt.Clauses["FOR"]
	return ok
}
