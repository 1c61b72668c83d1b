package memorydb

import (
	"testing"

	"github.com/tos-network/gsanta/santadb"
	"github.com/tos-network/gsanta/santadb/dbtest"
)

func TestMemoryDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() santadb.KeyValueStore {
			return New()
		})
	})
}

func TestClosedDatabaseFails(t *testing.T) {
	db := New()
	db.Close()
	if err := db.Put([]byte("k"), []byte("v")); err != errMemorydbClosed {
		t.Fatalf("put on closed db: have %v want %v", err, errMemorydbClosed)
	}
}
