// Package dbtest holds a conformance suite shared by the santadb backends.
package dbtest

import (
	"bytes"
	"testing"

	"github.com/tos-network/gsanta/santadb"
)

// TestDatabaseSuite runs a suite of tests against a KeyValueStore database
// implementation.
func TestDatabaseSuite(t *testing.T, New func() santadb.KeyValueStore) {
	t.Run("KeyValueOperations", func(t *testing.T) {
		db := New()
		defer db.Close()

		key := []byte("record/santa-1")
		if ok, err := db.Has(key); err != nil || ok {
			t.Fatalf("fresh store has key: ok=%v err=%v", ok, err)
		}
		if _, err := db.Get(key); err != santadb.ErrNotFound {
			t.Fatalf("missing key error mismatch: have %v want %v", err, santadb.ErrNotFound)
		}
		if err := db.Put(key, []byte("v1")); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if got, err := db.Get(key); err != nil || !bytes.Equal(got, []byte("v1")) {
			t.Fatalf("get mismatch: have %q err=%v", got, err)
		}
		if err := db.Delete(key); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if ok, _ := db.Has(key); ok {
			t.Fatal("key still present after delete")
		}
	})

	t.Run("IteratorPrefixAndStart", func(t *testing.T) {
		db := New()
		defer db.Close()

		for _, k := range []string{"a/1", "a/2", "a/3", "b/1"} {
			if err := db.Put([]byte(k), []byte("x"+k)); err != nil {
				t.Fatalf("put %s: %v", k, err)
			}
		}
		it := db.NewIterator([]byte("a/"), []byte("2"))
		defer it.Release()

		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
			if want := "x" + string(it.Key()); string(it.Value()) != want {
				t.Fatalf("value mismatch for %s: have %s want %s", it.Key(), it.Value(), want)
			}
		}
		if err := it.Error(); err != nil {
			t.Fatalf("iterator error: %v", err)
		}
		if len(keys) != 2 || keys[0] != "a/2" || keys[1] != "a/3" {
			t.Fatalf("iterated keys mismatch: %v", keys)
		}
	})

	t.Run("BatchWrite", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		b.Put([]byte("k1"), []byte("v1"))
		b.Put([]byte("k2"), []byte("v2"))
		b.Delete([]byte("k1"))
		if b.ValueSize() == 0 {
			t.Fatal("batch reports empty size")
		}
		if ok, _ := db.Has([]byte("k2")); ok {
			t.Fatal("batch applied before Write")
		}
		if err := b.Write(); err != nil {
			t.Fatalf("batch write failed: %v", err)
		}
		if ok, _ := db.Has([]byte("k1")); ok {
			t.Fatal("deleted key survived batch")
		}
		if got, _ := db.Get([]byte("k2")); !bytes.Equal(got, []byte("v2")) {
			t.Fatalf("batched key mismatch: %q", got)
		}
		b.Reset()
		if b.ValueSize() != 0 {
			t.Fatal("reset batch not empty")
		}
	})
}
