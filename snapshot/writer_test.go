package snapshot_test

import (
	"os"
	"testing"

	"github.com/Priyanshu23/htriekv/htrie"
	"github.com/Priyanshu23/htriekv/snapshot"
)

func TestWriterExportsAllLiveRecords(t *testing.T) {
	store, err := htrie.Open(htrie.WithRootBits(8))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	w, err := store.Register()
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	defer store.Release(w)

	keys := []uint64{0x1, 0x2, 0x3, 0x4}
	for _, k := range keys {
		if _, err := store.Insert(w, k, []byte("payload")); err != nil {
			t.Fatalf("insert %#x: %v", k, err)
		}
	}

	dir, err := os.MkdirTemp("", "htrie-snapshot-test")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	defer os.RemoveAll(dir)

	sw, err := snapshot.New(dir, uint(len(keys)))
	if err != nil {
		t.Fatalf("snapshot.New: %v", err)
	}

	total, err := store.Walk(w, snapshot.ResolveAndVisit(sw, store.ReadPayload))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if total != len(keys) {
		t.Fatalf("want %d records visited, got %d", len(keys), total)
	}
	if err := sw.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	fi, err := os.Stat(dir + "/htrie.snap")
	if err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
	if fi.Size() == 0 {
		t.Fatalf("snapshot file is empty")
	}
}
