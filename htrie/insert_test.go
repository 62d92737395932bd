package htrie

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestInsertFixedInplaceReturnsExpectedRecord(t *testing.T) {
	s := mustOpen(t, WithRecLen(4), WithInplace())
	w := mustWorker(t, s)

	got, err := s.Insert(w, 0x42, []byte("abcd"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	want := Record{Key: 0x42, Body: []byte("abcd")}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Record{}, "DataOff", "DataLen")); diff != "" {
		t.Fatalf("insert result mismatch (-want +got):\n%s", diff)
	}
}

func TestPreparePayloadRejectsWrongLength(t *testing.T) {
	s := mustOpen(t, WithRecLen(4))
	if _, err := s.preparePayload(1, []byte("too long")); err == nil {
		t.Fatalf("expected a length-mismatch error")
	}
}

// A bucket-pool exhaustion hitting the empty-slot path must surface as
// ErrOOM, distinct from ErrKeySpaceExhausted: the two conditions mean
// different things to a caller.
func TestInsertOnEmptySlotSurfacesOOMNotKeySpaceExhausted(t *testing.T) {
	s := mustOpen(t, WithRootBits(8), WithMaxBuckets(1))
	w := mustWorker(t, s)

	// key 0 and key 1 land in different root-indexed slots, each requiring
	// a freshly allocated bucket via the "empty slot" insert outcome.
	if _, err := s.Insert(w, 0, []byte("v")); err != nil {
		t.Fatalf("first insert (consumes the only allowed bucket): %v", err)
	}

	_, err := s.Insert(w, 1, []byte("v"))
	if err == nil {
		t.Fatalf("expected an error once the bucket pool is exhausted")
	}
	if !errors.Is(err, ErrOOM) {
		t.Fatalf("want ErrOOM, got %v", err)
	}
	if errors.Is(err, ErrKeySpaceExhausted) {
		t.Fatalf("bucket-pool exhaustion must not be reported as key-space exhaustion")
	}
}
