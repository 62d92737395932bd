package arena

import "testing"

type widget struct {
	n int
}

func TestPoolAllocGetStability(t *testing.T) {
	p := NewPool[widget](0)

	var offs []uint32
	for i := 0; i < 64; i++ {
		off, w, err := p.Alloc(func() *widget { return &widget{n: i} })
		if err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
		w.n = i * 2
		offs = append(offs, off)
	}

	for i, off := range offs {
		got := p.Get(off)
		if got.n != i*2 {
			t.Fatalf("offset %d: want n=%d, got %d", off, i*2, got.n)
		}
	}
	if p.Len() != 64 {
		t.Fatalf("want len 64, got %d", p.Len())
	}
}

func TestPoolExhausted(t *testing.T) {
	p := NewPool[widget](2)
	for i := 0; i < 2; i++ {
		if _, _, err := p.Alloc(func() *widget { return &widget{} }); err != nil {
			t.Fatalf("alloc %d: %v", i, err)
		}
	}
	if _, _, err := p.Alloc(func() *widget { return &widget{} }); err != ErrExhausted {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
}
