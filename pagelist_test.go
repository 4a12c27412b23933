package binomdb

import "testing"

func TestPageListBasics(t *testing.T) {
	l := &pageList[int]{}
	if !l.isEmpty() {
		t.Fatal("new pageList should be empty")
	}
	if l.at(0) != nil {
		t.Fatal("at() on an empty list should return nil")
	}

	l.insertPage(RealIndex(100), 1)
	l.insertPage(RealIndex(200), 2)
	l.insertPage(RealIndex(300), 3)

	if l.isEmpty() {
		t.Fatal("list should no longer be empty")
	}
	if l.len() != 3 {
		t.Fatalf("len() = %d, want 3", l.len())
	}

	for i, wantIndex := range []RealIndex{100, 200, 300} {
		e := l.at(i)
		if e == nil {
			t.Fatalf("at(%d) = nil", i)
		}
		if e.Index != wantIndex || e.Descriptor != i+1 {
			t.Fatalf("at(%d) = %+v, want Index=%d Descriptor=%d", i, e, wantIndex, i+1)
		}
	}

	if l.at(3) != nil {
		t.Fatal("at() past the end should return nil")
	}
	if l.at(-1) != nil {
		t.Fatal("at() with a negative index should return nil")
	}

	last := l.last()
	if last.Index != 300 {
		t.Fatalf("last().Index = %d, want 300", last.Index)
	}
}

func TestPageListMutationThroughPointer(t *testing.T) {
	l := &pageList[nodePageDescriptor]{}
	l.insertPage(RealIndex(0), nodePageDescriptor{NodeMap: 0})

	e := l.at(0)
	e.Descriptor.NodeMap = 0xFF

	if l.at(0).Descriptor.NodeMap != 0xFF {
		t.Fatal("mutating through the returned pointer should affect the stored entry")
	}
}
