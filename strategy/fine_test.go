package strategy

import (
	"sync"
	"testing"

	"github.com/poetlab/dht/bucket"
	"github.com/poetlab/dht/rma"
)

func TestFinePutThenGet(t *testing.T) {
	numSpecies := 5
	fabrics := rma.NewLocalFabrics(1, 1000, numSpecies)
	s := NewFine(fabrics[0], numSpecies)
	defer s.Close()

	want := cell(numSpecies, 3.0)
	s.Put(7, want)

	got := s.Get(7)
	if !got.Equal(want) {
		t.Errorf("Get(7) = %+v, want %+v", got, want)
	}
}

func TestFineGetMissingKeyReturnsDefault(t *testing.T) {
	numSpecies := 5
	fabrics := rma.NewLocalFabrics(1, 1000, numSpecies)
	s := NewFine(fabrics[0], numSpecies)
	defer s.Close()

	got := s.Get(123)
	if !got.Equal(bucket.NewGridCell(numSpecies)) {
		t.Errorf("Get(123) on empty table = %+v, want zero cell", got)
	}
}

// Concurrent writers to the same key must leave the bucket in a state
// written by exactly one of them, never a torn mix, and Close must not
// deadlock afterward.
func TestFineConcurrentPutsLeaveConsistentState(t *testing.T) {
	numSpecies := 4
	fabrics := rma.NewLocalFabrics(1, 1000, numSpecies)
	s := NewFine(fabrics[0], numSpecies)
	defer s.Close()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Put(1, cell(numSpecies, float64(i)))
		}(i)
	}
	wg.Wait()

	got := s.Get(1)
	found := false
	for i := 0; i < n; i++ {
		if got.Equal(cell(numSpecies, float64(i))) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("Get(1) after concurrent puts = %+v, matches none of the %d written values", got, n)
	}
}

func TestFineName(t *testing.T) {
	fabrics := rma.NewLocalFabrics(1, 100, 5)
	s := NewFine(fabrics[0], 5)
	defer s.Close()
	if s.Name() != "fine-grained" {
		t.Errorf("Name() = %q, want fine-grained", s.Name())
	}
}
