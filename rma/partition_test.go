package rma

import "testing"

func TestNewPartitionCapacityFloor(t *testing.T) {
	pt := NewPartition(4, 16) // ceil(16/4)=4, *2=8 -> floored to 100
	if pt.LocalCapacity != 100 {
		t.Errorf("LocalCapacity = %d, want 100", pt.LocalCapacity)
	}
}

func TestNewPartitionCapacityDoubled(t *testing.T) {
	pt := NewPartition(4, 4000) // ceil(4000/4)=1000, *2=2000
	if pt.LocalCapacity != 2000 {
		t.Errorf("LocalCapacity = %d, want 2000", pt.LocalCapacity)
	}
}

func TestPartitionIdentity(t *testing.T) {
	p, n := 7, 1000
	pt := NewPartition(p, n)
	for k := 0; k < n; k++ {
		owner := pt.Owner(k)
		slot := pt.Slot(k)
		if owner < 0 || owner >= p {
			t.Fatalf("Owner(%d) = %d, out of range [0,%d)", k, owner, p)
		}
		if slot < 0 || slot >= pt.LocalCapacity {
			t.Fatalf("Slot(%d) = %d, out of range [0,%d)", k, slot, pt.LocalCapacity)
		}
	}
}

func TestOwnerIsModuloP(t *testing.T) {
	pt := NewPartition(4, 1000)
	for k := 0; k < 20; k++ {
		if got, want := pt.Owner(k), k%4; got != want {
			t.Errorf("Owner(%d) = %d, want %d", k, got, want)
		}
	}
}
