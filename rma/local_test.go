package rma

import (
	"sync"
	"testing"

	"github.com/poetlab/dht/bucket"
)

func makeBucket(key int32, status int32, numSpecies int, fill float64) ([]byte, bucket.Bucket) {
	payload := bucket.NewGridCell(numSpecies)
	for i := range payload.Concentrations {
		payload.Concentrations[i] = fill
	}
	b := bucket.Bucket{Key: key, Payload: payload, Status: status}
	b.Checksum = bucket.Checksum(key, payload)
	buf := make([]byte, bucket.Size(numSpecies))
	bucket.Marshal(buf, &b, numSpecies)
	return buf, b
}

func TestLocalFabricEmptyWindowReadsZero(t *testing.T) {
	numSpecies := 5
	fabrics := NewLocalFabrics(1, 100, numSpecies)
	f := fabrics[0]

	buf := f.Get(0, 0, bucket.Size(numSpecies))
	var b bucket.Bucket
	bucket.Unmarshal(buf, &b, numSpecies)
	if b.Status != bucket.StatusEmpty {
		t.Errorf("fresh window: Status = %d, want StatusEmpty", b.Status)
	}
}

func TestLocalFabricPutThenGet(t *testing.T) {
	numSpecies := 5
	fabrics := NewLocalFabrics(1, 100, numSpecies)
	f := fabrics[0]

	buf, want := makeBucket(42, bucket.StatusOccupied, numSpecies, 3.5)
	f.Put(0, 0, buf)

	got := f.Get(0, 0, bucket.Size(numSpecies))
	var b bucket.Bucket
	bucket.Unmarshal(got, &b, numSpecies)
	if b.Key != want.Key || !b.Payload.Equal(want.Payload) {
		t.Errorf("Get after Put = %+v, want %+v", b, want)
	}
}

func TestLocalFabricCompareAndSwap(t *testing.T) {
	numSpecies := 5
	fabrics := NewLocalFabrics(1, 100, numSpecies)
	f := fabrics[0]
	statusOff := bucket.StatusOffset(numSpecies)

	old := f.CompareAndSwap(0, statusOff, bucket.StatusEmpty, bucket.StatusLocked)
	if old != bucket.StatusEmpty {
		t.Fatalf("first CAS observed = %d, want StatusEmpty", old)
	}

	old = f.CompareAndSwap(0, statusOff, bucket.StatusEmpty, bucket.StatusLocked)
	if old != bucket.StatusLocked {
		t.Fatalf("second CAS (expect mismatch) observed = %d, want StatusLocked", old)
	}
}

func TestLocalFabricConcurrentCASOnlyOneWinner(t *testing.T) {
	numSpecies := 5
	fabrics := NewLocalFabrics(1, 100, numSpecies)
	f := fabrics[0]
	statusOff := bucket.StatusOffset(numSpecies)

	const n = 50
	var wg sync.WaitGroup
	wins := make([]bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			old := f.CompareAndSwap(0, statusOff, bucket.StatusEmpty, bucket.StatusLocked)
			wins[i] = old == bucket.StatusEmpty
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, w := range wins {
		if w {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("got %d CAS winners, want exactly 1", winners)
	}
}

func TestLocalFabricBarrierReleasesAllRanks(t *testing.T) {
	p := 4
	fabrics := NewLocalFabrics(p, 1000, 5)
	var wg sync.WaitGroup
	done := make([]bool, p)
	for i, f := range fabrics {
		wg.Add(1)
		go func(i int, f Fabric) {
			defer wg.Done()
			f.Barrier()
			done[i] = true
		}(i, f)
	}
	wg.Wait()
	for i, d := range done {
		if !d {
			t.Errorf("rank %d never returned from Barrier", i)
		}
	}
}

func TestLocalFabricCrossRankRouting(t *testing.T) {
	// S2: P=4, N=1000. Rank 0 puts key 1 (owned by rank 1). Barrier. Rank 1
	// reads it locally.
	p, n, numSpecies := 4, 1000, 5
	c := NewLocalCluster(p, n, numSpecies)
	f0 := c.Fabric(0)
	f1 := c.Fabric(1)

	if owner := f0.Partition().Owner(1); owner != 1 {
		t.Fatalf("Owner(1) = %d, want 1", owner)
	}
	slot := f0.Partition().Slot(1)
	offset := slot * bucket.Size(numSpecies)

	buf, want := makeBucket(1, bucket.StatusOccupied, numSpecies, 9.0)
	f0.Put(1, offset, buf)

	got := f1.Get(1, offset, bucket.Size(numSpecies))
	var b bucket.Bucket
	bucket.Unmarshal(got, &b, numSpecies)
	if b.Key != want.Key || !b.Payload.Equal(want.Payload) {
		t.Errorf("cross-rank Get = %+v, want %+v", b, want)
	}
}
