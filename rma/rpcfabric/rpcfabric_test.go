package rpcfabric

import (
	"fmt"
	"testing"
	"time"

	"github.com/poetlab/dht/bucket"
)

func startFabrics(t *testing.T, n, basePort, keyspace, numSpecies int) []*Fabric {
	t.Helper()
	addrs := make([]string, n)
	for i := 0; i < n; i++ {
		addrs[i] = fmt.Sprintf("127.0.0.1:%d", basePort+i)
	}
	fabrics := make([]*Fabric, n)
	for i := 0; i < n; i++ {
		f, err := New(i, addrs, keyspace, numSpecies)
		if err != nil {
			t.Fatalf("New(rank %d): %v", i, err)
		}
		fabrics[i] = f
	}
	return fabrics
}

func closeAll(fabrics []*Fabric) {
	for _, f := range fabrics {
		f.Close()
	}
}

func TestRPCFabricPutThenGetSameRank(t *testing.T) {
	numSpecies := 4
	fabrics := startFabrics(t, 2, 19100, 1000, numSpecies)
	defer closeAll(fabrics)

	f := fabrics[0]
	size := bucket.Size(numSpecies)

	b := bucket.Bucket{Key: 1, Payload: bucket.NewGridCell(numSpecies), Status: bucket.StatusOccupied}
	b.Checksum = bucket.Checksum(b.Key, b.Payload)
	buf := make([]byte, size)
	bucket.Marshal(buf, &b, numSpecies)

	f.Put(f.Rank(), 0, buf)
	got := f.Get(f.Rank(), 0, size)

	var decoded bucket.Bucket
	bucket.Unmarshal(got, &decoded, numSpecies)
	if decoded.Key != 1 {
		t.Errorf("Get after Put (same rank) = key %d, want 1", decoded.Key)
	}
}

// S2 over real TCP connections: rank 0 puts a key whose owner is rank 1;
// rank 1 reads it back across the wire.
func TestRPCFabricCrossRankRouting(t *testing.T) {
	numSpecies := 4
	fabrics := startFabrics(t, 2, 19200, 1000, numSpecies)
	defer closeAll(fabrics)

	f0, f1 := fabrics[0], fabrics[1]
	pt := f0.Partition()

	key := 1
	owner := pt.Owner(key)
	if owner != 1 {
		t.Fatalf("test setup: Owner(1) = %d, want 1", owner)
	}
	slot := pt.Slot(key)
	size := bucket.Size(numSpecies)
	offset := slot * size

	payload := bucket.NewGridCell(numSpecies)
	payload.Concentrations[0] = 9.0
	b := bucket.Bucket{Key: int32(key), Payload: payload, Status: bucket.StatusOccupied}
	b.Checksum = bucket.Checksum(b.Key, b.Payload)
	buf := make([]byte, size)
	bucket.Marshal(buf, &b, numSpecies)

	f0.Put(owner, offset, buf)

	got := f1.Get(owner, offset, size)
	var decoded bucket.Bucket
	bucket.Unmarshal(got, &decoded, numSpecies)
	if decoded.Key != int32(key) || decoded.Payload.Concentrations[0] != 9.0 {
		t.Errorf("cross-rank Get over RPC = %+v, want key %d with concentration 9.0", decoded, key)
	}
}

func TestRPCFabricBarrierReleasesAllRanks(t *testing.T) {
	n := 3
	fabrics := startFabrics(t, n, 19300, 1000, 4)
	defer closeAll(fabrics)

	done := make(chan int, n)
	for i, f := range fabrics {
		go func(i int, f *Fabric) {
			f.Barrier()
			done <- i
		}(i, f)
	}

	deadline := time.After(5 * time.Second)
	seen := 0
	for seen < n {
		select {
		case <-done:
			seen++
		case <-deadline:
			t.Fatalf("timed out waiting for barrier: only %d/%d ranks returned", seen, n)
		}
	}
}

func TestRPCFabricCompareAndSwapObservedValueSemantics(t *testing.T) {
	numSpecies := 3
	fabrics := startFabrics(t, 1, 19400, 100, numSpecies)
	defer closeAll(fabrics)

	f := fabrics[0]
	statusOff := bucket.StatusOffset(numSpecies)

	old := f.CompareAndSwap(0, statusOff, bucket.StatusEmpty, bucket.StatusLocked)
	if old != bucket.StatusEmpty {
		t.Fatalf("first CAS observed = %d, want StatusEmpty", old)
	}
	old = f.CompareAndSwap(0, statusOff, bucket.StatusEmpty, bucket.StatusLocked)
	if old != bucket.StatusLocked {
		t.Fatalf("second CAS observed = %d, want StatusLocked", old)
	}
}
