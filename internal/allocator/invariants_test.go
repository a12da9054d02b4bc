package allocator

import (
	"math/rand"
	"testing"
)

// checkInvariants walks the allocator's internal state and re-derives
// everything Report/ReportFull promise, failing the test on the first
// inconsistency. It is O(maxAllocs), far too slow for production use, which
// is exactly why Report/ReportFull exist as O(1)/O(bins) alternatives.
func checkInvariants(t *testing.T, a *Allocator, capacity uint32) {
	t.Helper()

	var usedSize, freeSize uint32

	var freeNodeCount int

	// Slots sitting on the free-node stack are not regions. A recycled slot
	// keeps the offset/size/links it last held, so it is recognised by its
	// presence on the stack rather than by its field values.
	onStack := make([]bool, len(a.nodes))
	for _, idx := range a.freeNodes {
		onStack[idx] = true
	}

	for i := range a.nodes {
		if onStack[i] {
			continue
		}

		n := a.nodes[i]

		if n.offset+n.size > capacity {
			t.Fatalf("node %d: offset+size=%d exceeds capacity %d", i, n.offset+n.size, capacity)
		}

		if n.used {
			usedSize += n.size
		} else {
			freeSize += n.size
			freeNodeCount++
		}
	}

	if usedSize+freeSize != capacity {
		// Slots on the free-node stack were skipped above, so this must
		// hold exactly regardless of how much of the pool is currently in
		// play.
		t.Fatalf("usedSize(%d) + freeSize(%d) != capacity(%d)", usedSize, freeSize, capacity)
	}

	if freeSize != a.freeStorage {
		t.Fatalf("recomputed freeSize=%d != a.freeStorage=%d", freeSize, a.freeStorage)
	}

	// No two free nodes may be address-adjacent: Free always coalesces, so
	// this would indicate a missed merge.
	for i := range a.nodes {
		n := a.nodes[i]
		if n.used || onStack[i] {
			continue
		}

		if n.neighborNext != invalid {
			next := a.nodes[n.neighborNext]
			if !next.used && next.offset == n.offset+n.size {
				t.Fatalf("adjacent free nodes not coalesced: {%d,%d} and {%d,%d}", n.offset, n.size, next.offset, next.size)
			}
		}
	}

	full := a.ReportFull()

	var reportedCount uint32
	for _, bin := range full.PerBin {
		reportedCount += bin.Count
	}

	if int(reportedCount) != freeNodeCount {
		t.Fatalf("reportFull free node count=%d != recomputed free node count=%d", reportedCount, freeNodeCount)
	}

	report := a.Report()
	if report.TotalFreeSpace != freeSize {
		t.Fatalf("Report().TotalFreeSpace=%d != recomputed freeSize=%d", report.TotalFreeSpace, freeSize)
	}

	if report.LargestFreeRegion > report.TotalFreeSpace {
		t.Fatalf("LargestFreeRegion(%d) > TotalFreeSpace(%d)", report.LargestFreeRegion, report.TotalFreeSpace)
	}
}

// TestRandomizedSequenceInvariants drives Allocate/Free through a long
// deterministic pseudo-random sequence and re-checks every invariant after
// each step, rather than trusting only the hand-picked scenarios above.
func TestRandomizedSequenceInvariants(t *testing.T) {
	const capacity = 1 << 16

	a := mustNew(t, capacity, WithMaxAllocs(2048))

	rng := rand.New(rand.NewSource(1))

	var live []Allocation

	for step := 0; step < 5000; step++ {
		if len(live) > 0 && rng.Intn(3) == 0 {
			i := rng.Intn(len(live))
			a.Free(live[i])

			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		} else {
			size := uint32(rng.Intn(513))

			alloc, err := a.Allocate(size)
			if err == nil {
				if a.SizeOf(alloc) != size {
					t.Fatalf("step %d: SizeOf = %d, want %d", step, a.SizeOf(alloc), size)
				}

				live = append(live, alloc)
			}
		}

		checkInvariants(t, a, capacity)
	}

	for _, alloc := range live {
		a.Free(alloc)
	}

	checkInvariants(t, a, capacity)

	if got := a.Report().TotalFreeSpace; got != capacity {
		t.Errorf("after freeing everything, TotalFreeSpace = %d, want %d", got, capacity)
	}
}
