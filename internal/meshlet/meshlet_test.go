package meshlet

import (
	"errors"
	"testing"

	"github.com/offsetpool/meshpool/internal/allocator"
)

func TestAddReservesVertexAndIndexSpans(t *testing.T) {
	b, err := NewBuilder(1024, 4096)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	m, err := b.Add(64, 40)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if m.VertexCount != 64 {
		t.Errorf("VertexCount = %d, want 64", m.VertexCount)
	}

	if m.IndexCount != 120 {
		t.Errorf("IndexCount = %d, want 120 (40 triangles * 3)", m.IndexCount)
	}

	if m.VertexOffset != 0 || m.IndexOffset != 0 {
		t.Errorf("first meshlet should start at offset 0 in both buffers, got v=%d i=%d", m.VertexOffset, m.IndexOffset)
	}
}

func TestAddFailureRollsBackVertexSpan(t *testing.T) {
	// Index buffer (8 elements) too small for the 120-element index span
	// requested below; vertex buffer generous. The vertex span must be rolled back so it doesn't leak.
	b, err := NewBuilder(1024, 8)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	before := b.VertexReport()

	if _, err := b.Add(64, 40); err == nil {
		t.Fatalf("expected Add to fail on index exhaustion")
	}

	after := b.VertexReport()
	if before != after {
		t.Errorf("vertex span not rolled back: before=%+v after=%+v", before, after)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	b, _ := NewBuilder(1024, 4096)

	m, err := b.Add(64, 40)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	b.Release(m)

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("second Release should be a no-op, not panic: %v", r)
		}
	}()

	b.Release(m)
}

func TestReleaseReturnsSpaceToBothBuffers(t *testing.T) {
	b, _ := NewBuilder(1024, 4096)

	m, err := b.Add(64, 40)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	b.Release(m)

	vr := b.VertexReport()
	if vr.TotalFreeSpace != 1024 {
		t.Errorf("vertex free space after release = %d, want 1024", vr.TotalFreeSpace)
	}

	ir := b.IndexReport()
	if ir.TotalFreeSpace != 4096 {
		t.Errorf("index free space after release = %d, want 4096", ir.TotalFreeSpace)
	}
}

func TestManyMeshletsPackSequentially(t *testing.T) {
	b, _ := NewBuilder(1<<16, 1<<18)

	var offsets []uint32
	for i := 0; i < 20; i++ {
		m, err := b.Add(128, 84)
		if err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}

		offsets = append(offsets, m.VertexOffset)
	}

	for i := 1; i < len(offsets); i++ {
		if offsets[i] <= offsets[i-1] {
			t.Errorf("offset %d (%d) should exceed offset %d (%d)", i, offsets[i], i-1, offsets[i-1])
		}
	}
}

func TestAllocatorAccessorsReflectLiveState(t *testing.T) {
	b, _ := NewBuilder(1024, 4096)

	if _, err := b.Add(64, 40); err != nil {
		t.Fatalf("Add: %v", err)
	}

	vertexAlloc, vertexMu := b.VertexAllocator()
	vertexMu.Lock()
	vertexReport := vertexAlloc.Report()
	vertexMu.Unlock()

	if vertexReport != b.VertexReport() {
		t.Errorf("VertexAllocator report = %+v, want %+v (VertexReport)", vertexReport, b.VertexReport())
	}

	indexAlloc, indexMu := b.IndexAllocator()
	indexMu.Lock()
	indexReport := indexAlloc.Report()
	indexMu.Unlock()

	if indexReport != b.IndexReport() {
		t.Errorf("IndexAllocator report = %+v, want %+v (IndexReport)", indexReport, b.IndexReport())
	}
}

func TestAddZeroCapacityVertexBufferFails(t *testing.T) {
	b, err := NewBuilder(0, 4096)
	if err != nil {
		t.Fatalf("NewBuilder: %v", err)
	}

	if _, err := b.Add(1, 1); err == nil {
		t.Errorf("expected Add to fail against a zero-capacity vertex buffer")
	} else if !errors.Is(err, allocator.ErrRangeExhausted) {
		t.Errorf("expected wrapped ErrRangeExhausted, got %v", err)
	}
}
