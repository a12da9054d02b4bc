// Package meshlet is a reference consumer of internal/allocator: it packs
// per-meshlet vertex and index spans into two shared buffers, mirroring the
// paired-allocator pattern used to build opaque meshlets for a GPU-driven
// renderer (one allocator sized in vertex elements, one in index elements).
package meshlet

import (
	"fmt"
	"sync"

	"github.com/offsetpool/meshpool/internal/allocator"
)

// Meshlet is a single draw unit's vertex and index span within the two
// shared buffers a Builder manages. Offset and Count are both in elements,
// not bytes; a caller multiplies by its own per-element stride.
type Meshlet struct {
	VertexOffset uint32
	VertexCount  uint32
	IndexOffset  uint32
	IndexCount   uint32

	vertexAlloc allocator.Allocation
	indexAlloc  allocator.Allocation
	released    bool
}

// Builder owns the two paired allocators backing every Meshlet it produces.
// The two address spaces are unrelated, so each gets its own mutex rather
// than sharing one lock across both.
type Builder struct {
	vertexMu sync.Mutex
	vertices *allocator.Allocator
	indexMu  sync.Mutex
	indices  *allocator.Allocator
}

// NewBuilder constructs a Builder with vertex and index buffers sized in
// elements (not bytes).
func NewBuilder(vertexCapacity, indexCapacity uint32, opts ...allocator.Option) (*Builder, error) {
	vertices, err := allocator.New(vertexCapacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("meshlet: vertex allocator: %w", err)
	}

	indices, err := allocator.New(indexCapacity, opts...)
	if err != nil {
		return nil, fmt.Errorf("meshlet: index allocator: %w", err)
	}

	return &Builder{vertices: vertices, indices: indices}, nil
}

// Add reserves space for a meshlet with the given vertex and triangle
// counts (triangleCount is multiplied by 3 for the index count, matching
// the reference pipeline's indexing convention).
func (b *Builder) Add(vertexCount, triangleCount uint32) (*Meshlet, error) {
	b.vertexMu.Lock()
	vertexAlloc, err := b.vertices.Allocate(vertexCount)
	b.vertexMu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("meshlet: vertex span: %w", err)
	}

	indexCount := triangleCount * 3

	b.indexMu.Lock()
	indexAlloc, err := b.indices.Allocate(indexCount)
	b.indexMu.Unlock()

	if err != nil {
		b.vertexMu.Lock()
		b.vertices.Free(vertexAlloc)
		b.vertexMu.Unlock()

		return nil, fmt.Errorf("meshlet: index span: %w", err)
	}

	return &Meshlet{
		VertexOffset: vertexAlloc.Offset,
		VertexCount:  vertexCount,
		IndexOffset:  indexAlloc.Offset,
		IndexCount:   indexCount,
		vertexAlloc:  vertexAlloc,
		indexAlloc:   indexAlloc,
	}, nil
}

// Release frees both of m's spans. Safe to call more than once; later calls
// are no-ops, since the allocator itself treats a second Free as a
// programming-bug double free and panics.
func (b *Builder) Release(m *Meshlet) {
	if m.released {
		return
	}

	m.released = true

	b.vertexMu.Lock()
	b.vertices.Free(m.vertexAlloc)
	b.vertexMu.Unlock()

	b.indexMu.Lock()
	b.indices.Free(m.indexAlloc)
	b.indexMu.Unlock()
}

// VertexReport returns the vertex buffer's current free-space summary.
func (b *Builder) VertexReport() allocator.SummaryReport {
	b.vertexMu.Lock()
	defer b.vertexMu.Unlock()

	return b.vertices.Report()
}

// IndexReport returns the index buffer's current free-space summary.
func (b *Builder) IndexReport() allocator.SummaryReport {
	b.indexMu.Lock()
	defer b.indexMu.Unlock()

	return b.indices.Report()
}

// VertexAllocator exposes the vertex buffer's allocator together with the
// mutex guarding it, for a caller (such as a telemetry endpoint) that needs
// to read its Report/ReportFull directly rather than through the narrower
// VertexReport accessor.
func (b *Builder) VertexAllocator() (*allocator.Allocator, *sync.Mutex) {
	return b.vertices, &b.vertexMu
}

// IndexAllocator is IndexReport's counterpart to VertexAllocator.
func (b *Builder) IndexAllocator() (*allocator.Allocator, *sync.Mutex) {
	return b.indices, &b.indexMu
}
