// Package allocator implements a hard-realtime offset allocator: an O(1)
// best-fit sub-allocator over a fixed-size linear address range, suitable
// for per-frame use packing meshlet vertex/index spans into a single large
// buffer. It never performs I/O and never touches the backing storage the
// offsets index into — it only hands out integers.
package allocator

import (
	stderrors "errors"
	"fmt"

	allocerrors "github.com/offsetpool/meshpool/internal/errors"
)

// ErrPoolExhausted is returned (wrapped) by Allocate when the node pool has
// no free slots left to represent a new region, regardless of how much
// backing-range space remains free.
var ErrPoolExhausted = stderrors.New("allocator: node pool exhausted")

// ErrRangeExhausted is returned (wrapped) by Allocate when the node pool
// has capacity but no free region satisfies the requested size.
var ErrRangeExhausted = stderrors.New("allocator: no free region fits requested size")

// Allocate finds the smallest free region that fits size, splits off any
// remainder back into the free-region graph, and returns the resulting
// Allocation. On failure both Allocation fields equal NoSpace and the error
// distinguishes pool exhaustion from range exhaustion.
func (a *Allocator) Allocate(size uint32) (Allocation, error) {
	if len(a.freeNodes) == 0 {
		return Allocation{Offset: NoSpace, Handle: NoSpace},
			fmt.Errorf("%w: %s", ErrPoolExhausted, allocerrors.PoolExhausted(a.maxAllocs).Error())
	}

	minBinIndex := quantizeRoundUp(size)

	binIndex, ok := a.findFreeBin(minBinIndex)
	if !ok {
		return Allocation{Offset: NoSpace, Handle: NoSpace},
			fmt.Errorf("%w: %s", ErrRangeExhausted, allocerrors.RangeExhausted(size).Error())
	}

	topBinIndex := binIndex >> mantissaBits
	leafBinIndex := binIndex & mantissaMask

	nodeIndex := a.binIndices[binIndex]
	n := &a.nodes[nodeIndex]

	nodeTotalSize := n.size
	n.size = size
	n.used = true

	a.binIndices[binIndex] = n.binListNext
	if n.binListNext != invalid {
		a.nodes[n.binListNext].binListPrev = invalid
	}

	a.freeStorage -= nodeTotalSize

	if a.binIndices[binIndex] == invalid {
		a.clearBinBitsIfEmpty(topBinIndex, leafBinIndex)
	}

	if remainder := nodeTotalSize - size; remainder > 0 {
		newNodeIndex := a.insertNodeIntoBin(remainder, n.offset+size)

		if n.neighborNext != invalid {
			a.nodes[n.neighborNext].neighborPrev = newNodeIndex
		}

		a.nodes[newNodeIndex].neighborPrev = nodeIndex
		a.nodes[newNodeIndex].neighborNext = n.neighborNext
		n.neighborNext = newNodeIndex
	}

	return Allocation{Offset: n.offset, Handle: nodeIndex}, nil
}

// Free releases an Allocation, merging it with any free neighbor regions on
// the backing range (coalescing) before returning it to the bin directory.
// A double free, or any handle whose node is not currently in use, panics
// with an internal/errors DoubleFree error; this is a programming bug, not
// a recoverable condition. A NoSpace handle panics with an index-out-of-range
// runtime error. A handle that names some other live allocation is not
// detected, and that allocation is freed.
func (a *Allocator) Free(alloc Allocation) {
	if a.nodes == nil {
		return
	}

	nodeIndex := alloc.Handle
	n := &a.nodes[nodeIndex]

	if !n.used {
		panic(allocerrors.DoubleFree(nodeIndex))
	}

	offset := n.offset
	size := n.size

	if n.neighborPrev != invalid && !a.nodes[n.neighborPrev].used {
		prev := &a.nodes[n.neighborPrev]
		offset = prev.offset
		size += prev.size

		a.removeNodeFromBin(n.neighborPrev)
		n.neighborPrev = prev.neighborPrev
	}

	if n.neighborNext != invalid && !a.nodes[n.neighborNext].used {
		next := &a.nodes[n.neighborNext]
		size += next.size

		a.removeNodeFromBin(n.neighborNext)
		n.neighborNext = next.neighborNext
	}

	neighborPrev := n.neighborPrev
	neighborNext := n.neighborNext

	a.pushFreeNode(nodeIndex)

	combined := a.insertNodeIntoBin(size, offset)

	if neighborNext != invalid {
		a.nodes[combined].neighborNext = neighborNext
		a.nodes[neighborNext].neighborPrev = combined
	}

	if neighborPrev != invalid {
		a.nodes[combined].neighborPrev = neighborPrev
		a.nodes[neighborPrev].neighborNext = combined
	}
}

// SizeOf returns the size of the live allocation referenced by alloc, or 0
// if the handle is NoSpace or the allocator has no pool (post-Destroy).
func (a *Allocator) SizeOf(alloc Allocation) uint32 {
	if alloc.Handle == NoSpace || a.nodes == nil {
		return 0
	}

	return a.nodes[alloc.Handle].size
}
