package allocator

import "math/bits"

// Two-level bitmap over 256 bins: 32 top bits, each summarising 8 leaf bins.
const (
	NumTopBins  = 32
	BinsPerLeaf = 8
	NumBins     = NumTopBins * BinsPerLeaf
)

// findLowestSetBitAfter returns the index of the lowest set bit in mask at
// or after startBitIndex, and whether one was found. Go defines a shift by
// the full width of an unsigned type as zero, so startBitIndex == 32 (the
// "search top bin strictly after 31" case) resolves to "not found" without
// special-casing.
func findLowestSetBitAfter(mask uint32, startBitIndex uint32) (uint32, bool) {
	maskBeforeStart := uint32(1<<startBitIndex) - 1
	bitsAfterStart := mask &^ maskBeforeStart

	if bitsAfterStart == 0 {
		return 0, false
	}

	return uint32(bits.TrailingZeros32(bitsAfterStart)), true
}

// findFreeBin locates the lowest bin index >= minBinIndex with at least one
// free node, in O(1) bit operations: probe the leaf mask of minBinIndex's
// own top bin first, and only fall back to scanning strictly larger top
// bins (every leaf of which is guaranteed to fit) when that fails.
func (a *Allocator) findFreeBin(minBinIndex uint32) (uint32, bool) {
	minTopBinIndex := minBinIndex >> mantissaBits
	minLeafBinIndex := minBinIndex & mantissaMask

	topBinIndex := minTopBinIndex

	var leafBinIndex uint32

	found := false

	if a.usedBinsTop&(1<<topBinIndex) != 0 {
		leafBinIndex, found = findLowestSetBitAfter(uint32(a.usedBins[topBinIndex]), minLeafBinIndex)
	}

	if !found {
		t, ok := findLowestSetBitAfter(a.usedBinsTop, minTopBinIndex+1)
		if !ok {
			return 0, false
		}

		topBinIndex = t
		leafBinIndex = uint32(bits.TrailingZeros8(a.usedBins[topBinIndex]))
	}

	return (topBinIndex << mantissaBits) | leafBinIndex, true
}

// setBinBits marks (topBinIndex, leafBinIndex) as non-empty in both bitmap levels.
func (a *Allocator) setBinBits(topBinIndex, leafBinIndex uint32) {
	a.usedBins[topBinIndex] |= 1 << leafBinIndex
	a.usedBinsTop |= 1 << topBinIndex
}

// clearBinBitsIfEmpty clears the leaf bit for (topBinIndex, leafBinIndex),
// and the top bit too if that was the last non-empty leaf in the top bin.
// Only call once binIndices[bin] has already been set to INVALID.
func (a *Allocator) clearBinBitsIfEmpty(topBinIndex, leafBinIndex uint32) {
	a.usedBins[topBinIndex] &^= 1 << leafBinIndex
	if a.usedBins[topBinIndex] == 0 {
		a.usedBinsTop &^= 1 << topBinIndex
	}
}
