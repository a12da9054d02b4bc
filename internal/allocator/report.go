package allocator

import "math/bits"

// SummaryReport is a cheap O(1) lower-bound view of free space.
type SummaryReport struct {
	TotalFreeSpace    uint32
	LargestFreeRegion uint32
}

// BinReport is the free-list population of a single bin.
type BinReport struct {
	MinSize uint32
	Count   uint32
}

// FullReport walks every bin's free list and is O(number of free nodes).
type FullReport struct {
	PerBin [NumBins]BinReport
}

// Report returns total free space and a lower bound on the largest single
// free region, both in O(1): the largest region is derived from the
// highest set bit of the bin bitmaps, not a scan of any free list. Only an
// allocator with no pool (after Destroy) reports zeros; an exhausted
// free-node stack still reports the free bytes that remain.
func (a *Allocator) Report() SummaryReport {
	if a.nodes == nil {
		return SummaryReport{}
	}

	report := SummaryReport{TotalFreeSpace: a.freeStorage}

	if a.usedBinsTop != 0 {
		topBinIndex := uint32(bits.Len32(a.usedBinsTop) - 1)
		leafBinIndex := uint32(bits.Len8(a.usedBins[topBinIndex]) - 1)
		binIndex := (topBinIndex << mantissaBits) | leafBinIndex
		report.LargestFreeRegion = binIndexToMinSize(binIndex)
	}

	return report
}

// ReportFull walks all 256 bins' free lists and counts their members.
func (a *Allocator) ReportFull() FullReport {
	var full FullReport

	for i := uint32(0); i < NumBins; i++ {
		var count uint32

		nodeIndex := a.binIndices[i]
		for nodeIndex != invalid {
			nodeIndex = a.nodes[nodeIndex].binListNext
			count++
		}

		full.PerBin[i] = BinReport{MinSize: binIndexToMinSize(i), Count: count}
	}

	return full
}
