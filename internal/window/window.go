// Package window maps a scroll position onto the slice of visible rows that
// has to be materialised. Everything here is O(1) arithmetic so it can run on
// every scroll event.
package window

// Range is an inclusive index range into the visible row list. An empty list
// yields End = -1.
type Range struct {
	Start int
	End   int
}

// Len returns the number of rows in the range.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether index i falls inside the range.
func (r Range) Contains(i int) bool {
	return i >= r.Start && i <= r.End
}

// Compute returns the rows to render for the given scroll state.
//
// The first row is the one under scrollOffset minus bufferRows, and the span
// covers the viewport plus bufferRows on each side. A non-positive rowHeight
// is treated as 1.
func Compute(scrollOffset, viewportHeight, rowHeight, bufferRows, totalRows int) Range {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if bufferRows < 0 {
		bufferRows = 0
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if viewportHeight < 0 {
		viewportHeight = 0
	}

	start := scrollOffset/rowHeight - bufferRows
	if start < 0 {
		start = 0
	}
	visible := ceilDiv(viewportHeight, rowHeight) + 2*bufferRows
	end := start + visible
	if end > totalRows-1 {
		end = totalRows - 1
	}
	return Range{Start: start, End: end}
}

// CollapseAdjust returns the scroll offset to use after collapsing the group
// whose header is at groupIndex and which hid removedRows rows. topIndex is
// the row under the top of the viewport. When the whole group sits above it
// the offset moves up by the removed height so the same logical row stays at
// the top. When the top row was itself hidden the header takes its place. A
// header at or below topIndex needs no adjustment.
func CollapseAdjust(scrollOffset, rowHeight, topIndex, groupIndex, removedRows int) int {
	if groupIndex >= topIndex || removedRows <= 0 {
		return scrollOffset
	}
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if groupIndex+removedRows >= topIndex {
		return groupIndex * rowHeight
	}
	adjusted := scrollOffset - removedRows*rowHeight
	if adjusted < 0 {
		return 0
	}
	return adjusted
}

// TopIndex returns the row under the top edge of the viewport.
func TopIndex(scrollOffset, rowHeight int) int {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	if scrollOffset < 0 {
		return 0
	}
	return scrollOffset / rowHeight
}

// ClampOffset keeps offset within [0, content height - viewport height].
func ClampOffset(offset, viewportHeight, rowHeight, totalRows int) int {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	maxOffset := totalRows*rowHeight - viewportHeight
	if offset > maxOffset {
		offset = maxOffset
	}
	if offset < 0 {
		return 0
	}
	return offset
}

// EnsureVisible returns the smallest offset change that keeps row index on
// screen.
func EnsureVisible(offset, viewportHeight, rowHeight, index int) int {
	if rowHeight <= 0 {
		rowHeight = 1
	}
	top := index * rowHeight
	if top < offset {
		return top
	}
	if bottom := top + rowHeight; bottom > offset+viewportHeight {
		return bottom - viewportHeight
	}
	return offset
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
