// Package filter builds the triangular weight masks applied to segmentation
// data and the moving-average buffers that smooth the resulting scores.
//
// Each filter is a 2D weight matrix sized to the lower half of the camera
// frame. The nonzero region is triangular and row weights follow a log ramp,
// log(row+1)/log(height), so rows near the rover count for more than rows at
// the horizon. The dot product of a filter against the mask, divided by the
// filter's nonzero-cell count, yields a single "path safety" score, lower
// meaning safer.
package filter

import (
	"fmt"
	"math"
)

// Filter is a weight matrix plus the count of cells inside its triangular
// region, used to normalize a dot product into an average intensity.
type Filter struct {
	Weights []float64
	Width   int
	Height  int
	Area    int
}

// rowWeight is the log ramp shared by all three filters. Row 0 weighs zero
// and the ramp approaches 1 at the bottom row.
func rowWeight(row, height int) float64 {
	return math.Log(float64(row+1)) / math.Log(float64(height))
}

// rowDelta is how many cells the triangular edge moves per row.
func rowDelta(width, height int) int {
	return int(float64(width)/float64(height-1) + 0.5)
}

// NewLeft builds a filter whose triangular region hugs the left edge and
// grows rightward row by row. width and height describe the triangle;
// filterWidth and filterHeight the full matrix.
func NewLeft(width, height, filterWidth, filterHeight int) (Filter, error) {
	if err := checkDims(height, filterWidth, filterHeight); err != nil {
		return Filter{}, err
	}
	f := Filter{
		Weights: make([]float64, filterWidth*filterHeight),
		Width:   filterWidth,
		Height:  filterHeight,
	}
	delta := rowDelta(width, height)
	middle := filterWidth / 2

	for row := 0; row < filterHeight; row++ {
		remaining := width - row*delta
		buffer := middle - remaining
		for column := 0; column < filterWidth; column++ {
			switch {
			case buffer > 0:
				buffer--
			case remaining > 0:
				f.Weights[filterWidth*row+column] = rowWeight(row, filterHeight)
				remaining--
				f.Area++
			}
		}
	}
	return f, nil
}

// NewRight builds the mirror image of NewLeft, hugging the right edge and
// growing leftward.
func NewRight(width, height, filterWidth, filterHeight int) (Filter, error) {
	if err := checkDims(height, filterWidth, filterHeight); err != nil {
		return Filter{}, err
	}
	f := Filter{
		Weights: make([]float64, filterWidth*filterHeight),
		Width:   filterWidth,
		Height:  filterHeight,
	}
	delta := rowDelta(width, height)
	middle := filterWidth / 2

	for row := 0; row < filterHeight; row++ {
		remaining := width - row*delta
		buffer := middle - remaining
		for column := filterWidth - 1; column >= 0; column-- {
			switch {
			case buffer > 0:
				buffer--
			case remaining > 0:
				f.Weights[filterWidth*row+column] = rowWeight(row, filterHeight)
				remaining--
				f.Area++
			}
		}
	}
	return f, nil
}

// NewCenter builds a symmetric filter that starts flair cells wide at the top
// row and widens toward both edges.
func NewCenter(flair, width, height, filterWidth, filterHeight int) (Filter, error) {
	if err := checkDims(height, filterWidth, filterHeight); err != nil {
		return Filter{}, err
	}
	if flair < 1 {
		// keeps the area nonzero even when rounding makes the per-row
		// delta collapse to zero
		flair = 1
	}
	f := Filter{
		Weights: make([]float64, filterWidth*filterHeight),
		Width:   filterWidth,
		Height:  filterHeight,
	}
	delta := rowDelta(width-flair, height)

	for row := 0; row < filterHeight; row++ {
		remaining := flair + delta*row
		buffer := (filterWidth - remaining) / 2
		for column := filterWidth - 1; column >= 0; column-- {
			switch {
			case buffer > 0:
				buffer--
			case remaining > 0:
				f.Weights[filterWidth*row+column] = rowWeight(row, filterHeight)
				remaining--
				f.Area++
			}
		}
	}
	return f, nil
}

func checkDims(height, filterWidth, filterHeight int) error {
	if height < 2 || filterHeight < 2 {
		return fmt.Errorf("filter needs at least 2 rows, got %d", filterHeight)
	}
	if filterWidth < 1 {
		return fmt.Errorf("filter needs at least 1 column, got %d", filterWidth)
	}
	return nil
}

// Apply computes the dot product of the filter against the lower half of a
// row-major byte mask. The upper half sits above the horizon and carries no
// navigation signal. The returned sum is unnormalized; divide by Area for the
// score.
func (f Filter) Apply(mask []byte) (float64, error) {
	if len(mask) != 2*len(f.Weights) {
		return 0, fmt.Errorf("mask size %d does not match filter size %d", len(mask), 2*len(f.Weights))
	}
	half := mask[len(mask)/2:]

	var dot float64
	for i, w := range f.Weights {
		dot += float64(half[i]) * w
	}
	return dot, nil
}

// Score is Apply normalized by the filter area.
func (f Filter) Score(mask []byte) (float64, error) {
	dot, err := f.Apply(mask)
	if err != nil {
		return 0, err
	}
	return dot / float64(f.Area), nil
}
