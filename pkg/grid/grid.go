// Package grid maps linear pixel indices onto row-major frames.
package grid

// GetGridCoords returns the column and row of index in a grid cols wide.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Index is the inverse of GetGridCoords.
func Index(x, y, cols int) int {
	return y*cols + x
}

// UV returns the normalized center of pixel (x, y) in a w×h frame, with
// v growing upward.
func UV(x, y, w, h int) (u, v float64) {
	u = (float64(x) + 0.5) / float64(w)
	v = 1 - (float64(y)+0.5)/float64(h)
	return u, v
}
