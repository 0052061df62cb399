package grid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Cell is the grid position selected for a query coordinate.
type Cell struct {
	Row int     `json:"row"` // latitude index
	Col int     `json:"col"` // longitude index
	Lat float64 `json:"lat"` // cell center latitude
	Lon float64 `json:"lon"` // cell center longitude
}

// nearestIndex returns argmin_k |axis[k] - target|.
func nearestIndex(axis []float64, target float64) int {
	dist := make([]float64, len(axis))
	copy(dist, axis)
	floats.AddConst(-target, dist)
	for k, d := range dist {
		dist[k] = math.Abs(d)
	}
	return floats.MinIdx(dist)
}

// NearestCell selects the cell closest to (lat, lon).
//
// Separable grids (1-D latitude and longitude axes) are searched one axis at
// a time. Curvilinear grids, where both coordinates are 2-D arrays of the
// same shape, are searched with a k-d tree over the cell centers.
func NearestCell(lats []float64, latShape []int, lons []float64, lonShape []int, lat, lon float64) (Cell, error) {
	if len(lats) == 0 || len(lons) == 0 {
		return Cell{}, ErrMissingCoordinates
	}

	switch {
	case len(latShape) == 1 && len(lonShape) == 1:
		i := nearestIndex(lats, lat)
		j := nearestIndex(lons, lon)
		return Cell{Row: i, Col: j, Lat: lats[i], Lon: lons[j]}, nil

	case len(latShape) == 2 && len(lonShape) == 2 &&
		latShape[0] == lonShape[0] && latShape[1] == lonShape[1] &&
		len(lats) == latShape[0]*latShape[1] && len(lons) == len(lats):
		return nearestCurvilinear(lats, lons, latShape[1], lat, lon)
	}

	return Cell{}, fmt.Errorf("%w: latitude %v, longitude %v", ErrUnsupportedGrid, latShape, lonShape)
}

func nearestCurvilinear(lats, lons []float64, cols int, lat, lon float64) (Cell, error) {
	pts := make(cellPoints, 0, len(lats))
	for k := range lats {
		if math.IsNaN(lats[k]) || math.IsNaN(lons[k]) {
			continue
		}
		pts = append(pts, cellPoint{lat: lats[k], lon: lons[k], row: k / cols, col: k % cols})
	}
	if len(pts) == 0 {
		return Cell{}, ErrMissingCoordinates
	}

	tree := kdtree.New(pts, false)
	got, _ := tree.Nearest(cellPoint{lat: lat, lon: lon})
	p := got.(cellPoint)
	return Cell{Row: p.row, Col: p.col, Lat: p.lat, Lon: p.lon}, nil
}

// cellPoint is a grid cell center in (lat, lon) degree space.
type cellPoint struct {
	lat, lon float64
	row, col int
}

func (p cellPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(cellPoint)
	if d == 0 {
		return p.lat - q.lat
	}
	return p.lon - q.lon
}

func (p cellPoint) Dims() int { return 2 }

func (p cellPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(cellPoint)
	dlat := p.lat - q.lat
	dlon := p.lon - q.lon
	return dlat*dlat + dlon*dlon
}

type cellPoints []cellPoint

func (p cellPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p cellPoints) Len() int                              { return len(p) }
func (p cellPoints) Pivot(d kdtree.Dim) int                { return cellPlane{cellPoints: p, Dim: d}.Pivot() }
func (p cellPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// cellPlane sorts cell points along one dimension for tree construction.
type cellPlane struct {
	kdtree.Dim
	cellPoints
}

func (p cellPlane) Less(i, j int) bool {
	if p.Dim == 0 {
		return p.cellPoints[i].lat < p.cellPoints[j].lat
	}
	return p.cellPoints[i].lon < p.cellPoints[j].lon
}

func (p cellPlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p cellPlane) Slice(start, end int) kdtree.SortSlicer {
	p.cellPoints = p.cellPoints[start:end]
	return p
}

func (p cellPlane) Swap(i, j int) {
	p.cellPoints[i], p.cellPoints[j] = p.cellPoints[j], p.cellPoints[i]
}
