package detection

import (
	"math"
	"sort"
)

// Noise is the cluster label of points that belong to no cluster.
const Noise = -1

// gridIndex buckets points into square cells of side eps so that a radius
// query only has to look at the 3x3 block of cells around a point.
type gridIndex struct {
	eps   float64
	cells map[[2]int][]int
	pts   []Point
}

func newGridIndex(pts []Point, eps float64) *gridIndex {
	g := &gridIndex{eps: eps, cells: make(map[[2]int][]int), pts: pts}
	for i, p := range pts {
		k := g.key(p)
		g.cells[k] = append(g.cells[k], i)
	}
	return g
}

func (g *gridIndex) key(p Point) [2]int {
	return [2]int{int(math.Floor(float64(p.X) / g.eps)), int(math.Floor(float64(p.Y) / g.eps))}
}

// neighbors returns the indices of all points within eps of point i,
// including i itself, in ascending index order.
func (g *gridIndex) neighbors(i int) []int {
	p := g.pts[i]
	k := g.key(p)
	eps2 := g.eps * g.eps
	out := make([]int, 0, 8)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for _, j := range g.cells[[2]int{k[0] + dx, k[1] + dy}] {
				ddx := float64(g.pts[j].X - p.X)
				ddy := float64(g.pts[j].Y - p.Y)
				if ddx*ddx+ddy*ddy <= eps2 {
					out = append(out, j)
				}
			}
		}
	}
	sort.Ints(out)
	return out
}

// ClusterPoints groups points by density (DBSCAN).
//
// A point with at least minSamples points (itself included) within eps is a
// core point. Clusters are grown from core points in index order; a border
// point joins the first cluster that reaches it. Points reached by no core
// point are labeled Noise.
//
// Returns one label per input point. Labels are 0, 1, 2, ... in the order
// clusters were started.
func ClusterPoints(pts []Point, eps float64, minSamples int) []int {
	labels := make([]int, len(pts))
	if len(pts) == 0 {
		return labels
	}

	const unvisited = -2
	for i := range labels {
		labels[i] = unvisited
	}

	idx := newGridIndex(pts, eps)
	cluster := 0

	for i := range pts {
		if labels[i] != unvisited {
			continue
		}
		seeds := idx.neighbors(i)
		if len(seeds) < minSamples {
			labels[i] = Noise
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), seeds...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]

			if labels[j] == Noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster

			if n := idx.neighbors(j); len(n) >= minSamples {
				queue = append(queue, n...)
			}
		}
		cluster++
	}

	return labels
}

// CornerCount returns the number of distinct non-noise labels.
func CornerCount(labels []int) int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		if l != Noise {
			seen[l] = struct{}{}
		}
	}
	return len(seen)
}
