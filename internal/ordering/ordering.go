// Package ordering implements the greedy travel-minimization heuristics
// shared by the path optimizer. The functions are deterministic: distance
// ties are broken by input index.
package ordering

import (
	"math"
	"sort"

	"github.com/johnbetts/flatcam-mac-fork"
)

// NearestNeighbor orders n items by repeatedly visiting the unvisited item
// whose start is closest to the current position. starts and ends must
// have equal length; after visiting item i the current position becomes
// ends[i]. Returns the visit order as indices.
func NearestNeighbor(seed camlib.Point, starts, ends []camlib.Point) []int {
	n := len(starts)
	order := make([]int, 0, n)
	visited := make([]bool, n)
	cur := seed
	for len(order) < n {
		best := -1
		bestDist := math.Inf(1)
		for i := 0; i < n; i++ {
			if visited[i] {
				continue
			}
			// Strict less keeps the earliest index on ties.
			if d := cur.DistanceSquared(starts[i]); d < bestDist {
				best = i
				bestDist = d
			}
		}
		visited[best] = true
		order = append(order, best)
		cur = ends[best]
	}
	return order
}

// TravelLength sums the rapid distances of visiting the items in the given
// order from seed.
func TravelLength(seed camlib.Point, order []int, starts, ends []camlib.Point) float64 {
	var total float64
	cur := seed
	for _, i := range order {
		total += cur.Distance(starts[i])
		cur = ends[i]
	}
	return total
}

// ByDepth stably partitions indices by descending depth value, keeping
// input order within each depth. Used to cut nested contours inside-out.
func ByDepth(indices []int, depth func(int) int, deepestFirst bool) []int {
	out := make([]int, len(indices))
	copy(out, indices)
	sort.SliceStable(out, func(a, b int) bool {
		if deepestFirst {
			return depth(out[a]) > depth(out[b])
		}
		return depth(out[a]) < depth(out[b])
	})
	return out
}
