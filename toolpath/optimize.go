package toolpath

import (
	"github.com/johnbetts/flatcam-mac-fork"
	"github.com/johnbetts/flatcam-mac-fork/internal/ordering"
)

// OptimizeOptions steers the path ordering heuristic.
type OptimizeOptions struct {
	// Seed is the tool position before the first rapid, usually the
	// machine origin.
	Seed camlib.Point

	// OutsideFirst cuts enclosing contours before the contours nested
	// inside them. The default, inside first, preserves the surrounding
	// support material until the inner cuts are done.
	OutsideFirst bool
}

// Optimize orders the toolpaths to minimize rapid travel under the hard
// constraints: paths sharing a tool stay contiguous so each physical tool
// is mounted once, drilling paths stay contiguous within their tool, and
// nested loops are cut inside-to-outside unless configured otherwise.
// Travel ordering uses a nearest-neighbor heuristic seeded from the
// current position and re-seeded after every tool change; ties fall back
// to input order, keeping the result deterministic. Paths are reordered,
// never altered.
func Optimize(paths []Toolpath, opt OptimizeOptions) []Toolpath {
	if len(paths) <= 1 {
		return paths
	}

	// Tool groups in order of first appearance.
	var toolOrder []string
	groups := make(map[string][]int)
	for i, tp := range paths {
		key := tp.Tool.Name
		if _, ok := groups[key]; !ok {
			toolOrder = append(toolOrder, key)
		}
		groups[key] = append(groups[key], i)
	}

	out := make([]Toolpath, 0, len(paths))
	cur := opt.Seed
	for _, tool := range toolOrder {
		idx := groups[tool]
		for _, sub := range splitByKind(paths, idx) {
			ordered := orderSubgroup(paths, sub, cur, opt)
			for _, i := range ordered {
				out = append(out, paths[i])
				cur = paths[i].End()
			}
		}
	}
	return out
}

// splitByKind partitions a tool group into contiguous runs per operation
// kind, in order of first appearance.
func splitByKind(paths []Toolpath, idx []int) [][]int {
	var kinds []OpKind
	byKind := make(map[OpKind][]int)
	for _, i := range idx {
		k := paths[i].Kind
		if _, ok := byKind[k]; !ok {
			kinds = append(kinds, k)
		}
		byKind[k] = append(byKind[k], i)
	}
	out := make([][]int, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, byKind[k])
	}
	return out
}

// orderSubgroup orders one kind-homogeneous run. Loop-cutting paths are
// layered by containment depth first; travel within a layer is
// nearest-neighbor.
func orderSubgroup(paths []Toolpath, idx []int, seed camlib.Point, opt OptimizeOptions) []int {
	if len(idx) <= 1 {
		return idx
	}
	if paths[idx[0]].Kind == OpDrilling {
		return nearestOrder(paths, idx, seed)
	}

	rings := make([]camlib.Ring, len(idx))
	for j, i := range idx {
		rings[j] = paths[i].loopRing()
	}
	depth := func(j int) int {
		if rings[j] == nil {
			return 0
		}
		probe := rings[j][0]
		d := 0
		for k, r := range rings {
			if k == j || r == nil {
				continue
			}
			if r.Contains(probe) {
				d++
			}
		}
		return d
	}
	local := make([]int, len(idx))
	for j := range idx {
		local[j] = j
	}
	layered := ordering.ByDepth(local, depth, !opt.OutsideFirst)

	// Nearest-neighbor within each depth layer, chaining the position.
	var out []int
	cur := seed
	for s := 0; s < len(layered); {
		e := s
		for e < len(layered) && depth(layered[e]) == depth(layered[s]) {
			e++
		}
		layer := make([]int, 0, e-s)
		for _, j := range layered[s:e] {
			layer = append(layer, idx[j])
		}
		ordered := nearestOrder(paths, layer, cur)
		out = append(out, ordered...)
		if len(ordered) > 0 {
			cur = paths[ordered[len(ordered)-1]].End()
		}
		s = e
	}
	return out
}

// nearestOrder runs the greedy travel heuristic over the given path
// indices.
func nearestOrder(paths []Toolpath, idx []int, seed camlib.Point) []int {
	starts := make([]camlib.Point, len(idx))
	ends := make([]camlib.Point, len(idx))
	for j, i := range idx {
		starts[j] = paths[i].Start()
		ends[j] = paths[i].End()
	}
	order := ordering.NearestNeighbor(seed, starts, ends)
	out := make([]int, len(idx))
	for j, o := range order {
		out[j] = idx[o]
	}
	return out
}
