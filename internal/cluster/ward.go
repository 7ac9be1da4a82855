package cluster

import "math"

// merge records a single merge step in the dendrogram. Cluster IDs follow
// the usual convention: 0..n-1 are the input points, n+step is the cluster
// formed at that step.
type merge struct {
	a, b     int
	distance float64
	size     int
}

// pairwiseDistances computes the dense squared Euclidean distance matrix.
func pairwiseDistances(vectors [][]float64) [][]float64 {
	n := len(vectors)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var d float64
			for k := range vectors[i] {
				diff := vectors[i][k] - vectors[j][k]
				d += diff * diff
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist
}

// wardLinkage performs Ward's agglomerative clustering with the
// Lance-Williams recurrence over squared distances. The merged cluster reuses
// the slot of its first member. Returns n-1 merges with Euclidean distances.
func wardLinkage(dist [][]float64) []merge {
	n := len(dist)
	if n < 2 {
		return nil
	}

	d := make([][]float64, n)
	for i := range dist {
		d[i] = append([]float64(nil), dist[i]...)
	}
	id := make([]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range id {
		id[i] = i
		size[i] = 1
		active[i] = true
	}

	merges := make([]merge, 0, n-1)
	for step := 0; step < n-1; step++ {
		minDist := math.MaxFloat64
		minI, minJ := -1, -1
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d[i][j] < minDist {
					minDist = d[i][j]
					minI, minJ = i, j
				}
			}
		}

		ni := float64(size[minI])
		nj := float64(size[minJ])
		for k := 0; k < n; k++ {
			if !active[k] || k == minI || k == minJ {
				continue
			}
			nk := float64(size[k])
			v := ((nk+ni)*d[minI][k] + (nk+nj)*d[minJ][k] - nk*minDist) / (nk + ni + nj)
			d[minI][k] = v
			d[k][minI] = v
		}

		merges = append(merges, merge{
			a:        id[minI],
			b:        id[minJ],
			distance: math.Sqrt(max(minDist, 0)),
			size:     size[minI] + size[minJ],
		})
		id[minI] = n + step
		size[minI] += size[minJ]
		active[minJ] = false
	}
	return merges
}

// cutDendrogram assigns cluster labels by cutting the dendrogram at a
// threshold. Labels are numbered 0.. in order of first point.
func cutDendrogram(merges []merge, n int, threshold float64) []int {
	if n == 0 {
		return []int{}
	}
	parent := make([]int, 2*n-1)
	for i := range parent {
		parent[i] = i
	}

	for step, m := range merges {
		if m.distance > threshold {
			continue
		}
		c := n + step
		parent[find(parent, m.a)] = c
		parent[find(parent, m.b)] = c
	}

	labels := make([]int, n)
	remap := make(map[int]int)
	for i := 0; i < n; i++ {
		root := find(parent, i)
		l, ok := remap[root]
		if !ok {
			l = len(remap)
			remap[root] = l
		}
		labels[i] = l
	}
	return labels
}

// find resolves the root of i with path compression.
func find(parent []int, i int) int {
	for parent[i] != i {
		parent[i] = parent[parent[i]]
		i = parent[i]
	}
	return i
}
