package transform

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Segmenter partitions rows of a numeric matrix into k clusters with Lloyd's
// k-means, initialized by k-means++ from an explicit seed. It runs several
// restarts and keeps the labeling with the lowest inertia.
type Segmenter struct {
	k        int
	seed     uint64
	maxIter  int
	restarts int
}

// NewSegmenter creates a segmenter. maxIter caps Lloyd iterations per restart.
func NewSegmenter(k int, seed uint64, maxIter, restarts int) *Segmenter {
	if maxIter < 1 {
		maxIter = 1
	}

	if restarts < 1 {
		restarts = 1
	}

	return &Segmenter{k: k, seed: seed, maxIter: maxIter, restarts: restarts}
}

// Segmentation is the outcome of a FitPredict call.
type Segmentation struct {
	Labels    []int
	Centroids [][]float64
	Inertia   float64
	// Converged is false when the best restart stopped at the iteration cap.
	Converged bool
}

// FitPredict returns one label in [0, k) per matrix row, in row order.
// Identical input and seed always give identical labels.
func (s *Segmenter) FitPredict(matrix [][]float64) ([]int, error) {
	seg, err := s.Fit(matrix)
	if err != nil {
		return nil, err
	}

	return seg.Labels, nil
}

// Fit runs the clustering and returns labels with centroids and inertia.
func (s *Segmenter) Fit(matrix [][]float64) (*Segmentation, error) {
	if s.k < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidClusterCount, s.k)
	}

	if len(matrix) == 0 {
		return nil, ErrNoCustomers
	}

	if s.k > len(matrix) {
		return nil, fmt.Errorf("%w: k=%d, customers=%d", ErrTooFewCustomers, s.k, len(matrix))
	}

	dim := len(matrix[0])
	for i, row := range matrix {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrMatrixShape, i, len(row), dim)
		}
	}

	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))

	var best *Segmentation

	for r := 0; r < s.restarts; r++ {
		centroids := s.initCentroids(matrix, rng)
		seg := s.lloyd(matrix, centroids)

		if best == nil || seg.Inertia < best.Inertia {
			best = seg
		}
	}

	return best, nil
}

// initCentroids picks k starting centroids with k-means++ seeding.
func (s *Segmenter) initCentroids(points [][]float64, rng *rand.Rand) [][]float64 {
	n := len(points)
	centroids := make([][]float64, 0, s.k)
	centroids = append(centroids, clone(points[rng.IntN(n)]))

	dist := make([]float64, n)
	for i, p := range points {
		dist[i] = sqDist(p, centroids[0])
	}

	for len(centroids) < s.k {
		total := 0.0
		for _, d := range dist {
			total += d
		}

		next := rng.IntN(n)

		if total > 0 {
			next = weightedIndex(dist, rng.Float64()*total)
		}

		c := clone(points[next])
		centroids = append(centroids, c)

		for i, p := range points {
			if d := sqDist(p, c); d < dist[i] {
				dist[i] = d
			}
		}
	}

	return centroids
}

// weightedIndex returns the first index with positive weight whose cumulative
// weight reaches target. If rounding leaves the sum short of target, the last
// positive-weight index is returned, so a zero-weight point is never drawn.
// At least one weight must be positive.
func weightedIndex(weights []float64, target float64) int {
	next := -1
	cum := 0.0

	for i, w := range weights {
		if w <= 0 {
			continue
		}

		cum += w
		next = i

		if cum >= target {
			break
		}
	}

	return next
}

func (s *Segmenter) lloyd(points [][]float64, centroids [][]float64) *Segmentation {
	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = -1
	}

	converged := false

	for iter := 0; iter < s.maxIter; iter++ {
		if !assign(points, centroids, labels) {
			converged = true
			break
		}

		centroids = recompute(points, labels, centroids)
	}

	inertia := 0.0
	for i, p := range points {
		inertia += sqDist(p, centroids[labels[i]])
	}

	return &Segmentation{
		Labels:    labels,
		Centroids: centroids,
		Inertia:   inertia,
		Converged: converged,
	}
}

// assign moves every point to its nearest centroid (lowest index on ties) and
// reports whether any label changed.
func assign(points, centroids [][]float64, labels []int) bool {
	changed := false

	for i, p := range points {
		best, bestDist := 0, math.Inf(1)

		for c, centroid := range centroids {
			if d := sqDist(p, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}

		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}

	return changed
}

// recompute returns the mean of each cluster. An empty cluster is re-seeded at
// the point farthest from its current centroid.
func recompute(points [][]float64, labels []int, previous [][]float64) [][]float64 {
	k, dim := len(previous), len(points[0])

	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, dim)
	}

	counts := make([]int, k)

	for i, p := range points {
		c := labels[i]
		counts[c]++

		for j, v := range p {
			sums[c][j] += v
		}
	}

	for c := range sums {
		if counts[c] == 0 {
			sums[c] = clone(points[farthestPoint(points, labels, previous)])
			continue
		}

		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}

	return sums
}

func farthestPoint(points [][]float64, labels []int, centroids [][]float64) int {
	idx, far := 0, -1.0

	for i, p := range points {
		if d := sqDist(p, centroids[labels[i]]); d > far {
			idx, far = i, d
		}
	}

	return idx
}

func sqDist(a, b []float64) float64 {
	sum := 0.0

	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

func clone(v []float64) []float64 {
	return append([]float64(nil), v...)
}
