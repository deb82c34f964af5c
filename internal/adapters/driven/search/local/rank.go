package local

import (
	"container/heap"
	"math"

	"github.com/custodia-labs/imgsearch/internal/core/domain"
)

// Cosine returns the cosine similarity of a and b, or 0 when either is zero
// or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SquaredDistance returns the squared L2 distance of a and b, or +Inf when
// their lengths differ.
func SquaredDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Score maps cosine similarity to the [0, 1] score OpenSearch reports for cosinesimil.
func Score(cosine float64) float64 {
	return (1 + cosine) / 2
}

// Ranker keeps the k best hits seen so far.
type Ranker struct {
	query []float32
	k     int
	seq   int
	h     hitHeap
}

// NewRanker creates a ranker for query. k <= 0 uses domain.DefaultK.
func NewRanker(query []float32, k int) *Ranker {
	if k <= 0 {
		k = domain.DefaultK
	}
	return &Ranker{query: query, k: k}
}

// scoreEpsilon is the score difference below which two hits tie.
const scoreEpsilon = 1e-9

// Offer scores doc and keeps it if it is among the k best.
// Hits whose scores tie rank by L2 distance to the query, then by arrival.
func (r *Ranker) Offer(id string, doc domain.ImageDocument) {
	cos := Cosine(r.query, doc.Embedding)
	dist := SquaredDistance(r.query, doc.Embedding)
	if dist == 0 && cos != 0 {
		cos = 1
	}
	item := rankedHit{
		hit:  domain.Hit{ID: id, Score: Score(cos), Document: doc},
		dist: dist,
		seq:  r.seq,
	}
	r.seq++

	if r.h.Len() < r.k {
		heap.Push(&r.h, item)
		return
	}
	if worse(r.h[0], item) {
		heap.Pop(&r.h)
		heap.Push(&r.h, item)
	}
}

// Hits returns the kept hits, best first.
func (r *Ranker) Hits() []domain.Hit {
	out := make([]domain.Hit, r.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&r.h).(rankedHit).hit
	}
	return out
}

type rankedHit struct {
	hit  domain.Hit
	dist float64
	seq  int
}

// worse reports whether a ranks below b.
func worse(a, b rankedHit) bool {
	if math.Abs(a.hit.Score-b.hit.Score) > scoreEpsilon {
		return a.hit.Score < b.hit.Score
	}
	if a.dist != b.dist {
		return a.dist > b.dist
	}
	return a.seq > b.seq
}

// hitHeap is a min-heap on rank: the worst kept hit sits at the root.
type hitHeap []rankedHit

var _ heap.Interface = (*hitHeap)(nil)

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) {
	*h = append(*h, x.(rankedHit))
}

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
