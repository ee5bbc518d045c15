package images

import (
	"sort"
	"sync"
)

// RecentWindow remembers the last picked image ids so consecutive cards
// do not all show the same popular photo. Bounded FIFO.
type RecentWindow struct {
	mu    sync.Mutex
	ids   []int64
	index map[int64]bool
	cap   int
}

// NewRecentWindow creates a window holding up to capacity ids.
func NewRecentWindow(capacity int) *RecentWindow {
	if capacity <= 0 {
		capacity = 200
	}
	return &RecentWindow{index: make(map[int64]bool), cap: capacity}
}

// Contains reports whether id was recently picked.
func (w *RecentWindow) Contains(id int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index[id]
}

// Add records a picked id, evicting the oldest past capacity.
func (w *RecentWindow) Add(id int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.index[id] {
		return
	}
	w.ids = append(w.ids, id)
	w.index[id] = true
	if len(w.ids) > w.cap {
		evicted := w.ids[0]
		w.ids = w.ids[1:]
		delete(w.index, evicted)
	}
}

// Pick chooses the best hit: recently used ids are dropped while
// alternatives remain, then hits are ranked by likes and pixel area.
// Parameters:
//   - hits: candidate images.
//   - recent: window of recently picked ids, may be nil.
// Returns:
//   - *Hit: chosen image, nil when hits is empty.
func Pick(hits []Hit, recent *RecentWindow) *Hit {
	if len(hits) == 0 {
		return nil
	}

	candidates := hits
	if recent != nil {
		fresh := make([]Hit, 0, len(hits))
		for _, h := range hits {
			if !recent.Contains(h.ID) {
				fresh = append(fresh, h)
			}
		}
		if len(fresh) > 0 {
			candidates = fresh
		}
	}

	sorted := make([]Hit, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Likes != sorted[j].Likes {
			return sorted[i].Likes > sorted[j].Likes
		}
		return sorted[i].Width*sorted[i].Height > sorted[j].Width*sorted[j].Height
	})

	best := sorted[0]
	if recent != nil {
		recent.Add(best.ID)
	}
	return &best
}
