package buffer

import "container/list"

// lruReplacer tracks which buffer frames are eligible for eviction and
// picks the least-recently-used evictable frame when asked. It completes
// the shape the teacher's BufferPoolManager already calls into
// (recordAccess / setEvictable / evict) without ever defining: every Pin
// records an access and marks the frame non-evictable; every Unpin that
// drops the pin count to zero marks it evictable again.
type lruReplacer struct {
	lru       *list.List
	elems     map[int]*list.Element
	evictable map[int]bool
}

func newLRUReplacer() *lruReplacer {
	return &lruReplacer{
		lru:       list.New(),
		elems:     make(map[int]*list.Element),
		evictable: make(map[int]bool),
	}
}

// recordAccess moves frameID to the most-recently-used end, registering it
// if this is its first access.
func (r *lruReplacer) recordAccess(frameID int) {
	if e, ok := r.elems[frameID]; ok {
		r.lru.MoveToBack(e)
		return
	}
	r.elems[frameID] = r.lru.PushBack(frameID)
}

// setEvictable marks whether frameID may be chosen by evict.
func (r *lruReplacer) setEvictable(frameID int, evictable bool) {
	r.evictable[frameID] = evictable
}

// evict picks the least-recently-used evictable frame, removes it from
// tracking, and returns its id. ok is false if no frame is evictable.
func (r *lruReplacer) evict() (frameID int, ok bool) {
	for e := r.lru.Front(); e != nil; e = e.Next() {
		id := e.Value.(int)
		if r.evictable[id] {
			r.lru.Remove(e)
			delete(r.elems, id)
			delete(r.evictable, id)
			return id, true
		}
	}
	return 0, false
}

// forget drops all tracking for frameID, e.g. after it is repurposed for a
// different page outside the normal pin/unpin path.
func (r *lruReplacer) forget(frameID int) {
	if e, ok := r.elems[frameID]; ok {
		r.lru.Remove(e)
		delete(r.elems, frameID)
	}
	delete(r.evictable, frameID)
}

// size reports how many frames are currently evictable.
func (r *lruReplacer) size() int {
	n := 0
	for _, v := range r.evictable {
		if v {
			n++
		}
	}
	return n
}
