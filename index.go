package trackz

// keyedIndex is a multi-map from key hash to the live events sharing that
// hash. Collisions across distinct keys are expected; callers disambiguate
// with the tracker's MatchFunc on the full key, never the hash alone.
//
// Removing an event from the index is deliberately separate from returning it
// to the pool: retirement detaches first (so concurrent lookups stop seeing
// the event), snapshots, and only then recycles the slot.
//
// The index is not internally synchronized: every method must be called with
// the tracker lock held.
type keyedIndex struct {
	buckets map[uint32][]*record
	count   int
}

func newKeyedIndex() *keyedIndex {
	return &keyedIndex{
		buckets: make(map[uint32][]*record),
	}
}

// insert adds a fully-initialized record under its cached key hash.
func (ix *keyedIndex) insert(r *record) {
	ix.buckets[r.keyHash] = append(ix.buckets[r.keyHash], r)
	ix.count++
}

// remove detaches the record from its bucket. Returns false if the record is
// not indexed, which indicates a retirement bug in the caller.
func (ix *keyedIndex) remove(r *record) bool {
	bucket := ix.buckets[r.keyHash]
	for i, member := range bucket {
		if member == r {
			ix.unlink(r.keyHash, bucket, i)
			return true
		}
	}
	return false
}

// visitBucket iterates the bucket for hash, invoking visit on each member.
// A true return from visit unlinks the current member before iteration
// continues; the visit itself is responsible for releasing the record.
func (ix *keyedIndex) visitBucket(hash uint32, visit func(*record) bool) {
	bucket := ix.buckets[hash]
	for i := 0; i < len(bucket); {
		if visit(bucket[i]) {
			bucket = ix.unlink(hash, bucket, i)
		} else {
			i++
		}
	}
}

// visitAll iterates every indexed record, bucket by bucket, with the same
// unlink-on-true contract as visitBucket. Used by the garbage collector and
// by Close.
func (ix *keyedIndex) visitAll(visit func(*record) bool) {
	for hash := range ix.buckets {
		ix.visitBucket(hash, visit)
	}
}

// size returns the number of indexed records.
func (ix *keyedIndex) size() int {
	return ix.count
}

// unlink removes bucket[i] with a swap-delete and stores (or deletes) the
// shrunk bucket. Bucket order is not meaningful.
func (ix *keyedIndex) unlink(hash uint32, bucket []*record, i int) []*record {
	last := len(bucket) - 1
	bucket[i] = bucket[last]
	bucket[last] = nil
	bucket = bucket[:last]
	if len(bucket) == 0 {
		delete(ix.buckets, hash)
	} else {
		ix.buckets[hash] = bucket
	}
	ix.count--
	return bucket
}
