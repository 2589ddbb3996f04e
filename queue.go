package exclusive

import "code.hybscloud.com/atomix"

// clhNode is one slot of a CLHMutex's fixed node pool.
//
// next and pred are 1-based indices into the owning CLHMutex's node pool;
// 0 stands for nil. next links a node into the free queue while it is
// available; pred links a node to the predecessor it must wait on once it
// has joined the wait queue, and is only meaningful after the node has
// been abandoned due to a timeout.
type clhNode struct {
	_      pad
	next   atomix.Uint64 // free-queue link, 0 = nil
	pred   uint64        // predecessor to inherit on abandonment, 0 = none
	locked atomix.Bool   // set while the node's owner intends to hold the lock
	_      padShort
}

// freeQueue is a Michael–Scott style lock-free FIFO of recyclable nodes,
// addressed by 1-based index into a shared node pool instead of pointers.
// It exists solely to back a CLHMutex's node pool and is never used
// concurrently with more producers pushing than the pool has capacity for.
type freeQueue struct {
	_    pad
	head atomix.Uint64
	_    pad
	tail atomix.Uint64
	_    pad
	pool []clhNode
}

// newFreeQueue seeds the queue with every node in pool already chained,
// mirroring the constructor of the original's queue type: it takes
// ownership of the whole pool and starts as a fully populated free list.
func newFreeQueue(pool []clhNode) *freeQueue {
	q := &freeQueue{pool: pool}

	q.head.StoreRelaxed(1)
	for i := 1; i < len(pool); i++ {
		pool[i-1].next.StoreRelaxed(uint64(i + 1))
	}
	pool[len(pool)-1].next.StoreRelaxed(0)
	q.tail.StoreRelaxed(uint64(len(pool)))

	return q
}

// push returns idx to the free queue. It swings the tail to idx with a
// CAS, retrying if a concurrent push moved the tail first, then links the
// old tail to idx.
func (q *freeQueue) push(idx uint64) {
	q.pool[idx-1].next.StoreRelaxed(0)

	t := q.tail.LoadRelaxed()
	for !q.tail.CompareAndSwapAcqRel(t, idx) {
		t = q.tail.LoadRelaxed()
	}

	// (Q1) link the old tail to the new tail.
	// synchronizes with (Q3) in tryPop.
	q.pool[t-1].next.StoreRelease(idx)
}

// tryPop removes and returns a node index from the free queue, or 0 if
// the queue is empty.
func (q *freeQueue) tryPop() uint64 {
	// (Q2) grab the head node.
	// synchronizes with (Q4).
	h := q.head.LoadAcquire()

	for {
		// (Q3) if head has no successor, the queue is empty.
		// synchronizes with (Q1).
		next := q.pool[h-1].next.LoadAcquire()
		if next == 0 {
			return 0
		}

		// (Q4) advance head past the node being popped.
		// synchronizes with (Q2).
		if q.head.CompareAndSwapAcqRel(h, next) {
			break
		}
		h = q.head.LoadAcquire()
	}

	return h
}
