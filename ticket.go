package exclusive

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// TicketMutex is a fair, FIFO mutual-exclusion lock built from a fixed
// ring of slots, dealt out in ticket order.
//
// Acquire draws the next ticket with a single fetch-add and spins only on
// its own slot's ready flag, so unlike a plain ticket lock every waiter
// polls a distinct cache line. The number of slots bounds the number of
// threads that may hold or wait for the lock at once: an acquirer that
// draws a ticket for a slot still marked busy (a full ring) receives
// [ErrOverflow] instead of blocking forever.
//
// Capacity rounds up to the next power of 2 so slot indexing is a mask
// instead of a modulo.
type TicketMutex struct {
	_    noCopy
	_    pad
	tail atomix.Uint64 // next ticket to hand out (FAA)
	_    pad
	slots []ticketSlot
	mask  uint64
}

type ticketSlot struct {
	_     pad
	ready atomix.Bool // holder of this ticket may proceed
	busy  atomix.Bool // a thread currently holds this ticket
	_     padShort
}

// TicketToken is the handle returned by [TicketMutex.Acquire], to be passed
// back to [TicketMutex.Release]. It carries no exported fields; callers
// must treat it opaquely.
type TicketToken struct {
	slot uint64
}

// NewTicketMutex creates a ticket mutex with room for n concurrent
// acquirers. n rounds up to the next power of 2 and must be at least 1.
func NewTicketMutex(n int) *TicketMutex {
	if n < 1 {
		panic("exclusive: ticket mutex slot count must be >= 1")
	}
	size := uint64(roundToPow2(n))

	m := &TicketMutex{
		slots: make([]ticketSlot, size),
		mask:  size - 1,
	}
	for i := range m.slots[1:] {
		m.slots[1+i].ready.StoreRelaxed(false)
		m.slots[1+i].busy.StoreRelaxed(false)
	}
	m.slots[0].busy.StoreRelaxed(false)
	m.slots[0].ready.StoreRelease(true)
	return m
}

// Acquire blocks until the caller is granted exclusive access, then
// returns a token identifying the granted slot.
//
// Acquire returns [ErrOverflow] if more callers are concurrently
// acquiring than the mutex has slots for: the drawn ticket's slot is
// still marked busy from a prior, not-yet-released cycle.
func (m *TicketMutex) Acquire() (TicketToken, error) {
	idx := (m.tail.AddRelaxed(1) - 1) & m.mask

	sw := spin.Wait{}
	for !m.slots[idx].ready.LoadAcquire() {
		sw.Once()
	}

	if !m.slots[idx].busy.CompareAndSwapAcqRel(false, true) {
		return TicketToken{}, ErrOverflow
	}

	return TicketToken{slot: idx}, nil
}

// Release relinquishes the slot identified by tok, handing the lock to
// the next ticket in FIFO order.
//
// Release must be called exactly once per successful Acquire, using the
// token that call returned. Calling it with any other token, or more
// than once, corrupts the ring.
func (m *TicketMutex) Release(tok TicketToken) {
	idx := tok.slot
	next := (idx + 1) & m.mask

	m.slots[idx].ready.StoreRelaxed(false)
	m.slots[next].busy.StoreRelaxed(false)
	m.slots[next].ready.StoreRelease(true)
}
