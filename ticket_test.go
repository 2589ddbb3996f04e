package exclusive_test

import (
	"sync"
	"testing"
	"time"

	"github.com/oliverlee/exclusive"
)

// Given an array-slot mutex with N=4, when four goroutines each increment
// a shared counter 1,000 times, then the final value is exactly 4,000
// with no lost updates and no overflow.
func TestTicketMutexFourWritersNoLostUpdates(t *testing.T) {
	const (
		writers  = 4
		perWriter = 1000
	)

	mut := exclusive.NewTicketMutex(writers)
	counter := 0

	var wg sync.WaitGroup
	wg.Add(writers)
	for range writers {
		go func() {
			defer wg.Done()
			for range perWriter {
				tok, err := mut.Acquire()
				if err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				counter++
				mut.Release(tok)
			}
		}()
	}
	wg.Wait()

	if counter != writers*perWriter {
		t.Fatalf("counter = %d, want %d", counter, writers*perWriter)
	}
}

// Given an array-slot mutex with N=2 already held by one goroutine, when
// two more goroutines race to acquire it, exactly one immediately fails
// with ErrOverflow (its ticket wraps into the still-busy slot) while the
// other legitimately blocks until the holder releases, then acquires
// without error. A mutex only ever has one holder at a time, so "the
// other two hold" plays out sequentially, not concurrently.
func TestTicketMutexOverflowOnThirdConcurrentHolder(t *testing.T) {
	mut := exclusive.NewTicketMutex(2)

	tok0, err := mut.Acquire()
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	type outcome struct {
		tok exclusive.TicketToken
		err error
	}
	results := make(chan outcome, 2)
	for range 2 {
		go func() {
			tok, err := mut.Acquire()
			results <- outcome{tok: tok, err: err}
		}()
	}

	var overflowErr error
	select {
	case o := <-results:
		overflowErr = o.err
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for the overflowing acquirer")
	}
	if !exclusive.IsOverflow(overflowErr) {
		t.Fatalf("first concurrent result err = %v, want ErrOverflow", overflowErr)
	}

	select {
	case o := <-results:
		t.Fatalf("second concurrent acquirer returned early: tok=%+v err=%v", o.tok, o.err)
	case <-time.After(50 * time.Millisecond):
	}

	mut.Release(tok0)

	var held outcome
	select {
	case held = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for the blocked acquirer after release")
	}
	if held.err != nil {
		t.Fatalf("blocked acquirer err = %v, want nil", held.err)
	}
	mut.Release(held.tok)
}

// A freshly constructed mutex is immediately available: acquire succeeds
// without spinning, and round-tripping acquire/release returns it to a
// state indistinguishable, to an external observer, from a fresh mutex.
func TestTicketMutexRoundTrip(t *testing.T) {
	mut := exclusive.NewTicketMutex(4)

	for range 10 {
		tok, err := mut.Acquire()
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		mut.Release(tok)
	}
}
