package reader

import (
	"fmt"
	"sync"

	"github.com/desertthunder/aleerpe/internal/shared"
)

// Driver names a writer of the current page.
type Driver int

const (
	// DriverReader is manual navigation by the user.
	DriverReader Driver = iota
	// DriverNarration is the player following the segment being voiced.
	DriverNarration
)

func (d Driver) String() string {
	if d == DriverNarration {
		return "narration"
	}
	return "reader"
}

// Navigator owns the current page index of a chapter.
//
// Page listeners run synchronously while the navigator lock is held, in the order pages change.
// They must not call back into the Navigator.
type Navigator struct {
	mu        sync.Mutex
	count     int
	current   int
	owner     Driver
	listeners []func(page int)
	events    emitter
}

// NewNavigator creates a [Navigator] positioned on the first of count pages.
func NewNavigator(count int) (*Navigator, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: chapter has no pages", shared.ErrPageOutOfRange)
	}
	return &Navigator{count: count}, nil
}

// OnPageChange registers fn to run after every page change.
func (n *Navigator) OnPageChange(fn func(page int)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, fn)
}

// Current returns the current page index.
func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Len returns the number of pages.
func (n *Navigator) Len() int {
	return n.count
}

// Owner returns the driver whose writes are currently obeyed.
func (n *Navigator) Owner() Driver {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.owner
}

// Claim hands the navigator to d.
func (n *Navigator) Claim(d Driver) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owner = d
}

// GoTo moves to index on behalf of the user, clamping it to the chapter bounds.
//
// Manual navigation always takes the navigator back from narration.
// It reports whether the page changed.
func (n *Navigator) GoTo(index int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.owner = DriverReader
	return n.setLocked(index)
}

// Next advances one page. It is a no-op on the last page.
func (n *Navigator) Next() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current >= n.count-1 {
		return false
	}
	n.owner = DriverReader
	return n.setLocked(n.current + 1)
}

// Prev goes back one page. It is a no-op on the first page.
func (n *Navigator) Prev() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current <= 0 {
		return false
	}
	n.owner = DriverReader
	return n.setLocked(n.current - 1)
}

// Follow moves to index on behalf of narration.
//
// The write is ignored while the user holds the navigator.
func (n *Navigator) Follow(index int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.owner != DriverNarration {
		return false
	}
	return n.setLocked(index)
}

func (n *Navigator) setLocked(index int) bool {
	index = clamp(index, 0, n.count-1)
	if index == n.current {
		return false
	}
	n.current = index
	for _, fn := range n.listeners {
		fn(index)
	}
	n.events.send(Event{Kind: EventPage, Page: index})
	return true
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
