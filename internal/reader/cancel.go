package reader

// Ticket identifies one dispatched asynchronous operation. The zero Ticket is never valid.
type Ticket uint64

// ticker issues tickets where only the most recently issued one is valid.
//
// It is not safe for concurrent use; the owning component guards it with its mutex.
type ticker struct {
	gen uint64
}

// Issue revokes every earlier ticket and returns a fresh one.
func (t *ticker) Issue() Ticket {
	t.gen++
	return Ticket(t.gen)
}

// Revoke invalidates every ticket issued so far.
func (t *ticker) Revoke() {
	t.gen++
}

// Valid reports whether tk is the latest ticket and has not been revoked.
func (t *ticker) Valid(tk Ticket) bool {
	return tk != 0 && uint64(tk) == t.gen
}
