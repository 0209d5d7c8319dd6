package wakehold

// Claim is one participant's vote on a shared hold.
// The hold stays wanted while any claim is active.
type Claim struct {
	hold *Hold
}

// Claim creates a new inactive claim on the hold.
func (h *Hold) Claim() *Claim {
	c := &Claim{hold: h}
	h.mu.Lock()
	h.claims[c] = false
	h.mu.Unlock()
	return c
}

// SetActive sets this claim's vote.
func (c *Claim) SetActive(active bool) {
	h := c.hold
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.claims[c]; !ok {
		return
	}
	h.claims[c] = active
	h.setWantedLocked(h.anyClaimActiveLocked())
}

// Release withdraws the claim from the hold.
func (c *Claim) Release() {
	h := c.hold
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.claims[c]; !ok {
		return
	}
	delete(h.claims, c)
	h.setWantedLocked(h.anyClaimActiveLocked())
}

func (h *Hold) anyClaimActiveLocked() bool {
	for _, active := range h.claims {
		if active {
			return true
		}
	}
	return false
}
