package ledger

// AuxTrack is the parallel track (audio chunks) recorded alongside video.
// The ledger only mirrors its length; it never reads the items.
type AuxTrack interface {
	Len() int
	// TruncateTo drops every item at index >= n.
	TruncateTo(n int)
}

// NopAux is used when nothing is recorded alongside video.
type NopAux struct{}

func (NopAux) Len() int { return 0 }
func (NopAux) TruncateTo(int) {}

// Counter is an AuxTrack that only counts items.
type Counter struct {
	n int
}

func (c *Counter) Add(k int) {
	c.n += k
}

func (c *Counter) Len() int {
	return c.n
}

func (c *Counter) TruncateTo(n int) {
	if n < c.n {
		c.n = n
	}
}
