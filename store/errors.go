package store

import "fmt"

var (
	ErrConfig      = addPrefix("bad packet store capacity")
	ErrBadTruncate = addPrefix("truncate point is not a packet boundary in the live range")
	ErrStaleMark   = addPrefix("mark points at packets that are no longer buffered")
)

func addPrefix(errStr string) error {
	return fmt.Errorf("clipring err: %s", errStr)
}
