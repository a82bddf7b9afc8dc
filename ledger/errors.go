package ledger

import "fmt"

var (
	ErrNoTake         = addPrefix("no take to finish or remove")
	ErrTakeInProgress = addPrefix("a take is still recording")
	ErrStaleTake      = addPrefix("take bounds were overwritten by newer packets")
)

func addPrefix(errStr string) error {
	return fmt.Errorf("clipring err: %s", errStr)
}
