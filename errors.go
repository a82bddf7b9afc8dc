package clipring

import (
	"fmt"

	"github.com/cqkv/clipring/ledger"
	"github.com/cqkv/clipring/store"
)

var (
	ErrConfig      = store.ErrConfig
	ErrBadTruncate = store.ErrBadTruncate

	ErrNoTake         = ledger.ErrNoTake
	ErrTakeInProgress = ledger.ErrTakeInProgress
	ErrStaleTake      = ledger.ErrStaleTake

	ErrNoSyncFrame      = addPrefix("no sync frame buffered")
	ErrWriterIO         = addPrefix("container writer failed")
	ErrNoFormat         = addPrefix("encoder has not reported an output format")
	ErrExportDirLocked  = addPrefix("export directory is used by another session")
	ErrExportInProgress = addPrefix("export is in progress")
	ErrSessionClosed    = addPrefix("session is closed")
)

func addPrefix(errStr string) error {
	return fmt.Errorf("clipring err: %s", errStr)
}
