package ledger

import (
	"errors"
	"fmt"

	"github.com/cqkv/clipring/model"
	"github.com/cqkv/clipring/store"
)

// Ledger records where each take starts and ends in the packet store so the
// most recent takes can be removed without re-encoding anything.
//
// The entries are weak references into the store; RemoveLastTake refuses to
// act on bounds the store has already overwritten. Not thread-safe.
type Ledger struct {
	st    *store.Store
	aux   AuxTrack
	takes []model.Take
}

func New(st *store.Store, aux AuxTrack) *Ledger {
	if aux == nil {
		aux = NopAux{}
	}
	return &Ledger{st: st, aux: aux}
}

// BeginTake opens a new take at the current store position.
func (l *Ledger) BeginTake(nowMs int64) error {
	if l.Recording() {
		return ErrTakeInProgress
	}
	start := l.st.Mark()
	start.AuxIndex = l.aux.Len()
	start.WallClockMs = nowMs
	l.takes = append(l.takes, model.Take{Start: start})
	return nil
}

// EndTake closes the open take. auxIndex is the aux track length at the end
// of the take.
func (l *Ledger) EndTake(nowMs int64, auxIndex int) error {
	if !l.Recording() {
		return ErrNoTake
	}
	end := l.st.Mark()
	end.AuxIndex = auxIndex
	end.WallClockMs = nowMs

	last := &l.takes[len(l.takes)-1]
	last.End = end
	last.Finished = true
	return nil
}

// RemoveLastTake drops the newest take, rolling the store and the aux track
// back to where the previous take ended.
func (l *Ledger) RemoveLastTake() error {
	n := len(l.takes)
	if n == 0 {
		return ErrNoTake
	}
	if l.Recording() {
		return ErrTakeInProgress
	}

	if n == 1 {
		l.st.Reset()
		l.aux.TruncateTo(0)
		l.takes = l.takes[:0]
		return nil
	}

	prev := l.takes[n-2]
	if err := l.st.TruncateToMark(prev.End); err != nil {
		if errors.Is(err, store.ErrStaleMark) {
			return fmt.Errorf("%w: %v", ErrStaleTake, err)
		}
		return err
	}
	l.aux.TruncateTo(prev.End.AuxIndex)
	l.takes = l.takes[:n-1]
	return nil
}

// TotalRecordedMs sums the wall clock length of the finished takes.
func (l *Ledger) TotalRecordedMs() int64 {
	var total int64
	for i := range l.takes {
		total += l.takes[i].DurationMs()
	}
	return total
}

// Recording reports whether the last take is still open.
func (l *Ledger) Recording() bool {
	return len(l.takes) > 0 && !l.takes[len(l.takes)-1].Finished
}

func (l *Ledger) Len() int {
	return len(l.takes)
}

// Takes returns a copy of the entries, oldest first.
func (l *Ledger) Takes() []model.Take {
	return append([]model.Take(nil), l.takes...)
}

func (l *Ledger) Last() (model.Take, bool) {
	if len(l.takes) == 0 {
		return model.Take{}, false
	}
	return l.takes[len(l.takes)-1], true
}

func (l *Ledger) Aux() AuxTrack {
	return l.aux
}
