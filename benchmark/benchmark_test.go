package benchmark

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqkv/clipring"
	"github.com/cqkv/clipring/encoder"
	"github.com/cqkv/clipring/model"
	"github.com/cqkv/clipring/store"
)

// 6 Mbps at 15 fps is about 50 kB per frame
var frame = make([]byte, 50_000)

func newStore(b *testing.B, policy store.OverflowPolicy) *store.Store {
	cfg := clipring.DefaultConfig()
	st, err := store.New(cfg.ArenaCapacity(), cfg.MetaSlots(), store.WithOverflowPolicy(policy))
	require.NoError(b, err)
	return st
}

// Benchmark_TryAppend .
func Benchmark_TryAppend(b *testing.B) {
	st := newStore(b, store.PolicyEvictOldest)

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(frame)))

	for i := 0; i < b.N; i++ {
		var flags model.Flags
		if i%15 == 0 {
			flags = model.FlagSyncFrame
		}
		assert.True(b, st.TryAppend(frame, flags, int64(i)*66_666))
	}
}

// Benchmark_ReadPacket .
func Benchmark_ReadPacket(b *testing.B) {
	st := newStore(b, store.PolicyEvictOldest)
	for i := 0; i < 1000; i++ {
		st.TryAppend(frame, model.FlagSyncFrame, int64(i))
	}

	b.ResetTimer()
	b.ReportAllocs()
	idx, _ := st.OldestSyncFrameIndex()
	for i := 0; i < b.N; i++ {
		data, _ := st.ReadPacket(idx)
		if len(data) != len(frame) {
			b.Fatal("short packet")
		}
		next, ok := st.NextIndex(idx)
		if !ok {
			next, _ = st.OldestSyncFrameIndex()
		}
		idx = next
	}
}

// Benchmark_Export .
func Benchmark_Export(b *testing.B) {
	cfg := clipring.DefaultConfig()
	cfg.OutputDir = b.TempDir()
	enc := encoder.NewSynthetic(model.Format{
		Width:     cfg.Width,
		Height:    cfg.Height,
		FrameRate: cfg.FrameRate,
		BitRate:   cfg.BitRate,
	}, cfg.KeyframeIntervalSec)
	sess, err := clipring.Open(enc, clipring.WithConfig(cfg), clipring.WithMaxRecordDuration(0))
	require.NoError(b, err)
	defer sess.Close()

	require.NoError(b, sess.BeginTake())
	for i := 0; i < cfg.FrameRate*10; i++ {
		require.NoError(b, enc.Feed())
		sess.FrameAvailableSoon()
	}
	require.NoError(b, sess.EndTake())

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		res := sess.Export(context.Background(), filepath.Join(cfg.OutputDir, "bench.clp"))
		if res.Err != nil {
			b.Fatal(res.Err)
		}
	}
}
