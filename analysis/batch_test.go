package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestBatchOrderPreserved(t *testing.T) {
	source := &stubSource{
		codes: map[common.Address]string{
			common.HexToAddress(addrA): "0x5d",
			common.HexToAddress(addrC): "0x",
		},
		errs: map[common.Address]error{
			common.HexToAddress(addrB): errors.New("connection refused"),
		},
	}
	batch := NewBatch(NewAnalyzer(source, 0), 4)
	results := batch.Run(context.Background(), []string{addrA, addrB, addrC})

	require.Len(t, results, 3)
	require.Equal(t, common.HexToAddress(addrA).Hex(), results[0].Address)
	require.Equal(t, common.HexToAddress(addrB).Hex(), results[1].Address)
	require.Equal(t, common.HexToAddress(addrC).Hex(), results[2].Address)

	require.True(t, results[0].Succeeded)
	require.True(t, results[0].UsesTargetFeature)
	require.False(t, results[1].Succeeded)
	require.Contains(t, results[1].ErrorMessage, "connection refused")
	require.True(t, results[2].Succeeded)
	require.False(t, results[2].UsesTargetFeature)

	s := Summarize(results)
	require.Equal(t, 3, s.Total)
	require.Equal(t, 1, s.Failed)
}

func TestBatchSequentialByDefault(t *testing.T) {
	source := &stubSource{codes: map[common.Address]string{
		common.HexToAddress(addrA): "0x5c",
	}}
	batch := NewBatch(NewAnalyzer(source, 0), 0)
	results := batch.Run(context.Background(), []string{addrA, addrA})

	require.Len(t, results, 2)
	for _, r := range results {
		require.True(t, r.Succeeded)
		require.Equal(t, uint64(1), r.TargetOpcodeCounts["tload"])
	}
}

func TestBatchCancellation(t *testing.T) {
	source := &stubSource{codes: map[common.Address]string{
		common.HexToAddress(addrA): "0x5d",
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := NewBatch(NewAnalyzer(source, 0), 2)
	results := batch.Run(ctx, []string{addrA, addrA, addrA})

	// Every input still gets a result; the cancelled ones carry the context
	// error instead of aborting the collection.
	require.Len(t, results, 3)
	for _, r := range results {
		require.False(t, r.Succeeded)
		require.Contains(t, r.ErrorMessage, context.Canceled.Error())
	}
}

func TestBatchEmptyInput(t *testing.T) {
	batch := NewBatch(NewAnalyzer(&stubSource{}, 0), 2)
	results := batch.Run(context.Background(), nil)
	require.Empty(t, results)
}
