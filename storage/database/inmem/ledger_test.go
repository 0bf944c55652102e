package inmemdb

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unistock/stockroom/core/ledger"
)

func TestLedgerRepository_concurrentAppends(t *testing.T) {
	db := Open()
	svc := ledger.NewService(NewLedgerRepository(db), nil)
	ctx := context.Background()
	const key, writers = "stock_in:1", 30

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Append(ctx, key, "stock_in.updated", map[string]int{"quantity": i}, "keeper")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	blocks, err := svc.Chain(ctx, key)
	require.NoError(t, err)
	require.Len(t, blocks, writers)
	for i, b := range blocks {
		assert.Equal(t, int64(i), b.Index)
		assert.True(t, b.IsVerified)
	}

	rep, err := svc.Verify(ctx, key)
	require.NoError(t, err)
	assert.True(t, rep.Valid, "%+v", rep.Issues)
	assert.Equal(t, writers, rep.Length)
}

func TestLedgerRepository_tampering(t *testing.T) {
	db := Open()
	svc := ledger.NewService(NewLedgerRepository(db), nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		key := "stock_in:" + id
		for _, event := range []string{"stock_in.created", "stock_in.updated", "stock_in.verified"} {
			_, err := svc.Append(ctx, key, event, map[string]string{"id": id}, "keeper")
			require.NoError(t, err)
		}
	}
	_, err := svc.Append(ctx, "other:1", "created", nil, "keeper")
	require.NoError(t, err)

	// rewrite the payload of the second block of chain b
	db.mutex.Lock()
	db.chains["stock_in:b"][1].Payload = json.RawMessage(`{"id":"b","quantity":1000}`)
	db.mutex.Unlock()

	reports, err := svc.VerifyAll(ctx, "stock_in:")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "stock_in:a", reports[0].ChainKey)
	assert.True(t, reports[0].Valid)

	assert.Equal(t, "stock_in:b", reports[1].ChainKey)
	assert.False(t, reports[1].Valid)
	require.NotEmpty(t, reports[1].Issues)
	assert.Equal(t, int64(1), reports[1].Issues[0].Index)

	keys, err := NewLedgerRepository(db).QueryChainKeys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"other:1", "stock_in:a", "stock_in:b"}, keys)
}

func TestLedgerRepository_unknownChain(t *testing.T) {
	repo := NewLedgerRepository(Open())
	blocks, err := repo.QueryChain(context.Background(), fmt.Sprintf("stock_in:%d", 404))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}
