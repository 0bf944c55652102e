package inmemdb

import (
	"context"
	"slices"
	"strings"

	"github.com/unistock/stockroom/core/ledger"
)

type ledgerRepository struct {
	db *DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db *DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

func (repo *ledgerRepository) AppendBlock(_ context.Context, chainKey string, build ledger.BuildFunc) (ledger.Block, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	chain := repo.db.chains[chainKey]
	var prev *ledger.Block
	if len(chain) > 0 {
		last := chain[len(chain)-1]
		prev = &last
	}
	block, err := build(prev)
	if err != nil {
		return ledger.Block{}, err
	}
	block.ID = newID()
	repo.db.chains[chainKey] = append(chain, block)
	return block, nil
}

func (repo *ledgerRepository) QueryChain(_ context.Context, chainKey string) ([]ledger.Block, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	blocks := slices.Clone(repo.db.chains[chainKey])
	if blocks == nil {
		blocks = []ledger.Block{}
	}
	slices.SortStableFunc(blocks, func(a, b ledger.Block) int {
		switch {
		case a.Index < b.Index:
			return -1
		case a.Index > b.Index:
			return 1
		}
		return 0
	})
	return blocks, nil
}

func (repo *ledgerRepository) QueryChainKeys(_ context.Context, prefix string) ([]string, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keys := make([]string, 0, len(repo.db.chains))
	for key, blocks := range repo.db.chains {
		if len(blocks) > 0 && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
