package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
	"github.com/unistock/stockroom/core/ledger"
)

var blockColumns = []string{
	"id", "chain_key", "idx", "event_type", "payload", "previous_hash", "hash", "actor", "is_verified", "created_at",
}

type blockRow struct {
	ID           string         `db:"id"`
	ChainKey     string         `db:"chain_key"`
	Index        int64          `db:"idx"`
	EventType    string         `db:"event_type"`
	Payload      types.JSONText `db:"payload"`
	PreviousHash string         `db:"previous_hash"`
	Hash         string         `db:"hash"`
	Actor        string         `db:"actor"`
	IsVerified   bool           `db:"is_verified"`
	CreatedAt    time.Time      `db:"created_at"`
}

func (row blockRow) toBlock() ledger.Block {
	return ledger.Block{
		ID:           row.ID,
		ChainKey:     row.ChainKey,
		Index:        row.Index,
		EventType:    row.EventType,
		Payload:      []byte(row.Payload),
		PreviousHash: row.PreviousHash,
		Hash:         row.Hash,
		Timestamp:    row.CreatedAt.UTC(),
		IsVerified:   row.IsVerified,
		Actor:        row.Actor,
	}
}

type ledgerRepository struct {
	db core.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(db core.DB) *ledgerRepository {
	return &ledgerRepository{db: db}
}

// AppendBlock takes a transaction-level advisory lock on the chain key
// so that concurrent appends to the same chain are applied one after the other.
func (repo ledgerRepository) AppendBlock(ctx context.Context, chainKey string, build ledger.BuildFunc) (ledger.Block, error) {
	var block ledger.Block
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", chainKey); err != nil {
			return errors.Wrap(err, "locking chain")
		}

		var prev *ledger.Block
		var rows []blockRow
		q := psql.Select(blockColumns...).From("ledger_block").Where(sq.Eq{"chain_key": chainKey}).OrderBy("idx DESC").Limit(1)
		if err := selectRows(ctx, tx, &rows, q); err != nil {
			return errors.Wrap(err, "finding last block")
		}
		if len(rows) > 0 {
			last := rows[0].toBlock()
			prev = &last
		}

		var err error
		if block, err = build(prev); err != nil {
			return err
		}
		block.ID = uuid.New().String()

		ins := psql.Insert("ledger_block").
			Columns(blockColumns...).
			Values(
				block.ID, block.ChainKey, block.Index, block.EventType, types.JSONText(block.Payload), block.PreviousHash,
				block.Hash, block.Actor, block.IsVerified, block.Timestamp)
		if _, err = execQuery(ctx, tx, ins); err != nil {
			return errors.Wrap(err, "inserting block")
		}
		return nil
	})
	if err != nil {
		return ledger.Block{}, err
	}
	return block, nil
}

func (repo ledgerRepository) QueryChain(ctx context.Context, chainKey string) ([]ledger.Block, error) {
	var rows []blockRow
	q := psql.Select(blockColumns...).From("ledger_block").Where(sq.Eq{"chain_key": chainKey}).OrderBy("idx ASC")
	if err := selectRows(ctx, repo.db, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying chain")
	}
	blocks := make([]ledger.Block, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, row.toBlock())
	}
	return blocks, nil
}

func (repo ledgerRepository) QueryChainKeys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	q := psql.Select("chain_key").
		Distinct().
		From("ledger_block").
		Where(sq.Like{"chain_key": escapeLike(prefix) + "%"}).
		OrderBy("chain_key ASC")
	if err := selectRows(ctx, repo.db, &keys, q); err != nil {
		return nil, errors.Wrap(err, "querying chain keys")
	}
	return keys, nil
}
