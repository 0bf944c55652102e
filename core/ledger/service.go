package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/unistock/stockroom/core"
)

// TopicBlockAppended is the topic of the events published on every append.
const TopicBlockAppended = "ledger.block_appended"

var ErrChainNotFound = core.NewNotFoundError("ledger chain")

type (
	// BuildFunc builds the next block of a chain given its current last block, nil for an empty chain.
	BuildFunc func(prev *Block) (Block, error)

	Repository interface {
		// AppendBlock stores the block built from the chain's last block.
		// Concurrent appends to the same chain are serialized.
		AppendBlock(ctx context.Context, chainKey string, build BuildFunc) (Block, error)
		// QueryChain returns the blocks of a chain sorted by Index.
		QueryChain(ctx context.Context, chainKey string) ([]Block, error)
		QueryChainKeys(ctx context.Context, prefix string) ([]string, error)
	}

	Service interface {
		Append(ctx context.Context, chainKey, eventType string, payload interface{}, actor string) (Block, error)
		Chain(ctx context.Context, chainKey string) ([]Block, error)
		Verify(ctx context.Context, chainKey string) (Report, error)
		// VerifyAll verifies every chain whose key starts with prefix.
		VerifyAll(ctx context.Context, prefix string) ([]Report, error)
	}

	service struct {
		repo      Repository
		publisher core.EventPublisher
	}
)

func NewService(repo Repository, publisher core.EventPublisher) Service {
	if publisher == nil {
		publisher = core.NopPublisher
	}
	return &service{repo: repo, publisher: publisher}
}

func (svc *service) Append(ctx context.Context, chainKey, eventType string, payload interface{}, actor string) (Block, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Block{}, errors.Wrap(err, "marshalling payload")
	}
	data = compactJSON(data)

	block, err := svc.repo.AppendBlock(ctx, chainKey, func(prev *Block) (Block, error) {
		b := Block{
			ChainKey:   chainKey,
			EventType:  eventType,
			Payload:    data,
			Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
			IsVerified: true,
			Actor:      actor,
		}
		if prev == nil {
			b.Index = 0
			b.PreviousHash = GenesisHash
		} else {
			b.Index = prev.Index + 1
			b.PreviousHash = prev.Hash
		}
		b.Hash = ComputeHash(b)
		return b, nil
	})
	if err != nil {
		return Block{}, errors.Wrapf(err, "appending %s to %s", eventType, chainKey)
	}

	svc.publisher.Publish(TopicBlockAppended, block)
	return block, nil
}

func (svc *service) Chain(ctx context.Context, chainKey string) ([]Block, error) {
	blocks, err := svc.repo.QueryChain(ctx, chainKey)
	if err != nil {
		return nil, err
	}
	if len(blocks) == 0 {
		return nil, ErrChainNotFound
	}
	return blocks, nil
}

func (svc *service) Verify(ctx context.Context, chainKey string) (Report, error) {
	blocks, err := svc.Chain(ctx, chainKey)
	if err != nil {
		return Report{}, err
	}
	return VerifyBlocks(chainKey, blocks), nil
}

func (svc *service) VerifyAll(ctx context.Context, prefix string) ([]Report, error) {
	keys, err := svc.repo.QueryChainKeys(ctx, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "querying chain keys")
	}
	reports := make([]Report, 0, len(keys))
	for _, key := range keys {
		blocks, err := svc.repo.QueryChain(ctx, key)
		if err != nil {
			return nil, errors.Wrapf(err, "querying chain %s", key)
		}
		reports = append(reports, VerifyBlocks(key, blocks))
	}
	return reports, nil
}
