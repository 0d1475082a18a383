// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chain provides a minimal in-memory block chain.
//
// The chain only tracks the best chain by height and a bounded pool of orphan blocks. It does
// not validate block contents and does not reorganize: a block whose parent is known but is not
// the current head is rejected.
package chain

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultMaxOrphans = 100

// Chain is an in-memory block chain. It is safe for concurrent use
type Chain struct {
	mutex      sync.RWMutex
	params     *chaincfg.Params
	logger     *slog.Logger
	maxOrphans int
	bestChain  []chainhash.Hash
	blocks     map[chainhash.Hash]*btcutil.Block
	orphans    *lru.Cache[chainhash.Hash, *btcutil.Block]
	// orphanChildren indexes the orphan pool by parent hash
	orphanChildren map[chainhash.Hash][]chainhash.Hash
}

// ChainOptionFunc is a type that represents functions that modify the Chain config
type ChainOptionFunc func(*Chain)

// New returns a Chain containing only the genesis block of the provided network
func New(params *chaincfg.Params, options ...ChainOptionFunc) (*Chain, error) {
	if params == nil || params.GenesisBlock == nil || params.GenesisHash == nil {
		return nil, ErrInvalidParams
	}
	c := &Chain{
		params:         params,
		maxOrphans:     DefaultMaxOrphans,
		blocks:         make(map[chainhash.Hash]*btcutil.Block),
		orphanChildren: make(map[chainhash.Hash][]chainhash.Hash),
	}
	// Apply provided options functions
	for _, option := range options {
		option(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	// The eviction callback also runs for explicit removals
	orphans, err := lru.NewWithEvict(c.maxOrphans, c.orphanRemoved)
	if err != nil {
		return nil, fmt.Errorf("create orphan pool: %w", err)
	}
	c.orphans = orphans
	genesis := btcutil.NewBlock(params.GenesisBlock)
	genesis.SetHeight(0)
	c.bestChain = append(c.bestChain, *params.GenesisHash)
	c.blocks[*params.GenesisHash] = genesis
	return c, nil
}

// WithMaxOrphans specifies the maximum number of orphan blocks held. The least recently used
// orphan is evicted when the pool is full
func WithMaxOrphans(maxOrphans int) ChainOptionFunc {
	return func(c *Chain) {
		if maxOrphans > 0 {
			c.maxOrphans = maxOrphans
		}
	}
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) ChainOptionFunc {
	return func(c *Chain) {
		c.logger = logger
	}
}

// Params returns the network parameters for the chain
func (c *Chain) Params() *chaincfg.Params {
	return c.params
}

// BestHeight returns the height of the chain head
func (c *Chain) BestHeight() int32 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return int32(len(c.bestChain) - 1) // #nosec G115
}

// BestHash returns the hash of the chain head
func (c *Chain) BestHash() chainhash.Hash {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.bestChain[len(c.bestChain)-1]
}

// GenesisHash returns the hash of the genesis block
func (c *Chain) GenesisHash() chainhash.Hash {
	return *c.params.GenesisHash
}

// HashAtHeight returns the hash of the best chain block at the provided height
func (c *Chain) HashAtHeight(height int32) (chainhash.Hash, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if height < 0 || int(height) >= len(c.bestChain) {
		return chainhash.Hash{}, false
	}
	return c.bestChain[height], true
}

// HaveBlock returns whether the block is part of the best chain
func (c *Chain) HaveBlock(hash chainhash.Hash) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	_, ok := c.blocks[hash]
	return ok
}

// Block returns the best chain block with the provided hash
func (c *Chain) Block(hash chainhash.Hash) (*btcutil.Block, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	block, ok := c.blocks[hash]
	return block, ok
}

// Connects returns whether the block would extend the chain head
func (c *Chain) Connects(block *btcutil.Block) bool {
	if block == nil || block.MsgBlock() == nil {
		return false
	}
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return block.MsgBlock().Header.PrevBlock == c.bestChain[len(c.bestChain)-1]
}

// AddBlock adds a block to the chain. When the block connects to the chain head, it returns
// the block followed by any orphans that were connected on top of it, in chain order. A block
// whose parent is unknown is held as an orphan and connected once its parent arrives. Blocks
// that are already known are ignored
func (c *Chain) AddBlock(block *btcutil.Block) ([]*btcutil.Block, error) {
	if block == nil || block.MsgBlock() == nil {
		return nil, ErrInvalidBlock
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	hash := *block.Hash()
	if _, ok := c.blocks[hash]; ok {
		return nil, nil
	}
	if c.orphans.Contains(hash) {
		return nil, nil
	}
	prevHash := block.MsgBlock().Header.PrevBlock
	if prevHash == c.bestHash() {
		c.connectBlock(block)
		return c.processOrphans(block), nil
	}
	if _, ok := c.blocks[prevHash]; ok {
		return nil, fmt.Errorf(
			"%w: block %s builds on %s",
			ErrForkNotSupported,
			hash.String(),
			prevHash.String(),
		)
	}
	c.orphans.Add(hash, block)
	c.orphanChildren[prevHash] = append(c.orphanChildren[prevHash], hash)
	c.logger.Debug(
		"added orphan block",
		"component", "chain",
		"hash", hash.String(),
		"prev_hash", prevHash.String(),
	)
	return nil, nil
}

// IsKnownOrphan returns whether the block is held in the orphan pool
func (c *Chain) IsKnownOrphan(hash chainhash.Hash) bool {
	return c.orphans.Contains(hash)
}

// OrphanCount returns the number of blocks held in the orphan pool
func (c *Chain) OrphanCount() int {
	return c.orphans.Len()
}

// OrphanRoot walks back through the orphan pool from the provided block and returns the hash of
// the earliest orphan, whose parent is the block that is missing. The provided hash is returned
// as-is if it is not an orphan
func (c *Chain) OrphanRoot(hash chainhash.Hash) chainhash.Hash {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	root := hash
	// Bound the walk by the pool size
	for i := 0; i <= c.orphans.Len(); i++ {
		block, ok := c.orphans.Peek(root)
		if !ok {
			break
		}
		prevHash := block.MsgBlock().Header.PrevBlock
		if !c.orphans.Contains(prevHash) {
			break
		}
		root = prevHash
	}
	return root
}

func (c *Chain) bestHash() chainhash.Hash {
	return c.bestChain[len(c.bestChain)-1]
}

func (c *Chain) connectBlock(block *btcutil.Block) {
	hash := *block.Hash()
	height := int32(len(c.bestChain)) // #nosec G115
	block.SetHeight(height)
	c.bestChain = append(c.bestChain, hash)
	c.blocks[hash] = block
	c.logger.Debug(
		"connected block",
		"component", "chain",
		"hash", hash.String(),
		"height", height,
	)
}

// processOrphans connects any orphans that build on the provided block, repeating for each
// newly connected block. It returns the provided block followed by the connected orphans
func (c *Chain) processOrphans(block *btcutil.Block) []*btcutil.Block {
	ret := []*btcutil.Block{block}
	parents := []chainhash.Hash{*block.Hash()}
	for len(parents) > 0 {
		parent := parents[0]
		parents = parents[1:]
		// Removing an orphan modifies the index
		for _, orphanHash := range slices.Clone(c.orphanChildren[parent]) {
			orphan, ok := c.orphans.Peek(orphanHash)
			if !ok {
				continue
			}
			c.orphans.Remove(orphanHash)
			// Only one child of the head can extend the chain
			if parent != c.bestHash() {
				c.logger.Debug(
					"dropping orphan on side chain",
					"component", "chain",
					"hash", orphanHash.String(),
				)
				continue
			}
			c.connectBlock(orphan)
			ret = append(ret, orphan)
			parents = append(parents, orphanHash)
		}
	}
	return ret
}

// orphanRemoved keeps the orphan index in sync with the pool. It is called with the chain lock
// held, since the pool is only modified from AddBlock
func (c *Chain) orphanRemoved(hash chainhash.Hash, block *btcutil.Block) {
	prevHash := block.MsgBlock().Header.PrevBlock
	children := slices.DeleteFunc(
		c.orphanChildren[prevHash],
		func(child chainhash.Hash) bool {
			return child == hash
		},
	)
	if len(children) == 0 {
		delete(c.orphanChildren, prevHash)
		return
	}
	c.orphanChildren[prevHash] = children
}
