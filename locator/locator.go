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

// Package locator builds block locators, the compact summaries of a local chain that
// are sent to a remote peer to ask for the blocks we are missing.
package locator

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// MaxDenseLength is the number of consecutive blocks from the head that fit in a single
// getblocks message along with the genesis hash
const MaxDenseLength = wire.MaxBlockLocatorsPerMsg - 1

// ChainView is the read-only view of the local best chain needed to build a locator
type ChainView interface {
	BestHeight() int32
	HashAtHeight(height int32) (chainhash.Hash, bool)
	GenesisHash() chainhash.Hash
}

// BlockLocator is an ordered list of block hashes, most recent first and always ending
// with the genesis block hash
type BlockLocator []chainhash.Hash

// Build returns the locator for the current best chain of the provided view. It starts at the
// head and follows parent links toward genesis. Chains taller than MaxDenseLength are cut
// short after that many entries. The genesis hash is always the last entry
func Build(view ChainView) BlockLocator {
	height := view.BestHeight()
	ret := make(BlockLocator, 0, min(int(max(height, 0)), MaxDenseLength)+1)
	for ; height > 0 && len(ret) < MaxDenseLength; height-- {
		hash, ok := view.HashAtHeight(height)
		if !ok {
			break
		}
		ret = append(ret, hash)
	}
	return append(ret, view.GenesisHash())
}

// Head returns the first (most recent) hash in the locator
func (l BlockLocator) Head() chainhash.Hash {
	return l[0]
}

// Contains returns whether the provided hash appears in the locator
func (l BlockLocator) Contains(hash chainhash.Hash) bool {
	for _, tmpHash := range l {
		if tmpHash == hash {
			return true
		}
	}
	return false
}

// Hashes returns the locator in the form used by wire messages
func (l BlockLocator) Hashes() []*chainhash.Hash {
	ret := make([]*chainhash.Hash, len(l))
	for idx := range l {
		ret[idx] = &l[idx]
	}
	return ret
}

// NewMsgGetBlocks returns a getblocks message asking for the blocks after this locator up to
// and including stopHash. A zero stopHash asks for as many blocks as the remote will send
func (l BlockLocator) NewMsgGetBlocks(stopHash chainhash.Hash) (*wire.MsgGetBlocks, error) {
	msg := wire.NewMsgGetBlocks(&stopHash)
	for _, hash := range l.Hashes() {
		if err := msg.AddBlockLocatorHash(hash); err != nil {
			return nil, err
		}
	}
	return msg, nil
}
