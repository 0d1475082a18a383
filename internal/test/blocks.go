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

package test

import (
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Regression test network difficulty
const testBits uint32 = 0x207fffff

var blockNonce atomic.Uint32

// NewBlock returns a block on top of the provided parent. Each call produces a block with a
// distinct hash, even for the same parent
func NewBlock(prevHash chainhash.Hash) *btcutil.Block {
	nonce := blockNonce.Add(1)
	header := wire.NewBlockHeader(1, &prevHash, &chainhash.Hash{}, testBits, nonce)
	header.Timestamp = time.Unix(1700000000+int64(nonce), 0)
	return btcutil.NewBlock(wire.NewMsgBlock(header))
}

// NewBlocks returns count blocks, each on top of the previous one, starting from the provided
// parent
func NewBlocks(prevHash chainhash.Hash, count int) []*btcutil.Block {
	ret := make([]*btcutil.Block, 0, count)
	for i := 0; i < count; i++ {
		block := NewBlock(prevHash)
		ret = append(ret, block)
		prevHash = *block.Hash()
	}
	return ret
}

// BlockHashes returns the hashes of the provided blocks
func BlockHashes(blocks ...*btcutil.Block) []chainhash.Hash {
	ret := make([]chainhash.Hash, 0, len(blocks))
	for _, block := range blocks {
		ret = append(ret, *block.Hash())
	}
	return ret
}
