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

// Package bench provides fixtures and benchmarks for the chain synchronization hot paths.
package bench

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/gopeer/chain"
	"github.com/blinklabs-io/gopeer/internal/test"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

// ChainFixture is an in-memory chain extended to a fixed height
type ChainFixture struct {
	Chain  *chain.Chain
	Blocks []*btcutil.Block
}

// DiscardLogger returns a logger that drops everything, so benchmarks measure the work rather
// than the log output
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewChainFixture returns a regression test network chain with the provided number of blocks
// on top of genesis
func NewChainFixture(height int) (*ChainFixture, error) {
	c, err := chain.New(
		&chaincfg.RegressionNetParams,
		chain.WithLogger(DiscardLogger()),
	)
	if err != nil {
		return nil, err
	}
	blocks := test.NewBlocks(c.GenesisHash(), height)
	for _, block := range blocks {
		connected, err := c.AddBlock(block)
		if err != nil {
			return nil, err
		}
		if len(connected) != 1 {
			return nil, fmt.Errorf("block %s did not connect", block.Hash().String())
		}
	}
	return &ChainFixture{
		Chain:  c,
		Blocks: blocks,
	}, nil
}
