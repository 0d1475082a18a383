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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/blinklabs-io/gopeer/peer"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/spf13/cobra"
)

var fetchBlockFlags struct {
	hash    string
	timeout time.Duration
}

var fetchBlockCmd = &cobra.Command{
	Use:   "fetch-block",
	Short: "Fetch a single block from the remote node",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFetchBlock(cmd.Context())
	},
}

func init() {
	fetchBlockCmd.Flags().StringVar(
		&fetchBlockFlags.hash,
		"hash",
		"",
		"hash of the block to fetch",
	)
	fetchBlockCmd.Flags().DurationVar(
		&fetchBlockFlags.timeout,
		"timeout",
		time.Minute,
		"time to wait for the block",
	)
	_ = fetchBlockCmd.MarkFlagRequired("hash")
	rootCmd.AddCommand(fetchBlockCmd)
}

func runFetchBlock(ctx context.Context) error {
	hash, err := chainhash.NewHashFromStr(fetchBlockFlags.hash)
	if err != nil {
		return fmt.Errorf("invalid block hash: %w", err)
	}
	// Only the requested block is wanted
	p, _, err := createPeer(ctx, &flags, peer.WithDownloadData(false))
	if err != nil {
		return err
	}
	var block *btcutil.Block
	work := func(ctx context.Context) error {
		defer p.Close()
		ctx, cancel := context.WithTimeout(ctx, fetchBlockFlags.timeout)
		defer cancel()
		var err error
		block, err = p.GetBlock(*hash).Get(ctx)
		return err
	}
	if err := runPeer(ctx, p, work); err != nil {
		return err
	}
	printBlock(block)
	return nil
}

func printBlock(block *btcutil.Block) {
	header := block.MsgBlock().Header
	fmt.Printf("hash:         %s\n", block.Hash().String())
	fmt.Printf("prev hash:    %s\n", header.PrevBlock.String())
	fmt.Printf("merkle root:  %s\n", header.MerkleRoot.String())
	fmt.Printf("timestamp:    %s\n", header.Timestamp.UTC().Format(time.RFC3339))
	fmt.Printf("bits:         %08x\n", header.Bits)
	fmt.Printf("nonce:        %d\n", header.Nonce)
	fmt.Printf("transactions: %d\n", len(block.MsgBlock().Transactions))
}
