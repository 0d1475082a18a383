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

	"github.com/blinklabs-io/gopeer/peer"
	"github.com/spf13/cobra"
)

var syncFlags struct {
	progressInterval int
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the block chain from the remote node",
	Long:  "Downloads the block chain from the remote node into memory and reports progress until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSync(cmd.Context())
	},
}

func init() {
	syncCmd.Flags().IntVar(
		&syncFlags.progressInterval,
		"progress-interval",
		1000,
		"number of blocks between progress messages",
	)
	rootCmd.AddCommand(syncCmd)
}

func runSync(ctx context.Context) error {
	listener := &peer.ListenerFuncs{
		ChainDownloadStartedFunc: func(evt peer.ChainDownloadStartedEvent) error {
			fmt.Printf("chain download started, %d blocks left\n", evt.BlocksLeft)
			return nil
		},
		BlocksDownloadedFunc: func(evt peer.BlocksDownloadedEvent) error {
			if evt.BlocksLeft == 0 ||
				(syncFlags.progressInterval > 0 && evt.Block.Height()%int32(syncFlags.progressInterval) == 0) { // #nosec G115
				fmt.Printf(
					"height %d, hash %s, %d blocks left\n",
					evt.Block.Height(),
					evt.Block.Hash().String(),
					evt.BlocksLeft,
				)
			}
			return nil
		},
		PeerDisconnectedFunc: func(evt peer.PeerDisconnectedEvent) error {
			if evt.Err != nil {
				fmt.Printf("peer disconnected: %s\n", evt.Err)
			}
			return nil
		},
	}
	p, localChain, err := createPeer(ctx, &flags, peer.WithListeners(listener))
	if err != nil {
		return err
	}
	if err := p.StartBlockChainDownload(); err != nil {
		return err
	}
	if err := runPeer(ctx, p, nil); err != nil {
		return err
	}
	fmt.Printf(
		"stopped at height %d, hash %s\n",
		localChain.BestHeight(),
		localChain.BestHash().String(),
	)
	return nil
}
