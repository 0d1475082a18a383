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

package peer

import (
	"fmt"

	"github.com/blinklabs-io/gopeer/download"
	"github.com/blinklabs-io/gopeer/locator"
	"github.com/blinklabs-io/gopeer/pending"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

type commandType uint8

const (
	commandTypeGetBlock commandType = iota + 1
	commandTypeStartDownload
)

type command struct {
	commandType commandType
	hash        chainhash.Hash
}

// GetBlock asks the remote node for the block with the provided hash. It returns immediately
// with a result that completes when the block arrives, or fails if the remote node does not
// have it or the peer shuts down first. Concurrent requests for the same block share a result
func (p *Peer) GetBlock(hash chainhash.Hash) *pending.Result[*btcutil.Block] {
	ret, created := p.requests.Request(hash)
	if created {
		// The request is failed by shutdown if the command can no longer be queued
		_ = p.queueCommand(command{commandType: commandTypeGetBlock, hash: hash})
	}
	return ret
}

// StartBlockChainDownload asks the remote node for the blocks after the local chain head. A
// ChainDownloadStartedEvent with the estimated number of blocks left is always emitted, and the
// request is only sent when the remote node is ahead
func (p *Peer) StartBlockChainDownload() error {
	return p.queueCommand(command{commandType: commandTypeStartDownload})
}

func (p *Peer) queueCommand(cmd command) error {
	p.commandMutex.Lock()
	if p.commandsStopped {
		p.commandMutex.Unlock()
		return ErrPeerClosed
	}
	p.commands = append(p.commands, cmd)
	p.commandMutex.Unlock()
	// Wake up the loop without blocking
	select {
	case p.commandNotifyChan <- struct{}{}:
	default:
	}
	return nil
}

func (p *Peer) processCommands() error {
	p.commandMutex.Lock()
	commands := p.commands
	p.commands = nil
	p.commandMutex.Unlock()
	for _, cmd := range commands {
		var err error
		switch cmd.commandType {
		case commandTypeGetBlock:
			err = p.requestBlock(cmd.hash)
		case commandTypeStartDownload:
			err = p.startDownload(download.TriggerExplicit, chainhash.Hash{})
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Peer) requestBlock(hash chainhash.Hash) error {
	// The block may have arrived while the command was queued
	if !p.requests.Has(hash) {
		return nil
	}
	// Already asked for by an inventory announcement
	if p.requested.Contains(hash) {
		return nil
	}
	msg := wire.NewMsgGetData()
	if err := msg.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash)); err != nil {
		return err
	}
	p.requested.Add(hash, struct{}{})
	return p.sendMessage(msg)
}

// startDownload runs the download state transition for the trigger and sends the resulting
// messages. The stop hash is zero for an explicit download
func (p *Peer) startDownload(trigger download.Trigger, stopHash chainhash.Hash) error {
	localHeight := p.chain.BestHeight()
	trans := p.tracker.Start(download.StartRequest{
		Trigger:     trigger,
		StopHash:    stopHash,
		LocalHeight: localHeight,
	})
	p.logger.Debug(
		fmt.Sprintf(
			"chain download requested (trigger %s, local height %d, blocks left %d)",
			trigger,
			localHeight,
			trans.BlocksLeft,
		),
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.id.String(),
	)
	if trans.Announce {
		p.dispatch(ChainDownloadStartedEvent{Peer: p, BlocksLeft: trans.BlocksLeft})
	}
	if !trans.SendGetBlocks {
		return nil
	}
	msg, err := locator.Build(p.chain).NewMsgGetBlocks(stopHash)
	if err != nil {
		return fmt.Errorf("build getblocks: %w", err)
	}
	return p.sendMessage(msg)
}
