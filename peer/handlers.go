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
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

func (p *Peer) handleMessage(msg wire.Message) error {
	switch msg := msg.(type) {
	case *wire.MsgInv:
		return p.handleInv(msg)
	case *wire.MsgBlock:
		return p.handleBlock(msg)
	case *wire.MsgNotFound:
		p.handleNotFound(msg)
		return nil
	case *wire.MsgPing:
		return p.sendMessage(wire.NewMsgPong(msg.Nonce))
	default:
		p.logger.Debug(
			"ignoring message",
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.id.String(),
			"command", msg.Command(),
		)
	}
	return nil
}

func isBlockInv(invType wire.InvType) bool {
	return invType == wire.InvTypeBlock || invType == wire.InvTypeWitnessBlock
}

func (p *Peer) handleInv(msg *wire.MsgInv) error {
	if !p.DownloadData() {
		p.logger.Debug(
			fmt.Sprintf("ignoring inventory with %d items, download disabled", len(msg.InvList)),
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.id.String(),
		)
		return nil
	}
	getData := wire.NewMsgGetData()
	for _, inv := range msg.InvList {
		if !isBlockInv(inv.Type) {
			continue
		}
		hash := inv.Hash
		// An orphan being announced again means we are missing its ancestors
		if p.chain.IsKnownOrphan(hash) {
			if err := p.startDownload(download.TriggerImplicit, p.chain.OrphanRoot(hash)); err != nil {
				return err
			}
			continue
		}
		if p.chain.HaveBlock(hash) {
			continue
		}
		if p.requested.Contains(hash) {
			continue
		}
		if err := getData.AddInvVect(wire.NewInvVect(inv.Type, &hash)); err != nil {
			return err
		}
		p.requested.Add(hash, struct{}{})
	}
	if len(getData.InvList) == 0 {
		return nil
	}
	return p.sendMessage(getData)
}

func (p *Peer) handleBlock(msg *wire.MsgBlock) error {
	block := btcutil.NewBlock(msg)
	hash := *block.Hash()
	p.requested.Remove(hash)
	p.requests.Resolve(hash, block)
	connected, err := p.chain.AddBlock(block)
	if err != nil {
		p.logger.Warn(
			fmt.Sprintf("rejected block %s: %s", hash.String(), err),
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.id.String(),
		)
		return nil
	}
	if len(connected) > 0 {
		for _, connectedBlock := range connected {
			blocksLeft, _ := p.tracker.BlockConnected(connectedBlock.Height())
			p.dispatch(BlocksDownloadedEvent{
				Peer:       p,
				Block:      connectedBlock,
				BlocksLeft: blocksLeft,
			})
		}
		return nil
	}
	// A block that does not connect means we are missing blocks before it
	if p.chain.IsKnownOrphan(hash) && p.DownloadData() {
		return p.startDownload(download.TriggerImplicit, p.chain.OrphanRoot(hash))
	}
	return nil
}

func (p *Peer) handleNotFound(msg *wire.MsgNotFound) {
	for _, inv := range msg.InvList {
		if !isBlockInv(inv.Type) {
			continue
		}
		p.requested.Remove(inv.Hash)
		if p.requests.Fail(inv.Hash, fmt.Errorf("%w: %s", ErrBlockNotFound, inv.Hash.String())) {
			p.logger.Debug(
				fmt.Sprintf("remote node does not have requested block %s", inv.Hash.String()),
				"component", "network",
				"protocol", ProtocolName,
				"connection_id", p.id.String(),
			)
		}
	}
}
