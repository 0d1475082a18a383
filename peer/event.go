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
	"github.com/blinklabs-io/gopeer/event"
	"github.com/btcsuite/btcd/btcutil"
)

// Event is implemented by all events emitted by a Peer
type Event interface {
	isPeerEvent()
}

// Listener receives peer events. Events are delivered synchronously from the goroutine running
// the peer, so listeners should not block
type Listener = event.Listener[Event]

// ChainDownloadStartedEvent is emitted when a chain download is requested, with an estimate of
// the number of blocks to be downloaded
type ChainDownloadStartedEvent struct {
	Peer       *Peer
	BlocksLeft int
}

// BlocksDownloadedEvent is emitted for each received block that extends the local chain
type BlocksDownloadedEvent struct {
	Peer       *Peer
	Block      *btcutil.Block
	BlocksLeft int
}

// PeerDisconnectedEvent is emitted once when the peer shuts down. Err is nil for an orderly
// shutdown
type PeerDisconnectedEvent struct {
	Peer *Peer
	Err  error
}

func (ChainDownloadStartedEvent) isPeerEvent() {}
func (BlocksDownloadedEvent) isPeerEvent()     {}
func (PeerDisconnectedEvent) isPeerEvent()     {}

// Callback function types
type ChainDownloadStartedFunc func(ChainDownloadStartedEvent) error
type BlocksDownloadedFunc func(BlocksDownloadedEvent) error
type PeerDisconnectedFunc func(PeerDisconnectedEvent) error

// ListenerFuncs is a Listener that calls the provided functions for the matching events. Unset
// functions are skipped. Use a pointer so the listener can be removed again
type ListenerFuncs struct {
	ChainDownloadStartedFunc ChainDownloadStartedFunc
	BlocksDownloadedFunc     BlocksDownloadedFunc
	PeerDisconnectedFunc     PeerDisconnectedFunc
}

func (l *ListenerFuncs) HandleEvent(evt Event) error {
	switch e := evt.(type) {
	case ChainDownloadStartedEvent:
		if l.ChainDownloadStartedFunc != nil {
			return l.ChainDownloadStartedFunc(e)
		}
	case BlocksDownloadedEvent:
		if l.BlocksDownloadedFunc != nil {
			return l.BlocksDownloadedFunc(e)
		}
	case PeerDisconnectedEvent:
		if l.PeerDisconnectedFunc != nil {
			return l.PeerDisconnectedFunc(e)
		}
	}
	return nil
}
