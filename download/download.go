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

// Package download implements the state machine that tracks whether a peer connection is
// catching up the local block chain against the remote node, and how many blocks remain.
package download

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Status is the state of the tracker
type Status uint8

const (
	StatusIdle Status = iota
	StatusDownloading
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusDownloading:
		return "Downloading"
	default:
		return "Unknown"
	}
}

// Trigger identifies what started a download
type Trigger uint8

const (
	// TriggerExplicit is a caller asking for the chain to be downloaded
	TriggerExplicit Trigger = iota
	// TriggerImplicit is a received or announced block that does not connect to the local chain
	TriggerImplicit
)

func (t Trigger) String() string {
	switch t {
	case TriggerExplicit:
		return "Explicit"
	case TriggerImplicit:
		return "Implicit"
	default:
		return "Unknown"
	}
}

// State is a snapshot of the tracker
type State struct {
	Status              Status
	LastAnnouncedHeight int32
	BlocksLeft          int
	// StopHash is the stop hash of the most recent getblocks request
	StopHash chainhash.Hash
	// RequestHeight is the local chain height when the most recent getblocks request was made
	RequestHeight int32
}

// Active returns whether a download is in progress
func (s State) Active() bool {
	return s.Status == StatusDownloading
}

// StartRequest describes a request to enter the Downloading state
type StartRequest struct {
	Trigger     Trigger
	StopHash    chainhash.Hash
	LocalHeight int32
}

// Transition describes what the caller must do as a result of a start request
type Transition struct {
	// Announce is set when a chain download started event should be emitted
	Announce bool
	// SendGetBlocks is set when a getblocks request should be sent with the request's stop hash
	SendGetBlocks bool
	BlocksLeft    int
}

// Tracker is the download state machine. Transitions are expected to be driven from a
// single goroutine, but State may be called from anywhere
type Tracker struct {
	mutex sync.Mutex
	state State
}

// NewTracker returns an idle tracker with the provided remote height
func NewTracker(remoteHeight int32) *Tracker {
	return &Tracker{
		state: State{
			Status:              StatusIdle,
			LastAnnouncedHeight: remoteHeight,
		},
	}
}

// State returns a snapshot of the tracker state
func (t *Tracker) State() State {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.state
}

// SetRemoteHeight records the height most recently announced by the remote node
func (t *Tracker) SetRemoteHeight(height int32) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.state.LastAnnouncedHeight = height
}

// Start handles both explicit and implicit download triggers.
//
// An explicit start always announces the estimate, and sends getblocks only when there are
// blocks left. An implicit start never announces, and sends getblocks unless the previous
// request had the same stop hash and the local chain has not grown since. In both cases the
// tracker only enters Downloading while blocks are left
func (t *Tracker) Start(req StartRequest) Transition {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	blocksLeft := t.blocksLeft(req.LocalHeight)
	ret := Transition{
		BlocksLeft: blocksLeft,
	}
	switch req.Trigger {
	case TriggerExplicit:
		ret.Announce = true
		ret.SendGetBlocks = blocksLeft > 0
	case TriggerImplicit:
		duplicate := t.state.StopHash == req.StopHash &&
			t.state.RequestHeight == req.LocalHeight
		ret.SendGetBlocks = !duplicate
	}
	t.state.BlocksLeft = blocksLeft
	if blocksLeft > 0 {
		t.state.Status = StatusDownloading
	} else {
		t.state.Status = StatusIdle
	}
	if ret.SendGetBlocks {
		t.state.StopHash = req.StopHash
		t.state.RequestHeight = req.LocalHeight
	}
	return ret
}

// BlockConnected records that the local chain reached the provided height. It returns the
// number of blocks left and whether a download was in progress before the call. The tracker
// returns to Idle once no blocks are left
func (t *Tracker) BlockConnected(localHeight int32) (int, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	wasActive := t.state.Status == StatusDownloading
	// The remote evidently has at least as many blocks as we just received from it
	if localHeight > t.state.LastAnnouncedHeight {
		t.state.LastAnnouncedHeight = localHeight
	}
	blocksLeft := t.blocksLeft(localHeight)
	t.state.BlocksLeft = blocksLeft
	if blocksLeft == 0 {
		t.state.Status = StatusIdle
	}
	return blocksLeft, wasActive
}

// Reset returns the tracker to Idle, as when the connection closes
func (t *Tracker) Reset() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.state.Status = StatusIdle
	t.state.BlocksLeft = 0
	t.state.StopHash = chainhash.Hash{}
	t.state.RequestHeight = 0
}

func (t *Tracker) blocksLeft(localHeight int32) int {
	ret := int(t.state.LastAnnouncedHeight) - int(localHeight)
	if ret < 0 {
		return 0
	}
	return ret
}
