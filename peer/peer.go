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

// Package peer implements the Bitcoin peer protocol engine for a single connection.
//
// A Peer owns the read loop for its connection. It answers block inventory by fetching the
// announced blocks, catches the local chain up with the remote node when it receives blocks
// that do not connect, serves asynchronous requests for individual blocks and notifies
// listeners of download progress.
//
// All chain updates and outbound messages happen on the goroutine calling Run. Other methods
// are safe to call from any goroutine and hand work to the running loop.
package peer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/blinklabs-io/gopeer/connection"
	"github.com/blinklabs-io/gopeer/download"
	"github.com/blinklabs-io/gopeer/event"
	"github.com/blinklabs-io/gopeer/pending"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	lru "github.com/hashicorp/golang-lru/v2"
)

const ProtocolName = "bitcoin-peer"

// Conn is the message connection used by the Peer
type Conn interface {
	ReadMessage() (wire.Message, error)
	WriteMessage(wire.Message) error
	Close() error
	// RemoteHeight returns the starting height announced by the remote node
	RemoteHeight() int32
	Id() connection.ConnectionId
}

// Chain is the local block chain kept up to date by the Peer
type Chain interface {
	BestHeight() int32
	GenesisHash() chainhash.Hash
	HashAtHeight(height int32) (chainhash.Hash, bool)
	HaveBlock(hash chainhash.Hash) bool
	// AddBlock returns the blocks connected to the chain head as a result of adding the block,
	// in chain order. Orphans connected on top of the block follow it
	AddBlock(block *btcutil.Block) ([]*btcutil.Block, error)
	IsKnownOrphan(hash chainhash.Hash) bool
	OrphanRoot(hash chainhash.Hash) chainhash.Hash
}

// Peer runs the protocol for a single connection
type Peer struct {
	conn         Conn
	chain        Chain
	config       Config
	logger       *slog.Logger
	id           connection.ConnectionId
	downloadData atomic.Bool
	dispatcher   *event.Dispatcher[Event]
	requests     *pending.Registry[chainhash.Hash, *btcutil.Block]
	tracker      *download.Tracker
	// requested holds the blocks asked for with getdata that have not arrived yet
	requested         *lru.Cache[chainhash.Hash, struct{}]
	commandMutex      sync.Mutex
	commands          []command
	commandsStopped   bool
	commandNotifyChan chan struct{}
	runMutex          sync.Mutex
	running           bool
	finished          bool
	onceClose         sync.Once
	doneChan          chan struct{}
}

// New returns a new Peer for the provided connection and chain. A nil config uses the defaults
// from NewConfig
func New(conn Conn, chain Chain, cfg *Config) *Peer {
	if cfg == nil {
		tmpCfg := NewConfig()
		cfg = &tmpCfg
	}
	// Apply defaults for zero values to handle Config{} created without NewConfig()
	config := *cfg
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.RequestedCacheSize <= 0 {
		config.RequestedCacheSize = DefaultRequestedCacheSize
	}
	p := &Peer{
		conn:              conn,
		chain:             chain,
		config:            config,
		logger:            config.Logger,
		id:                conn.Id(),
		requests:          pending.NewRegistry[chainhash.Hash, *btcutil.Block](),
		tracker:           download.NewTracker(conn.RemoteHeight()),
		commandNotifyChan: make(chan struct{}, 1),
		doneChan:          make(chan struct{}),
	}
	// This only fails for a non-positive size, which was ruled out above
	p.requested, _ = lru.New[chainhash.Hash, struct{}](config.RequestedCacheSize)
	p.downloadData.Store(config.DownloadData)
	p.dispatcher = event.NewDispatcher[Event](p.handleListenerFault)
	for _, listener := range config.Listeners {
		p.dispatcher.Add(listener)
	}
	return p
}

// ConnectionId returns the ID of the underlying connection
func (p *Peer) ConnectionId() connection.ConnectionId {
	return p.id
}

// DownloadData returns whether announced and unconnected blocks are fetched
func (p *Peer) DownloadData() bool {
	return p.downloadData.Load()
}

// SetDownloadData specifies whether announced and unconnected blocks are fetched. Explicit
// chain downloads and block requests are not affected
func (p *Peer) SetDownloadData(downloadData bool) {
	p.downloadData.Store(downloadData)
}

// DownloadState returns a snapshot of the chain download state
func (p *Peer) DownloadState() download.State {
	return p.tracker.State()
}

// PendingRequests returns the number of block requests waiting for a block
func (p *Peer) PendingRequests() int {
	return p.requests.Len()
}

// AddEventListener registers a listener. A listener added twice receives each event twice
func (p *Peer) AddEventListener(listener Listener) {
	p.dispatcher.Add(listener)
}

// RemoveEventListener removes one registration of the listener. It returns false if the
// listener was not registered
func (p *Peer) RemoveEventListener(listener Listener) bool {
	return p.dispatcher.Remove(listener)
}

// Run processes messages from the connection until it is closed. It returns nil when the remote
// node disconnects or Close is called, and a *PeerError when the connection fails. When Run
// returns, all outstanding block requests have failed and the peer can not be run again
func (p *Peer) Run() error {
	p.runMutex.Lock()
	if p.running {
		p.runMutex.Unlock()
		return ErrAlreadyRunning
	}
	if p.finished {
		p.runMutex.Unlock()
		return ErrPeerClosed
	}
	p.running = true
	p.runMutex.Unlock()
	p.logger.Debug(
		"starting peer",
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.id.String(),
	)
	// The remote height may have been learned after the peer was created
	if remoteHeight := p.conn.RemoteHeight(); remoteHeight > p.tracker.State().LastAnnouncedHeight {
		p.tracker.SetRemoteHeight(remoteHeight)
	}
	readChan := make(chan readResult)
	readerDoneChan := make(chan struct{})
	loopDoneChan := make(chan struct{})
	go p.readLoop(readChan, loopDoneChan, readerDoneChan)
	err := p.classifyError(p.loop(readChan))
	close(loopDoneChan)
	// Closing the connection unblocks the reader
	_ = p.conn.Close()
	<-readerDoneChan
	if err != nil {
		p.logger.Error(
			fmt.Sprintf("peer failed: %s", err),
			"component", "network",
			"protocol", ProtocolName,
			"connection_id", p.id.String(),
		)
	}
	p.runMutex.Lock()
	p.running = false
	p.finished = true
	p.runMutex.Unlock()
	p.shutdown(err)
	return err
}

// Close shuts down the peer and its connection. A running Run call returns nil. Closing a peer
// that was never run fails any outstanding block requests immediately
func (p *Peer) Close() error {
	var err error
	p.onceClose.Do(func() {
		close(p.doneChan)
		err = p.conn.Close()
		p.runMutex.Lock()
		idle := !p.running && !p.finished
		if idle {
			p.finished = true
		}
		p.runMutex.Unlock()
		if idle {
			p.shutdown(nil)
		}
	})
	return err
}

func (p *Peer) isClosing() bool {
	select {
	case <-p.doneChan:
		return true
	default:
		return false
	}
}

type readResult struct {
	msg wire.Message
	err error
}

func (p *Peer) readLoop(
	readChan chan<- readResult,
	loopDoneChan <-chan struct{},
	readerDoneChan chan<- struct{},
) {
	defer close(readerDoneChan)
	for {
		msg, err := p.conn.ReadMessage()
		select {
		case readChan <- readResult{msg: msg, err: err}:
		case <-loopDoneChan:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *Peer) loop(readChan <-chan readResult) error {
	for {
		// Commands queued before a message arrives are handled first
		if err := p.processCommands(); err != nil {
			return err
		}
		select {
		case <-p.doneChan:
			return nil
		case <-p.commandNotifyChan:
		case res := <-readChan:
			if res.err != nil {
				return res.err
			}
			if err := p.handleMessage(res.msg); err != nil {
				return err
			}
		}
	}
}

// classifyError maps the error that ended the loop to the result of Run
func (p *Peer) classifyError(err error) error {
	if err == nil {
		return nil
	}
	if p.isClosing() ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, connection.ErrConnectionClosed) {
		return nil
	}
	return &PeerError{Cause: err}
}

func (p *Peer) shutdown(err error) {
	p.commandMutex.Lock()
	p.commandsStopped = true
	p.commands = nil
	p.commandMutex.Unlock()
	failed := p.requests.FailAll(ErrPeerDisconnected)
	p.requests.Close(ErrPeerDisconnected)
	p.tracker.Reset()
	p.requested.Purge()
	p.logger.Debug(
		fmt.Sprintf("peer stopped, failed %d outstanding block requests", failed),
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.id.String(),
	)
	p.dispatch(PeerDisconnectedEvent{Peer: p, Err: err})
}

func (p *Peer) sendMessage(msg wire.Message) error {
	p.logger.Debug(
		"sending message",
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.id.String(),
		"command", msg.Command(),
	)
	return p.conn.WriteMessage(msg)
}

func (p *Peer) dispatch(evt Event) {
	p.dispatcher.Dispatch(evt)
}

func (p *Peer) handleListenerFault(fault *event.ListenerFault) {
	p.logger.Warn(
		fmt.Sprintf("event listener failed: %s", fault),
		"component", "network",
		"protocol", ProtocolName,
		"connection_id", p.id.String(),
	)
}
