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

package peer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/gopeer/chain"
	"github.com/blinklabs-io/gopeer/connection"
	"github.com/blinklabs-io/gopeer/internal/test"
	"github.com/blinklabs-io/gopeer/internal/test/mockconn"
	"github.com/blinklabs-io/gopeer/peer"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testTimeout = 5 * time.Second

type eventRecorder struct {
	mutex  sync.Mutex
	events []peer.Event
}

func (r *eventRecorder) HandleEvent(evt peer.Event) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) Events() []peer.Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	ret := make([]peer.Event, len(r.events))
	copy(ret, r.events)
	return ret
}

func (r *eventRecorder) BlocksDownloaded() []peer.BlocksDownloadedEvent {
	var ret []peer.BlocksDownloadedEvent
	for _, evt := range r.Events() {
		if e, ok := evt.(peer.BlocksDownloadedEvent); ok {
			ret = append(ret, e)
		}
	}
	return ret
}

type testPeer struct {
	peer     *peer.Peer
	conn     *mockconn.Connection
	chain    *chain.Chain
	recorder *eventRecorder
}

func newTestPeer(t *testing.T, remoteHeight int32, options ...peer.PeerOptionFunc) *testPeer {
	t.Helper()
	c, err := chain.New(&chaincfg.RegressionNetParams)
	require.NoError(t, err)
	conn := mockconn.NewConnection(remoteHeight)
	recorder := &eventRecorder{}
	cfg := peer.NewConfig(
		append(
			[]peer.PeerOptionFunc{
				peer.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				peer.WithListeners(recorder),
			},
			options...,
		)...,
	)
	return &testPeer{
		peer:     peer.New(conn, c, &cfg),
		conn:     conn,
		chain:    c,
		recorder: recorder,
	}
}

// addBlocks extends the local chain with count blocks
func (tp *testPeer) addBlocks(t *testing.T, count int) []*btcutil.Block {
	t.Helper()
	blocks := test.NewBlocks(tp.chain.BestHash(), count)
	for _, block := range blocks {
		connected, err := tp.chain.AddBlock(block)
		require.NoError(t, err)
		require.Len(t, connected, 1)
	}
	return blocks
}

func (tp *testPeer) runAsync() <-chan error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- tp.peer.Run()
	}()
	return errChan
}

// run processes everything queued on the connection followed by a remote disconnect
func (tp *testPeer) run(t *testing.T) error {
	t.Helper()
	tp.conn.Disconnect()
	return waitRun(t, tp.runAsync())
}

func waitRun(t *testing.T, errChan <-chan error) error {
	t.Helper()
	select {
	case err := <-errChan:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for peer to stop")
	}
	return nil
}

func (tp *testPeer) outbound(t *testing.T) wire.Message {
	t.Helper()
	msg, err := tp.conn.Outbound(testTimeout)
	require.NoError(t, err)
	return msg
}

func newInv(hashes ...chainhash.Hash) *wire.MsgInv {
	msg := wire.NewMsgInv()
	for idx := range hashes {
		_ = msg.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hashes[idx]))
	}
	return msg
}

func TestAddRemoveEventListener(t *testing.T) {
	tp := newTestPeer(t, 0)
	listener := &peer.ListenerFuncs{}
	tp.peer.AddEventListener(listener)
	assert.True(t, tp.peer.RemoveEventListener(listener))
	assert.False(t, tp.peer.RemoveEventListener(listener))
}

func TestRunTransportError(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	tp.conn.ExceptionOnRead(fmt.Errorf("%w: connection reset", connection.ErrTransport))
	err := tp.run(t)
	var peerErr *peer.PeerError
	require.ErrorAs(t, err, &peerErr)
	assert.True(t, peerErr.IsTransport())
	assert.False(t, peerErr.IsMalformed())
	assert.ErrorIs(t, err, connection.ErrTransport)
	assert.True(t, tp.conn.IsClosed())
	// The disconnect event carries the failure
	events := tp.recorder.Events()
	require.Len(t, events, 1)
	disconnected, ok := events[0].(peer.PeerDisconnectedEvent)
	require.True(t, ok)
	assert.Same(t, tp.peer, disconnected.Peer)
	assert.Equal(t, err, disconnected.Err)
}

func TestRunTruncatedMessage(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, err := chain.New(&chaincfg.RegressionNetParams)
	require.NoError(t, err)
	a, b := net.Pipe()
	conn := connection.NewConn(b, connection.WithNetwork(&chaincfg.RegressionNetParams))
	cfg := peer.NewConfig(
		peer.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	p := peer.New(conn, c, &cfg)
	var buf bytes.Buffer
	require.NoError(
		t,
		wire.WriteMessage(
			&buf,
			wire.NewMsgPing(42),
			wire.ProtocolVersion,
			chaincfg.RegressionNetParams.Net,
		),
	)
	frame := buf.Bytes()
	// The remote end goes away partway through the message
	go func() {
		_, _ = a.Write(frame[:len(frame)-4])
		a.Close()
	}()
	err = waitRun(t, func() <-chan error {
		errChan := make(chan error, 1)
		go func() {
			errChan <- p.Run()
		}()
		return errChan
	}())
	var peerErr *peer.PeerError
	require.ErrorAs(t, err, &peerErr)
	assert.True(t, peerErr.IsTransport())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRunMalformedMessage(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	tp.conn.ExceptionOnRead(fmt.Errorf("%w: bad checksum", connection.ErrMalformedMessage))
	err := tp.run(t)
	var peerErr *peer.PeerError
	require.ErrorAs(t, err, &peerErr)
	assert.True(t, peerErr.IsMalformed())
	assert.False(t, peerErr.IsTransport())
}

func TestShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	require.NoError(t, tp.run(t))
	events := tp.recorder.Events()
	require.Len(t, events, 1)
	disconnected, ok := events[0].(peer.PeerDisconnectedEvent)
	require.True(t, ok)
	assert.NoError(t, disconnected.Err)
	// A peer can only be run once
	assert.ErrorIs(t, tp.peer.Run(), peer.ErrPeerClosed)
	assert.ErrorIs(t, tp.peer.StartBlockChainDownload(), peer.ErrPeerClosed)
}

func TestUnconnectedBlock(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	b1 := tp.addBlocks(t, 1)[0]
	missing := test.NewBlocks(*b1.Hash(), 2)
	b3 := missing[1]
	tp.conn.Inbound(b3.MsgBlock())
	require.NoError(t, tp.run(t))
	msg, ok := tp.conn.PopOutbound().(*wire.MsgGetBlocks)
	require.True(t, ok)
	expectedLocator := []chainhash.Hash{*b1.Hash(), tp.chain.GenesisHash()}
	assert.Equal(t, expectedLocator, derefHashes(msg.BlockLocatorHashes))
	assert.Equal(t, *b3.Hash(), msg.HashStop)
	assert.Nil(t, tp.conn.PopOutbound())
}

func derefHashes(hashes []*chainhash.Hash) []chainhash.Hash {
	ret := make([]chainhash.Hash, 0, len(hashes))
	for _, hash := range hashes {
		ret = append(ret, *hash)
	}
	return ret
}

func TestInvTickle(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	b1 := tp.addBlocks(t, 1)[0]
	missing := test.NewBlocks(*b1.Hash(), 2)
	b3 := missing[1]
	tp.conn.Inbound(b3.MsgBlock())
	tp.conn.Inbound(newInv(*b3.Hash()))
	require.NoError(t, tp.run(t))
	msg, ok := tp.conn.PopOutbound().(*wire.MsgGetBlocks)
	require.True(t, ok)
	assert.Equal(
		t,
		[]chainhash.Hash{*b1.Hash(), tp.chain.GenesisHash()},
		derefHashes(msg.BlockLocatorHashes),
	)
	assert.Equal(t, *b3.Hash(), msg.HashStop)
	// The announcement of the known orphan does not repeat the request
	assert.Nil(t, tp.conn.PopOutbound())
}

func TestInvNoDownload(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0, peer.WithDownloadData(false))
	assert.False(t, tp.peer.DownloadData())
	b1 := tp.addBlocks(t, 1)[0]
	b2 := test.NewBlock(*b1.Hash())
	tp.conn.Inbound(newInv(*b2.Hash()))
	require.NoError(t, tp.run(t))
	assert.Nil(t, tp.conn.PopOutbound())
}

func TestUnconnectedBlockNoDownload(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	tp.peer.SetDownloadData(false)
	b1 := tp.addBlocks(t, 1)[0]
	missing := test.NewBlocks(*b1.Hash(), 2)
	tp.conn.Inbound(missing[1].MsgBlock())
	require.NoError(t, tp.run(t))
	assert.Nil(t, tp.conn.PopOutbound())
	// The block is still kept for later
	assert.True(t, tp.chain.IsKnownOrphan(*missing[1].Hash()))
}

func TestNewBlock(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 100)
	b1 := tp.addBlocks(t, 1)[0]
	b2 := test.NewBlock(*b1.Hash())
	tp.conn.Inbound(newInv(*b2.Hash()))
	tp.conn.Inbound(b2.MsgBlock())
	require.NoError(t, tp.run(t))
	downloaded := tp.recorder.BlocksDownloaded()
	require.Len(t, downloaded, 1)
	assert.Same(t, tp.peer, downloaded[0].Peer)
	assert.Equal(t, *b2.Hash(), *downloaded[0].Block.Hash())
	assert.Equal(t, 98, downloaded[0].BlocksLeft)
	getData, ok := tp.conn.PopOutbound().(*wire.MsgGetData)
	require.True(t, ok)
	require.Len(t, getData.InvList, 1)
	assert.Equal(t, *b2.Hash(), getData.InvList[0].Hash)
	assert.Equal(t, wire.InvTypeBlock, getData.InvList[0].Type)
	assert.Nil(t, tp.conn.PopOutbound())
	assert.Equal(t, int32(2), tp.chain.BestHeight())
}

func TestOrphanChainConnected(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 100)
	b1 := tp.addBlocks(t, 1)[0]
	missing := test.NewBlocks(*b1.Hash(), 2)
	b2, b3 := missing[0], missing[1]
	tp.conn.Inbound(b3.MsgBlock())
	tp.conn.Inbound(b2.MsgBlock())
	require.NoError(t, tp.run(t))
	assert.Equal(t, int32(3), tp.chain.BestHeight())
	// Both b2 and the orphan it connected are reported, in chain order
	downloaded := tp.recorder.BlocksDownloaded()
	require.Len(t, downloaded, 2)
	assert.Equal(t, *b2.Hash(), *downloaded[0].Block.Hash())
	assert.Equal(t, 98, downloaded[0].BlocksLeft)
	assert.Equal(t, *b3.Hash(), *downloaded[1].Block.Hash())
	assert.Equal(t, 97, downloaded[1].BlocksLeft)
	// Only the getblocks for the orphan was sent
	_, ok := tp.conn.PopOutbound().(*wire.MsgGetBlocks)
	require.True(t, ok)
	assert.Nil(t, tp.conn.PopOutbound())
}

func TestInvFiltering(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 100)
	b1 := tp.addBlocks(t, 1)[0]
	b2 := test.NewBlock(*b1.Hash())
	inv := newInv(*b1.Hash(), *b2.Hash())
	// Inventory other than blocks is ignored
	txHash := chainhash.Hash{0x01}
	require.NoError(t, inv.AddInvVect(wire.NewInvVect(wire.InvTypeTx, &txHash)))
	tp.conn.Inbound(inv)
	// A second announcement while the block is in flight is ignored
	tp.conn.Inbound(newInv(*b2.Hash()))
	require.NoError(t, tp.run(t))
	getData, ok := tp.conn.PopOutbound().(*wire.MsgGetData)
	require.True(t, ok)
	require.Len(t, getData.InvList, 1)
	assert.Equal(t, *b2.Hash(), getData.InvList[0].Hash)
	assert.Nil(t, tp.conn.PopOutbound())
}

func TestStartBlockChainDownload(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 100)
	blocks := tp.addBlocks(t, 2)
	require.NoError(t, tp.peer.StartBlockChainDownload())
	require.NoError(t, tp.run(t))
	events := tp.recorder.Events()
	require.NotEmpty(t, events)
	started, ok := events[0].(peer.ChainDownloadStartedEvent)
	require.True(t, ok)
	assert.Same(t, tp.peer, started.Peer)
	assert.Equal(t, 98, started.BlocksLeft)
	msg, ok := tp.conn.PopOutbound().(*wire.MsgGetBlocks)
	require.True(t, ok)
	assert.Equal(
		t,
		[]chainhash.Hash{*blocks[1].Hash(), *blocks[0].Hash(), tp.chain.GenesisHash()},
		derefHashes(msg.BlockLocatorHashes),
	)
	assert.Equal(t, chainhash.Hash{}, msg.HashStop)
}

func TestStartBlockChainDownloadCaughtUp(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 1)
	tp.addBlocks(t, 2)
	require.NoError(t, tp.peer.StartBlockChainDownload())
	require.NoError(t, tp.run(t))
	events := tp.recorder.Events()
	require.NotEmpty(t, events)
	started, ok := events[0].(peer.ChainDownloadStartedEvent)
	require.True(t, ok)
	assert.Equal(t, 0, started.BlocksLeft)
	assert.Nil(t, tp.conn.PopOutbound())
}

func TestDownloadProgress(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 3)
	var states []bool
	tp.peer.AddEventListener(&peer.ListenerFuncs{
		BlocksDownloadedFunc: func(evt peer.BlocksDownloadedEvent) error {
			states = append(states, evt.Peer.DownloadState().Active())
			return nil
		},
	})
	require.NoError(t, tp.peer.StartBlockChainDownload())
	for _, block := range test.NewBlocks(tp.chain.GenesisHash(), 3) {
		tp.conn.Inbound(block.MsgBlock())
	}
	require.NoError(t, tp.run(t))
	downloaded := tp.recorder.BlocksDownloaded()
	require.Len(t, downloaded, 3)
	for idx, evt := range downloaded {
		assert.Equal(t, 2-idx, evt.BlocksLeft)
	}
	assert.Equal(t, []bool{true, true, false}, states)
	assert.False(t, tp.peer.DownloadState().Active())
}

func TestGetBlock(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 100)
	b1 := tp.addBlocks(t, 1)[0]
	missing := test.NewBlocks(*b1.Hash(), 2)
	b3 := missing[1]
	errChan := tp.runAsync()
	res := tp.peer.GetBlock(*b3.Hash())
	assert.False(t, res.IsDone())
	getData, ok := tp.outbound(t).(*wire.MsgGetData)
	require.True(t, ok)
	assert.Equal(t, *b3.Hash(), getData.InvList[0].Hash)
	assert.False(t, res.IsDone())
	tp.conn.Inbound(b3.MsgBlock())
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	block, err := res.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, *b3.Hash(), *block.Hash())
	assert.Same(t, b3.MsgBlock(), block.MsgBlock())
	tp.conn.Disconnect()
	assert.NoError(t, waitRun(t, errChan))
}

func TestGetBlockCoalesces(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	hash := chainhash.Hash{0xaa}
	first := tp.peer.GetBlock(hash)
	second := tp.peer.GetBlock(hash)
	assert.Same(t, first, second)
	assert.Equal(t, 1, tp.peer.PendingRequests())
	require.NoError(t, tp.run(t))
	getData, ok := tp.conn.PopOutbound().(*wire.MsgGetData)
	require.True(t, ok)
	require.Len(t, getData.InvList, 1)
	assert.Nil(t, tp.conn.PopOutbound())
}

func TestGetBlockFailsOnDisconnect(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	res := tp.peer.GetBlock(chainhash.Hash{0xaa})
	require.NoError(t, tp.run(t))
	require.True(t, res.IsDone())
	assert.ErrorIs(t, res.Err(), peer.ErrPeerDisconnected)
	assert.Equal(t, 0, tp.peer.PendingRequests())
	// Requests after shutdown fail immediately
	late := tp.peer.GetBlock(chainhash.Hash{0xbb})
	require.True(t, late.IsDone())
	assert.ErrorIs(t, late.Err(), peer.ErrPeerDisconnected)
}

func TestGetBlockFailsOnTransportError(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	res := tp.peer.GetBlock(chainhash.Hash{0xaa})
	tp.conn.ExceptionOnRead(fmt.Errorf("%w: connection reset", connection.ErrTransport))
	errChan := tp.runAsync()
	err := waitRun(t, errChan)
	var peerErr *peer.PeerError
	require.ErrorAs(t, err, &peerErr)
	require.True(t, res.IsDone())
	assert.ErrorIs(t, res.Err(), peer.ErrPeerDisconnected)
}

func TestNotFound(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	hash := chainhash.Hash{0xaa}
	errChan := tp.runAsync()
	res := tp.peer.GetBlock(hash)
	_, ok := tp.outbound(t).(*wire.MsgGetData)
	require.True(t, ok)
	notFound := wire.NewMsgNotFound()
	require.NoError(t, notFound.AddInvVect(wire.NewInvVect(wire.InvTypeBlock, &hash)))
	tp.conn.Inbound(notFound)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	_, err := res.Get(ctx)
	assert.ErrorIs(t, err, peer.ErrBlockNotFound)
	tp.conn.Disconnect()
	assert.NoError(t, waitRun(t, errChan))
}

func TestPingPong(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	tp.conn.Inbound(wire.NewMsgPing(42))
	require.NoError(t, tp.run(t))
	pong, ok := tp.conn.PopOutbound().(*wire.MsgPong)
	require.True(t, ok)
	assert.Equal(t, uint64(42), pong.Nonce)
}

func TestIgnoredMessage(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	tp.conn.Inbound(wire.NewMsgVerAck())
	require.NoError(t, tp.run(t))
	assert.Nil(t, tp.conn.PopOutbound())
}

func TestWriteError(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	tp.conn.ExceptionOnWrite(fmt.Errorf("%w: broken pipe", connection.ErrTransport))
	tp.conn.Inbound(wire.NewMsgPing(1))
	err := tp.run(t)
	var peerErr *peer.PeerError
	require.ErrorAs(t, err, &peerErr)
	assert.True(t, peerErr.IsTransport())
}

func TestListenerFaultContained(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 10)
	listener := &peer.ListenerFuncs{
		ChainDownloadStartedFunc: func(peer.ChainDownloadStartedEvent) error {
			panic("listener failure")
		},
	}
	// Registered before the recorder, so a fault must not stop delivery
	tp.peer.RemoveEventListener(tp.recorder)
	tp.peer.AddEventListener(listener)
	tp.peer.AddEventListener(&peer.ListenerFuncs{
		ChainDownloadStartedFunc: func(peer.ChainDownloadStartedEvent) error {
			return errors.New("listener error")
		},
	})
	tp.peer.AddEventListener(tp.recorder)
	require.NoError(t, tp.peer.StartBlockChainDownload())
	require.NoError(t, tp.run(t))
	events := tp.recorder.Events()
	require.NotEmpty(t, events)
	_, ok := events[0].(peer.ChainDownloadStartedEvent)
	assert.True(t, ok)
	// The getblocks request is still sent
	_, ok = tp.conn.PopOutbound().(*wire.MsgGetBlocks)
	assert.True(t, ok)
}

func TestClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	errChan := tp.runAsync()
	// Wait for the loop to be running
	tp.peer.GetBlock(chainhash.Hash{0xaa})
	tp.outbound(t)
	assert.ErrorIs(t, tp.peer.Run(), peer.ErrAlreadyRunning)
	require.NoError(t, tp.peer.Close())
	require.NoError(t, tp.peer.Close())
	assert.NoError(t, waitRun(t, errChan))
	assert.True(t, tp.conn.IsClosed())
	assert.ErrorIs(t, tp.peer.Run(), peer.ErrPeerClosed)
}

func TestCloseBeforeRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	tp := newTestPeer(t, 0)
	res := tp.peer.GetBlock(chainhash.Hash{0xaa})
	require.NoError(t, tp.peer.Close())
	require.True(t, res.IsDone())
	assert.ErrorIs(t, res.Err(), peer.ErrPeerDisconnected)
	assert.ErrorIs(t, tp.peer.Run(), peer.ErrPeerClosed)
	events := tp.recorder.Events()
	require.Len(t, events, 1)
	_, ok := events[0].(peer.PeerDisconnectedEvent)
	assert.True(t, ok)
}

func TestNilConfig(t *testing.T) {
	c, err := chain.New(&chaincfg.RegressionNetParams)
	require.NoError(t, err)
	conn := mockconn.NewConnection(0)
	p := peer.New(conn, c, nil)
	assert.True(t, p.DownloadData())
	assert.Equal(t, conn.Id(), p.ConnectionId())
	assert.False(t, p.DownloadState().Active())
}
