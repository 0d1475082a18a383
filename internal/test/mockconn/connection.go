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

// Package mockconn provides a scripted message connection for testing the peer engine without
// a network. Tests queue inbound messages (or read failures) and inspect the messages written
// by the code under test.
package mockconn

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blinklabs-io/gopeer/connection"
	"github.com/btcsuite/btcd/wire"
)

const queueSize = 1000

var (
	ErrTimeout      = errors.New("timed out waiting for outbound message")
	ErrOutboundFull = errors.New("outbound message queue is full")
)

type inboundEntry struct {
	msg wire.Message
	err error
}

// Connection mocks a Bitcoin wire protocol message connection
type Connection struct {
	id           connection.ConnectionId
	remoteHeight atomic.Int32
	inboundChan  chan inboundEntry
	outboundChan chan wire.Message
	writeMutex   sync.Mutex
	writeErr     error
	onceClose    sync.Once
	doneChan     chan struct{}
}

// NewConnection returns a new Connection for a remote node announcing the provided height
func NewConnection(remoteHeight int32) *Connection {
	c := &Connection{
		id: connection.ConnectionId{
			LocalAddr:  &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000},
			RemoteAddr: &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8333},
		},
		inboundChan:  make(chan inboundEntry, queueSize),
		outboundChan: make(chan wire.Message, queueSize),
		doneChan:     make(chan struct{}),
	}
	c.remoteHeight.Store(remoteHeight)
	return c
}

// Inbound queues a message to be returned by ReadMessage
func (c *Connection) Inbound(msg wire.Message) {
	c.inboundChan <- inboundEntry{msg: msg}
}

// ExceptionOnRead queues a read failure. ReadMessage returns the error once it reaches the front
// of the queue
func (c *Connection) ExceptionOnRead(err error) {
	c.inboundChan <- inboundEntry{err: err}
}

// Disconnect queues an orderly disconnect by the remote node. ReadMessage returns io.EOF once
// the queued messages before it have been read
func (c *Connection) Disconnect() {
	c.inboundChan <- inboundEntry{err: io.EOF}
}

// ExceptionOnWrite causes the next write to fail with the provided error
func (c *Connection) ExceptionOnWrite(err error) {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.writeErr = err
}

// Outbound waits for the next message written to the connection
func (c *Connection) Outbound(timeout time.Duration) (wire.Message, error) {
	select {
	case msg := <-c.outboundChan:
		return msg, nil
	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

// PopOutbound returns the next message written to the connection, or nil if there is none
func (c *Connection) PopOutbound() wire.Message {
	select {
	case msg := <-c.outboundChan:
		return msg
	default:
		return nil
	}
}

// SetRemoteHeight changes the height returned by RemoteHeight
func (c *Connection) SetRemoteHeight(height int32) {
	c.remoteHeight.Store(height)
}

// RemoteHeight returns the starting height of the mocked remote node
func (c *Connection) RemoteHeight() int32 {
	return c.remoteHeight.Load()
}

// Id returns the connection ID
func (c *Connection) Id() connection.ConnectionId {
	return c.id
}

// ReadMessage returns the next queued inbound entry, blocking until one is available or the
// connection is closed
func (c *Connection) ReadMessage() (wire.Message, error) {
	select {
	case <-c.doneChan:
		return nil, connection.ErrConnectionClosed
	default:
	}
	select {
	case entry := <-c.inboundChan:
		if entry.err != nil {
			return nil, entry.err
		}
		return entry.msg, nil
	case <-c.doneChan:
		return nil, connection.ErrConnectionClosed
	}
}

// WriteMessage records an outbound message
func (c *Connection) WriteMessage(msg wire.Message) error {
	if c.IsClosed() {
		return connection.ErrConnectionClosed
	}
	c.writeMutex.Lock()
	writeErr := c.writeErr
	c.writeErr = nil
	c.writeMutex.Unlock()
	if writeErr != nil {
		return writeErr
	}
	select {
	case c.outboundChan <- msg:
		return nil
	default:
		return fmt.Errorf("%w: dropping %s", ErrOutboundFull, msg.Command())
	}
}

// Close closes the connection. Blocked reads return connection.ErrConnectionClosed
func (c *Connection) Close() error {
	c.onceClose.Do(func() {
		close(c.doneChan)
	})
	return nil
}

// IsClosed returns whether Close has been called
func (c *Connection) IsClosed() bool {
	select {
	case <-c.doneChan:
		return true
	default:
		return false
	}
}
