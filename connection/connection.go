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

// Package connection provides a Bitcoin wire protocol message connection on top of
// a net.Conn.
//
// The framing and encoding of individual messages is handled by btcd's wire package.
// This package adds error classification (transport vs. malformed message), serialized
// writes, idempotent close, and a minimal version/verack exchange used to learn the
// remote node's starting height.
package connection

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

const (
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultUserAgentName    = "gopeer"
	DefaultUserAgentVersion = "0.1.0"
)

// Conn exchanges Bitcoin wire protocol messages over a net.Conn
type Conn struct {
	conn             net.Conn
	id               ConnectionId
	params           *chaincfg.Params
	protocolVersion  atomic.Uint32
	remoteHeight     atomic.Int32
	handshakeTimeout time.Duration
	userAgentName    string
	userAgentVersion string
	sendMutex        sync.Mutex
	onceClose        sync.Once
	closeErr         error
	doneChan         chan struct{}
}

// ConnOptionFunc is a type that represents functions that modify the Conn config
type ConnOptionFunc func(*Conn)

// NewConn returns a new Conn wrapping the provided net.Conn
func NewConn(conn net.Conn, options ...ConnOptionFunc) *Conn {
	c := &Conn{
		conn:             conn,
		params:           &chaincfg.MainNetParams,
		handshakeTimeout: DefaultHandshakeTimeout,
		userAgentName:    DefaultUserAgentName,
		userAgentVersion: DefaultUserAgentVersion,
		doneChan:         make(chan struct{}),
	}
	c.protocolVersion.Store(wire.ProtocolVersion)
	// Apply provided options functions
	for _, option := range options {
		option(c)
	}
	c.id = ConnectionId{
		LocalAddr:  conn.LocalAddr(),
		RemoteAddr: conn.RemoteAddr(),
	}
	return c
}

// WithNetwork specifies the network parameters used for message framing
func WithNetwork(params *chaincfg.Params) ConnOptionFunc {
	return func(c *Conn) {
		c.params = params
	}
}

// WithProtocolVersion specifies the protocol version used to encode and decode messages
func WithProtocolVersion(pver uint32) ConnOptionFunc {
	return func(c *Conn) {
		c.protocolVersion.Store(pver)
	}
}

// WithRemoteHeight specifies the remote node's starting height. This is useful when the
// version exchange was performed elsewhere
func WithRemoteHeight(height int32) ConnOptionFunc {
	return func(c *Conn) {
		c.remoteHeight.Store(height)
	}
}

// WithHandshakeTimeout specifies the deadline for the version/verack exchange
func WithHandshakeTimeout(timeout time.Duration) ConnOptionFunc {
	return func(c *Conn) {
		c.handshakeTimeout = timeout
	}
}

// WithUserAgent specifies the user agent advertised in our version message
func WithUserAgent(name string, version string) ConnOptionFunc {
	return func(c *Conn) {
		c.userAgentName = name
		c.userAgentVersion = version
	}
}

// Id returns the connection ID
func (c *Conn) Id() ConnectionId {
	return c.id
}

// Params returns the network parameters for the connection
func (c *Conn) Params() *chaincfg.Params {
	return c.params
}

// ProtocolVersion returns the protocol version currently used for the connection
func (c *Conn) ProtocolVersion() uint32 {
	return c.protocolVersion.Load()
}

// RemoteHeight returns the starting height announced by the remote node
func (c *Conn) RemoteHeight() int32 {
	return c.remoteHeight.Load()
}

// ReadMessage blocks until the next message is read from the connection. Messages with
// an unknown command are skipped. A bare io.EOF is returned when the remote end closes the
// connection between messages. A connection closed partway through a message is a transport
// error
func (c *Conn) ReadMessage() (wire.Message, error) {
	for {
		n, msg, _, err := wire.ReadMessageWithEncodingN(
			c.conn,
			c.protocolVersion.Load(),
			c.params.Net,
			wire.BaseEncoding,
		)
		if err != nil {
			if errors.Is(err, wire.ErrUnknownMessage) {
				continue
			}
			if n > 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
				return nil, fmt.Errorf(
					"%w: connection closed after %d bytes of message: %w",
					ErrTransport,
					n,
					io.ErrUnexpectedEOF,
				)
			}
			return nil, c.classifyError(err)
		}
		return msg, nil
	}
}

// WriteMessage encodes and writes a message to the connection. It is safe to call from
// multiple goroutines
func (c *Conn) WriteMessage(msg wire.Message) error {
	select {
	case <-c.doneChan:
		return ErrConnectionClosed
	default:
	}
	// We use a mutex to make sure that only one message is written at a time
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()
	_, err := wire.WriteMessageWithEncodingN(
		c.conn,
		msg,
		c.protocolVersion.Load(),
		c.params.Net,
		wire.BaseEncoding,
	)
	if err != nil {
		return c.classifyError(err)
	}
	return nil
}

// Close closes the underlying connection. It is safe to call multiple times
func (c *Conn) Close() error {
	c.onceClose.Do(func() {
		close(c.doneChan)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// IsClosed returns whether Close has been called
func (c *Conn) IsClosed() bool {
	select {
	case <-c.doneChan:
		return true
	default:
		return false
	}
}

func (c *Conn) classifyError(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	if c.IsClosed() && errors.Is(err, net.ErrClosed) {
		return ErrConnectionClosed
	}
	var msgErr *wire.MessageError
	if errors.As(err, &msgErr) {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
