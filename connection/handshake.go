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

package connection

import (
	"fmt"
	"net"
	"time"

	"github.com/btcsuite/btcd/wire"
)

// Handshake performs the version/verack exchange with the remote node. The remote node's
// starting height is recorded and the protocol version is lowered to the remote's if
// necessary. Messages other than version and verack received during the exchange are
// ignored
func (c *Conn) Handshake(localHeight int32) error {
	if c.handshakeTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.handshakeTimeout)); err != nil {
			return fmt.Errorf("%w: %w", ErrTransport, err)
		}
		defer func() {
			_ = c.conn.SetDeadline(time.Time{})
		}()
	}
	localVersion, err := c.localVersionMsg(localHeight)
	if err != nil {
		return err
	}
	if err := c.WriteMessage(localVersion); err != nil {
		return err
	}
	var gotVersion, gotVerAck bool
	for !gotVersion || !gotVerAck {
		msg, err := c.ReadMessage()
		if err != nil {
			return err
		}
		switch v := msg.(type) {
		case *wire.MsgVersion:
			if gotVersion {
				return fmt.Errorf("%w: duplicate version message", ErrInvalidHandshake)
			}
			if v.Nonce == localVersion.Nonce {
				return fmt.Errorf("%w: connected to self", ErrInvalidHandshake)
			}
			gotVersion = true
			c.remoteHeight.Store(v.LastBlock)
			if v.ProtocolVersion > 0 && uint32(v.ProtocolVersion) < c.protocolVersion.Load() {
				c.protocolVersion.Store(uint32(v.ProtocolVersion))
			}
			if err := c.WriteMessage(wire.NewMsgVerAck()); err != nil {
				return err
			}
		case *wire.MsgVerAck:
			if gotVerAck {
				return fmt.Errorf("%w: duplicate verack message", ErrInvalidHandshake)
			}
			gotVerAck = true
		}
	}
	return nil
}

func (c *Conn) localVersionMsg(localHeight int32) (*wire.MsgVersion, error) {
	nonce, err := wire.RandomUint64()
	if err != nil {
		return nil, err
	}
	me := wire.NewNetAddressIPPort(net.IPv4zero, 0, 0)
	you := wire.NewNetAddressIPPort(net.IPv4zero, 0, 0)
	if tcpAddr, ok := c.conn.RemoteAddr().(*net.TCPAddr); ok {
		you = wire.NewNetAddress(tcpAddr, 0)
	}
	msg := wire.NewMsgVersion(me, you, nonce, localHeight)
	msg.ProtocolVersion = int32(c.protocolVersion.Load())
	if err := msg.AddUserAgent(c.userAgentName, c.userAgentVersion); err != nil {
		return nil, err
	}
	return msg, nil
}
