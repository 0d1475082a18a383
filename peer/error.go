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
	"errors"
	"fmt"

	"github.com/blinklabs-io/gopeer/connection"
)

var (
	// ErrPeerClosed is returned when an operation is attempted after the peer has shut down
	ErrPeerClosed = errors.New("peer is closed")

	// ErrAlreadyRunning is returned by Run when another call to Run is in progress
	ErrAlreadyRunning = errors.New("peer is already running")

	// ErrPeerDisconnected fails any block requests outstanding when the peer shuts down
	ErrPeerDisconnected = errors.New("peer disconnected")

	// ErrBlockNotFound fails a block request that the remote node could not serve
	ErrBlockNotFound = errors.New("block not found")
)

// PeerError is returned by Run when the connection fails
type PeerError struct {
	Cause error
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer connection failed: %s", e.Cause)
}

func (e *PeerError) Unwrap() error {
	return e.Cause
}

// IsMalformed returns whether the failure was caused by a message that could not be decoded
func (e *PeerError) IsMalformed() bool {
	return errors.Is(e.Cause, connection.ErrMalformedMessage)
}

// IsTransport returns whether the failure was caused by the underlying connection
func (e *PeerError) IsTransport() bool {
	return errors.Is(e.Cause, connection.ErrTransport)
}
