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

import "errors"

var (
	// ErrTransport wraps I/O failures on the underlying connection
	ErrTransport = errors.New("transport error")

	// ErrMalformedMessage wraps failures to interpret received bytes as a valid message
	ErrMalformedMessage = errors.New("malformed message")

	ErrConnectionClosed = errors.New("connection is closed")

	ErrInvalidHandshake = errors.New("invalid handshake")
)
