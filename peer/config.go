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
	"log/slog"
)

const (
	// DefaultRequestedCacheSize is the number of in-flight getdata hashes remembered
	DefaultRequestedCacheSize = 1024
)

// Config is used to configure the Peer
type Config struct {
	Logger *slog.Logger
	// DownloadData controls whether announced and unconnected blocks are fetched
	DownloadData       bool
	RequestedCacheSize int
	Listeners          []Listener
}

// PeerOptionFunc represents a function used to modify the Peer config
type PeerOptionFunc func(*Config)

// NewConfig returns a new Peer config object with the provided options
func NewConfig(options ...PeerOptionFunc) Config {
	c := Config{
		DownloadData:       true,
		RequestedCacheSize: DefaultRequestedCacheSize,
	}
	// Apply provided options functions
	for _, option := range options {
		option(&c)
	}
	return c
}

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) PeerOptionFunc {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithDownloadData specifies whether announced and unconnected blocks are fetched
func WithDownloadData(downloadData bool) PeerOptionFunc {
	return func(c *Config) {
		c.DownloadData = downloadData
	}
}

// WithRequestedCacheSize specifies how many in-flight getdata hashes are remembered to avoid
// requesting the same block twice
func WithRequestedCacheSize(size int) PeerOptionFunc {
	return func(c *Config) {
		c.RequestedCacheSize = size
	}
}

// WithListeners specifies event listeners registered when the peer is created
func WithListeners(listeners ...Listener) PeerOptionFunc {
	return func(c *Config) {
		c.Listeners = append(c.Listeners, listeners...)
	}
}
