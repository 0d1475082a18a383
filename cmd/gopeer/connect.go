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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/blinklabs-io/gopeer/chain"
	"github.com/blinklabs-io/gopeer/connection"
	"github.com/blinklabs-io/gopeer/peer"
	"golang.org/x/sync/errgroup"
)

// createPeer dials the remote node, performs the version exchange and returns a peer for the
// connection backed by a fresh in-memory chain
func createPeer(
	ctx context.Context,
	f *globalFlags,
	options ...peer.PeerOptionFunc,
) (*peer.Peer, *chain.Chain, error) {
	if f.address == "" {
		return nil, nil, errors.New("you must specify --address")
	}
	params, err := f.params()
	if err != nil {
		return nil, nil, err
	}
	localChain, err := chain.New(params, chain.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, err
	}
	var dialer net.Dialer
	netConn, err := dialer.DialContext(ctx, "tcp", f.address)
	if err != nil {
		return nil, nil, fmt.Errorf("connection failed: %w", err)
	}
	conn := connection.NewConn(
		netConn,
		connection.WithNetwork(params),
		connection.WithHandshakeTimeout(f.handshakeTimeout),
	)
	if err := conn.Handshake(localChain.BestHeight()); err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	slog.Info(
		fmt.Sprintf(
			"connected to %s (protocol version %d, height %d)",
			f.address,
			conn.ProtocolVersion(),
			conn.RemoteHeight(),
		),
		"component", "network",
		"connection_id", conn.Id().String(),
	)
	options = append([]peer.PeerOptionFunc{peer.WithLogger(slog.Default())}, options...)
	cfg := peer.NewConfig(options...)
	return peer.New(conn, localChain, &cfg), localChain, nil
}

// runPeer runs the peer until it stops or the context is cancelled, in which case the peer is
// closed. The work function is run alongside the peer and may close it to finish early
func runPeer(
	ctx context.Context,
	p *peer.Peer,
	work func(context.Context) error,
) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	runDoneChan := make(chan struct{})
	g.Go(func() error {
		defer close(runDoneChan)
		return p.Run()
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-runDoneChan:
		}
		return p.Close()
	})
	if work != nil {
		g.Go(func() error {
			return work(ctx)
		})
	}
	return g.Wait()
}
