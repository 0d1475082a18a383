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
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/blinklabs-io/gopeer/chain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	address          string
	network          string
	handshakeTimeout time.Duration
	debug            bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "gopeer",
	Short:         "Talk to a Bitcoin node over the peer protocol",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if flags.debug {
			level = slog.LevelDebug
		}
		slog.SetDefault(
			slog.New(
				slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
			),
		)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&flags.address,
		"address",
		"a",
		"",
		"TCP address to connect to in address:port format",
	)
	rootCmd.PersistentFlags().StringVarP(
		&flags.network,
		"network",
		"n",
		"mainnet",
		fmt.Sprintf(
			"specifies network that node is participating in (%s)",
			strings.Join(chain.NetworkNames(), ", "),
		),
	)
	rootCmd.PersistentFlags().DurationVar(
		&flags.handshakeTimeout,
		"handshake-timeout",
		30*time.Second,
		"deadline for the version exchange",
	)
	rootCmd.PersistentFlags().BoolVar(
		&flags.debug,
		"debug",
		false,
		"enable debug logging",
	)
}

func (f *globalFlags) params() (*chaincfg.Params, error) {
	params := chain.NetworkByName(f.network)
	if params == nil {
		return nil, fmt.Errorf("invalid network specified: %s", f.network)
	}
	return params, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
