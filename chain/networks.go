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

package chain

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// List of valid networks for use in lookup functions
var networks = []*chaincfg.Params{
	&chaincfg.MainNetParams,
	&chaincfg.TestNet3Params,
	&chaincfg.RegressionNetParams,
	&chaincfg.SimNetParams,
	&chaincfg.SigNetParams,
}

// NetworkByName returns the predefined network params by name, or nil if there is no such
// network
func NetworkByName(name string) *chaincfg.Params {
	for _, network := range networks {
		if network.Name == name {
			return network
		}
	}
	return nil
}

// NetworkByNet returns the predefined network params for the message start bytes, or nil if
// there is no such network
func NetworkByNet(net wire.BitcoinNet) *chaincfg.Params {
	for _, network := range networks {
		if network.Net == net {
			return network
		}
	}
	return nil
}

// NetworkNames returns the names of the predefined networks
func NetworkNames() []string {
	ret := make([]string, 0, len(networks))
	for _, network := range networks {
		ret = append(ret, network.Name)
	}
	return ret
}
