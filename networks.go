// Copyright 2026 Blink Labs Software
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

package relaygw

import (
	"math/big"

	"github.com/blinklabs-io/relaygw/relay"
	"github.com/btcsuite/btcd/chaincfg"
)

// ProtocolFamily identifies the peer protocol and feed kinds used by a network
type ProtocolFamily uint8

const (
	ProtocolFamilyNone ProtocolFamily = iota
	ProtocolFamilyBitcoin
	ProtocolFamilyEthereum
)

func (f ProtocolFamily) String() string {
	switch f {
	case ProtocolFamilyBitcoin:
		return "bitcoin"
	case ProtocolFamilyEthereum:
		return "ethereum"
	}
	return "unknown"
}

// Network describes a blockchain network the gateway can serve
type Network struct {
	Name   string
	Family ProtocolFamily
	// BtcParams is set for Bitcoin networks
	BtcParams *chaincfg.Params
	// ChainId is set for Ethereum networks
	ChainId *big.Int
}

// Network definitions
var (
	NetworkBtcMainnet = Network{
		Name:      "btc-mainnet",
		Family:    ProtocolFamilyBitcoin,
		BtcParams: &chaincfg.MainNetParams,
	}
	NetworkBtcTestnet3 = Network{
		Name:      "btc-testnet3",
		Family:    ProtocolFamilyBitcoin,
		BtcParams: &chaincfg.TestNet3Params,
	}
	NetworkBtcRegtest = Network{
		Name:      "btc-regtest",
		Family:    ProtocolFamilyBitcoin,
		BtcParams: &chaincfg.RegressionNetParams,
	}
	NetworkEthMainnet = Network{
		Name:    "eth-mainnet",
		Family:  ProtocolFamilyEthereum,
		ChainId: big.NewInt(1),
	}
	NetworkEthSepolia = Network{
		Name:    "eth-sepolia",
		Family:  ProtocolFamilyEthereum,
		ChainId: big.NewInt(11155111),
	}

	NetworkInvalid = Network{
		Name: "invalid",
	} // NetworkInvalid is used as a return value for lookup functions when a network isn't found
)

// List of valid networks for use in lookup functions
var networks = []Network{
	NetworkBtcMainnet,
	NetworkBtcTestnet3,
	NetworkBtcRegtest,
	NetworkEthMainnet,
	NetworkEthSepolia,
}

// NetworkByName returns a predefined network by name
func NetworkByName(name string) Network {
	for _, network := range networks {
		if network.Name == name {
			return network
		}
	}
	return NetworkInvalid
}

// NetworkNames returns the names of the predefined networks
func NetworkNames() []string {
	ret := make([]string, 0, len(networks))
	for _, network := range networks {
		ret = append(ret, network.Name)
	}
	return ret
}

// RelayHashFunc returns the function used to verify relay frame hashes
func (n Network) RelayHashFunc() relay.HashFunc {
	switch n.Family {
	case ProtocolFamilyBitcoin:
		return relay.BitcoinHash
	case ProtocolFamilyEthereum:
		return relay.EthereumHash
	}
	return nil
}
