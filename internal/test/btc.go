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

package test

import (
	"net"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

// BtcPeer is the far end of a net.Pipe acting as a Bitcoin node
type BtcPeer struct {
	t       testing.TB
	Conn    net.Conn
	Network wire.BitcoinNet
}

// NewBtcPeerPipe returns the local end of a pipe along with a BtcPeer driving the
// remote end. The remote end is closed when the test finishes
func NewBtcPeerPipe(t testing.TB, network wire.BitcoinNet) (net.Conn, *BtcPeer) {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		_ = remote.Close()
	})
	return local, &BtcPeer{
		t:       t,
		Conn:    remote,
		Network: network,
	}
}

// Send writes a message to the local end
func (p *BtcPeer) Send(msg wire.Message) {
	p.t.Helper()
	_, err := wire.WriteMessageWithEncodingN(
		p.Conn,
		msg,
		wire.ProtocolVersion,
		p.Network,
		wire.WitnessEncoding,
	)
	require.NoError(p.t, err)
}

// Receive reads the next message written by the local end
func (p *BtcPeer) Receive() wire.Message {
	p.t.Helper()
	require.NoError(p.t, p.Conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, _, err := wire.ReadMessageWithEncodingN(
		p.Conn,
		wire.ProtocolVersion,
		p.Network,
		wire.WitnessEncoding,
	)
	require.NoError(p.t, err)
	return msg
}

// BtcVersionMsg returns a version message advertising the given services
func BtcVersionMsg(services wire.ServiceFlag) *wire.MsgVersion {
	addr := wire.NewNetAddressIPPort(net.ParseIP("127.0.0.1"), 12345, services)
	msg := wire.NewMsgVersion(addr, addr, 1, 0)
	msg.Services = services
	msg.UserAgent = "/dummy_user_agent:0.0.1/"
	return msg
}

// BtcTx returns a minimal transaction. Different seeds give different hashes
func BtcTx(seed byte, value int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{seed}, 1), []byte{0x51}, nil))
	tx.AddTxOut(wire.NewTxOut(value, []byte{0x51}))
	return tx
}
