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
	"sync"

	"github.com/blinklabs-io/relaygw/protocol/btc"
)

// PeerManagerPeerClosedFunc is a function that takes a peer ID and an optional error
type PeerManagerPeerClosedFunc func(string, error)

// PeerManagerTag represents the various tags that can be associated with a peer
type PeerManagerTag uint16

const (
	PeerManagerTagNone PeerManagerTag = iota

	PeerManagerTagRoleInitiator
	PeerManagerTagRoleResponder
)

func (t PeerManagerTag) String() string {
	tmp := map[PeerManagerTag]string{
		PeerManagerTagRoleInitiator: "RoleInitiator",
		PeerManagerTagRoleResponder: "RoleResponder",
	}
	ret, ok := tmp[t]
	if !ok {
		return "Unknown"
	}
	return ret
}

// PeerManager tracks the peer connections of a gateway and reports when they close
type PeerManager struct {
	config     PeerManagerConfig
	peers      map[string]*PeerManagerPeer
	peersMutex sync.Mutex
	waitGroup  sync.WaitGroup
}

type PeerManagerConfig struct {
	PeerClosedFunc PeerManagerPeerClosedFunc
}

func NewPeerManager(cfg PeerManagerConfig) *PeerManager {
	return &PeerManager{
		config: cfg,
		peers:  make(map[string]*PeerManagerPeer),
	}
}

// AddPeer starts tracking a peer. When the peer reports a fatal error or is
// closed, it is removed and the configured callback is called
func (m *PeerManager) AddPeer(peerId string, peer *btc.Peer, tags ...PeerManagerTag) {
	tmpTags := map[PeerManagerTag]bool{}
	for _, tag := range tags {
		tmpTags[tag] = true
	}
	m.peersMutex.Lock()
	m.peers[peerId] = &PeerManagerPeer{
		Id:   peerId,
		Peer: peer,
		Tags: tmpTags,
	}
	m.waitGroup.Add(1)
	m.peersMutex.Unlock()
	go func() {
		defer m.waitGroup.Done()
		// The channel is closed without an error when the peer is closed by us
		err := <-peer.ErrorChan()
		m.RemovePeer(peerId)
		_ = peer.Close()
		// Call configured peer closed callback func
		if m.config.PeerClosedFunc != nil {
			m.config.PeerClosedFunc(peerId, err)
		}
	}()
}

func (m *PeerManager) RemovePeer(peerId string) {
	m.peersMutex.Lock()
	delete(m.peers, peerId)
	m.peersMutex.Unlock()
}

func (m *PeerManager) GetPeerById(peerId string) *PeerManagerPeer {
	m.peersMutex.Lock()
	defer m.peersMutex.Unlock()
	return m.peers[peerId]
}

func (m *PeerManager) GetPeersByTags(tags ...PeerManagerTag) []*PeerManagerPeer {
	var ret []*PeerManagerPeer
	m.peersMutex.Lock()
	for _, peer := range m.peers {
		skipPeer := false
		for _, tag := range tags {
			if _, ok := peer.Tags[tag]; !ok {
				skipPeer = true
				break
			}
		}
		if !skipPeer {
			ret = append(ret, peer)
		}
	}
	m.peersMutex.Unlock()
	return ret
}

// Len returns the number of tracked peers
func (m *PeerManager) Len() int {
	m.peersMutex.Lock()
	defer m.peersMutex.Unlock()
	return len(m.peers)
}

// Close closes all peers and waits for their closed callbacks to return
func (m *PeerManager) Close() {
	for _, peer := range m.GetPeersByTags() {
		_ = peer.Peer.Close()
	}
	m.waitGroup.Wait()
}

type PeerManagerPeer struct {
	Id   string
	Peer *btc.Peer
	Tags map[PeerManagerTag]bool
}
