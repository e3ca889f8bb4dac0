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

package main

import (
	"log/slog"
	"net/http"

	"github.com/blinklabs-io/relaygw"
	"github.com/gorilla/websocket"
)

// relayHandler accepts a websocket from a relay node and handles each binary
// message as one relay frame
type relayHandler struct {
	gateway  *relaygw.Gateway
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func newRelayHandler(g *relaygw.Gateway, logger *slog.Logger) *relayHandler {
	return &relayHandler{
		gateway: g,
		logger:  logger.With("component", "relay"),
	}
}

func (h *relayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	h.logger.Info(
		"relay connected",
		"remote_addr", r.RemoteAddr,
	)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			h.logger.Info(
				"relay disconnected",
				"remote_addr", r.RemoteAddr,
				"error", err,
			)
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		if err := h.gateway.HandleRelayFrame(data); err != nil {
			h.logger.Debug(
				"dropped relay frame",
				"error", err,
			)
		}
	}
}
