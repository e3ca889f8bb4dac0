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

// Package rpc implements the JSON-RPC 2.0 websocket endpoint that clients use to
// subscribe to feeds and receive their notifications
package rpc

import (
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 1 << 20
)

// Server accepts websocket connections and serves subscribe and unsubscribe
// requests against a feed manager
type Server struct {
	manager      FeedManager
	logger       *slog.Logger
	writeTimeout time.Duration
	upgrader     websocket.Upgrader
	connsMutex   sync.Mutex
	conns        map[*clientConn]struct{}
	closed       bool
	waitGroup    sync.WaitGroup
}

// ServerOptionFunc represents a function used to modify the Server config
type ServerOptionFunc func(*Server)

// WithLogger specifies the logger
func WithLogger(logger *slog.Logger) ServerOptionFunc {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithWriteTimeout specifies the deadline for writing a single message
func WithWriteTimeout(timeout time.Duration) ServerOptionFunc {
	return func(s *Server) {
		s.writeTimeout = timeout
	}
}

// WithCheckOrigin specifies the origin check used when upgrading connections
func WithCheckOrigin(checkOrigin func(r *http.Request) bool) ServerOptionFunc {
	return func(s *Server) {
		s.upgrader.CheckOrigin = checkOrigin
	}
}

// NewServer returns a new Server
func NewServer(manager FeedManager, options ...ServerOptionFunc) *Server {
	s := &Server{
		manager:      manager,
		writeTimeout: DefaultWriteTimeout,
		conns:        make(map[*clientConn]struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "rpc")
	return s
}

// ServeHTTP upgrades the request to a websocket and serves it until the client
// disconnects or the server is closed
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug(
			"websocket upgrade failed",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		return
	}
	c := newClientConn(s, conn)
	s.connsMutex.Lock()
	if s.closed {
		s.connsMutex.Unlock()
		conn.Close()
		return
	}
	s.conns[c] = struct{}{}
	s.waitGroup.Add(1)
	s.connsMutex.Unlock()
	activeConnections.Inc()
	s.logger.Debug(
		"client connected",
		"remote_addr", r.RemoteAddr,
	)
	defer func() {
		s.connsMutex.Lock()
		delete(s.conns, c)
		s.connsMutex.Unlock()
		activeConnections.Dec()
		s.waitGroup.Done()
	}()
	c.serve()
}

// Close disconnects all clients and waits for their handlers to finish
func (s *Server) Close() {
	s.connsMutex.Lock()
	s.closed = true
	conns := make([]*clientConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMutex.Unlock()
	for _, c := range conns {
		c.conn.Close()
	}
	s.waitGroup.Wait()
}

// clientConn is a single websocket client and the subscriptions it owns
type clientConn struct {
	server     *Server
	conn       *websocket.Conn
	logger     *slog.Logger
	writeMutex sync.Mutex
	subsMutex  sync.Mutex
	subs       map[string]struct{}
	deliveryWg sync.WaitGroup
}

func newClientConn(s *Server, conn *websocket.Conn) *clientConn {
	conn.SetReadLimit(DefaultReadLimit)
	return &clientConn{
		server: s,
		conn:   conn,
		logger: s.logger.With("remote_addr", conn.RemoteAddr().String()),
		subs:   make(map[string]struct{}),
	}
}

func (c *clientConn) serve() {
	defer c.cleanup()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(
					"client read failed",
					"error", err,
				)
			}
			return
		}
		resp := c.handleRequest(data)
		if err := c.write(resp); err != nil {
			c.logger.Debug(
				"client write failed",
				"error", err,
			)
			return
		}
	}
}

// cleanup removes every subscription owned by the client. Unsubscribing closes
// the subscriber queues, which stops the delivery goroutines
func (c *clientConn) cleanup() {
	c.subsMutex.Lock()
	ids := make([]string, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	c.subs = make(map[string]struct{})
	c.subsMutex.Unlock()
	for _, id := range ids {
		c.server.manager.Unsubscribe(id)
	}
	c.conn.Close()
	c.deliveryWg.Wait()
	c.logger.Debug(
		"client disconnected",
		"subscriptions", len(ids),
	)
}

func (c *clientConn) handleRequest(data []byte) *Response {
	req, err := decodeRequest(data)
	if err != nil {
		requestsHandled.WithLabelValues("", "parse_error").Inc()
		return errorResponse(nil, newError(CodeParseError, "Parse error"))
	}
	var result any
	var rpcErr *Error
	switch req.Method {
	case MethodSubscribe:
		result, rpcErr = c.subscribe(req.Params)
	case MethodUnsubscribe:
		result, rpcErr = c.unsubscribe(req.Params)
	default:
		rpcErr = newError(
			CodeMethodNotFound,
			"Method not found: "+req.Method,
		)
		requestsHandled.WithLabelValues("unknown", "error").Inc()
		return errorResponse(req.Id, rpcErr)
	}
	if rpcErr != nil {
		requestsHandled.WithLabelValues(req.Method, "error").Inc()
		c.logger.Debug(
			"rejected request",
			"method", req.Method,
			"code", rpcErr.Code,
			"error", rpcErr.Message,
		)
		return errorResponse(req.Id, rpcErr)
	}
	requestsHandled.WithLabelValues(req.Method, "ok").Inc()
	return &Response{
		JsonRpc: jsonRpcVersion,
		Id:      req.Id,
		Result:  result,
	}
}

func (c *clientConn) subscribe(params any) (any, *Error) {
	manager := c.server.manager
	feedName, opts, rpcErr := parseSubscribe(manager, params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	sub, err := manager.Subscribe(feedName, opts)
	if err != nil {
		return nil, subscribeError(manager, feedName, opts, err)
	}
	c.subsMutex.Lock()
	c.subs[sub.Id()] = struct{}{}
	c.subsMutex.Unlock()
	c.deliveryWg.Add(1)
	go c.deliver(sub.Id(), sub.FeedName(), sub.Messages())
	c.logger.Debug(
		"subscribed",
		"feed", feedName,
		"subscription_id", sub.Id(),
	)
	return sub.Id(), nil
}

func (c *clientConn) unsubscribe(params any) (any, *Error) {
	id, rpcErr := parseUnsubscribe(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	c.subsMutex.Lock()
	delete(c.subs, id)
	c.subsMutex.Unlock()
	c.server.manager.Unsubscribe(id)
	// Unknown ids are not an error
	return true, nil
}

// deliver writes queued payloads to the client until the subscription is removed
func (c *clientConn) deliver(id string, feedName string, messages <-chan []byte) {
	defer c.deliveryWg.Done()
	counter := notificationsSent.WithLabelValues(feedName)
	for payload := range messages {
		msg := &Notification{
			JsonRpc: jsonRpcVersion,
			Method:  MethodSubscribe,
			Params: NotificationParams{
				Subscription: id,
				Result:       payload,
			},
		}
		if err := c.write(msg); err != nil {
			c.logger.Debug(
				"notification write failed",
				"subscription_id", id,
				"error", err,
			)
			// Unblock the reader so the connection is cleaned up
			c.conn.Close()
			return
		}
		counter.Inc()
	}
}

func (c *clientConn) write(msg any) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func errorResponse(id any, rpcErr *Error) *Response {
	return &Response{
		JsonRpc: jsonRpcVersion,
		Id:      id,
		Error:   rpcErr,
	}
}
