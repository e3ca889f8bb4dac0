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

package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sugawarayuuta/sonnet"
)

const jsonRpcVersion = "2.0"

// Error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAccountIdError = -32004
)

const (
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"
)

// Request is a JSON-RPC 2.0 request
type Request struct {
	JsonRpc string `json:"jsonrpc"`
	Id      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// decodeRequest keeps numbers as literals so filter bounds are never rounded
// through float64
func decodeRequest(data []byte) (Request, error) {
	var req Request
	dec := sonnet.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, err
	}
	// Numeric ids are echoed back as numbers
	if num, ok := req.Id.(sonnet.Number); ok {
		req.Id = json.Number(num)
	}
	return req, nil
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result and Error is set
type Response struct {
	JsonRpc string `json:"jsonrpc"`
	Id      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func newError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Notification carries one feed payload to a subscriber
type Notification struct {
	JsonRpc string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

type NotificationParams struct {
	Subscription string `json:"subscription"`
	// Result is the projected payload exactly as serialized by the feed
	Result json.RawMessage `json:"result"`
}
