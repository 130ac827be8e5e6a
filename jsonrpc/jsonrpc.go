// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package jsonrpc implements the minimal JSON-RPC 2.0 envelope the pairing
// controller exchanges with its peer over the relay: requests, results, and
// errors, classified without a schema (an envelope is a request if it
// carries a method, a response otherwise).
package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Version is the fixed "jsonrpc" field value.
const Version = "2.0"

// ID identifies a request and correlates it with its response.
type ID string

// NewID returns a fresh request identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard JSON-RPC error codes used by the pairing wire protocol.
const (
	CodeUnauthorized    = -32001
	CodeInvalidParams   = -32602
	CodeMethodNotFound  = -32601
	CodeInternal        = -32603
)

// Envelope is the union of request and response shapes; Unmarshal into it
// first and inspect IsRequest/IsResponse to decide how to interpret it.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      ID              `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsRequest reports whether the envelope carries a method, i.e. is a request.
func (e *Envelope) IsRequest() bool {
	return e.Method != ""
}

// IsResponse reports whether the envelope carries a result or an error and
// no method.
func (e *Envelope) IsResponse() bool {
	return e.Method == "" && (e.Result != nil || e.Error != nil)
}

// Decode unmarshals a raw relay payload into an Envelope.
func Decode(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("jsonrpc: decode envelope: %w", err)
	}
	return &env, nil
}

// NewRequest builds a request envelope, marshaling params.
func NewRequest(method string, params any) (*Envelope, []byte, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("jsonrpc: marshal params: %w", err)
	}
	env := &Envelope{
		JSONRPC: Version,
		ID:      NewID(),
		Method:  method,
		Params:  raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("jsonrpc: marshal request: %w", err)
	}
	return env, data, nil
}

// NewResult builds a successful response envelope for the given request ID.
func NewResult(id ID, result any) ([]byte, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal result: %w", err)
	}
	env := &Envelope{JSONRPC: Version, ID: id, Result: raw}
	return json.Marshal(env)
}

// NewError builds an error response envelope for the given request ID.
func NewError(id ID, code int, message string) ([]byte, error) {
	env := &Envelope{JSONRPC: Version, ID: id, Error: &Error{Code: code, Message: message}}
	return json.Marshal(env)
}

// DecodeParams unmarshals an envelope's Params into v.
func DecodeParams(env *Envelope, v any) error {
	if len(env.Params) == 0 {
		return fmt.Errorf("jsonrpc: empty params")
	}
	return json.Unmarshal(env.Params, v)
}
