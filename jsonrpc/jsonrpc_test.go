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

package jsonrpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingParams struct {
	Value string `json:"value"`
}

func TestNewRequestRoundTrip(t *testing.T) {
	env, data, err := NewRequest("pairing_payload", pingParams{Value: "hi"})
	require.NoError(t, err)
	require.NotEmpty(t, env.ID)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, decoded.IsRequest())
	assert.False(t, decoded.IsResponse())
	assert.Equal(t, "pairing_payload", decoded.Method)

	var params pingParams
	require.NoError(t, DecodeParams(decoded, &params))
	assert.Equal(t, "hi", params.Value)
}

func TestNewResultAndError(t *testing.T) {
	id := NewID()

	resultData, err := NewResult(id, true)
	require.NoError(t, err)
	resEnv, err := Decode(resultData)
	require.NoError(t, err)
	assert.True(t, resEnv.IsResponse())
	assert.Equal(t, id, resEnv.ID)
	assert.Nil(t, resEnv.Error)

	errData, err := NewError(id, CodeUnauthorized, "nope")
	require.NoError(t, err)
	errEnv, err := Decode(errData)
	require.NoError(t, err)
	assert.True(t, errEnv.IsResponse())
	require.NotNil(t, errEnv.Error)
	assert.Equal(t, "nope", errEnv.Error.Message)
	assert.Equal(t, CodeUnauthorized, errEnv.Error.Code)
}

func TestDecodeParamsEmpty(t *testing.T) {
	env := &Envelope{JSONRPC: Version, Method: "pairing_delete"}
	var v struct{ Reason string }
	assert.Error(t, DecodeParams(env, &v))
}
