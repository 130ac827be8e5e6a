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

package uri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatParseRoundTrip(t *testing.T) {
	p := Params{
		Protocol:      "pairing",
		Version:       2,
		Topic:         "deadbeef",
		PublicKey:     []byte{1, 2, 3, 4},
		SymKey:        []byte{5, 6, 7, 8},
		RelayProtocol: "relay-v1",
		RelayParams:   map[string]string{"region": "us"},
	}

	raw, err := Format(p)
	require.NoError(t, err)
	assert.Contains(t, raw, "pairing:deadbeef@v2?")

	parsed, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, p.Protocol, parsed.Protocol)
	assert.Equal(t, p.Version, parsed.Version)
	assert.Equal(t, p.Topic, parsed.Topic)
	assert.Equal(t, p.PublicKey, parsed.PublicKey)
	assert.Equal(t, p.SymKey, parsed.SymKey)
	assert.Equal(t, p.RelayProtocol, parsed.RelayProtocol)
	assert.Equal(t, p.RelayParams, parsed.RelayParams)
}

func TestFormatRequiresFields(t *testing.T) {
	_, err := Format(Params{Topic: "t", PublicKey: []byte{1}, SymKey: []byte{2}})
	assert.Error(t, err)

	_, err = Format(Params{Protocol: "pairing", PublicKey: []byte{1}, SymKey: []byte{2}})
	assert.Error(t, err)

	_, err = Format(Params{Protocol: "pairing", Topic: "t", SymKey: []byte{2}})
	assert.Error(t, err)

	_, err = Format(Params{Protocol: "pairing", Topic: "t", PublicKey: []byte{1}})
	assert.Error(t, err)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse("not-a-uri")
	assert.Error(t, err)

	_, err = Parse("pairing:topic-no-version-or-query")
	assert.Error(t, err)
}
