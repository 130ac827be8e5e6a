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

// Package uri formats and parses the shareable proposal signal: an opaque
// string encoding {protocol, version, topic, publicKey, symKey, relay}. The
// pairing controller treats the resulting string as opaque; only this
// package knows its shape.
package uri

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Params are the fields embedded in a pairing URI.
type Params struct {
	Protocol string
	Version  int
	Topic    string
	// PublicKey is the proposer's identity key, used for the ECDH exchange
	// that later derives the settled pairing's shared key.
	PublicKey []byte
	// SymKey is a one-time key used only to encrypt/decrypt the
	// pairing_respond exchange on the pending topic, before any shared key
	// exists.
	SymKey        []byte
	RelayProtocol string
	RelayParams   map[string]string
}

// Format renders Params as "<protocol>:<topic>@v<version>?publicKey=...&symKey=...&relay-protocol=...".
func Format(p Params) (string, error) {
	if p.Protocol == "" {
		return "", fmt.Errorf("uri: protocol required")
	}
	if p.Topic == "" {
		return "", fmt.Errorf("uri: topic required")
	}
	if len(p.PublicKey) == 0 {
		return "", fmt.Errorf("uri: public key required")
	}
	if len(p.SymKey) == 0 {
		return "", fmt.Errorf("uri: sym key required")
	}

	q := url.Values{}
	q.Set("publicKey", base64.RawURLEncoding.EncodeToString(p.PublicKey))
	q.Set("symKey", base64.RawURLEncoding.EncodeToString(p.SymKey))
	if p.RelayProtocol != "" {
		q.Set("relay-protocol", p.RelayProtocol)
	}
	for k, v := range p.RelayParams {
		q.Set("relay-"+k, v)
	}

	return fmt.Sprintf("%s:%s@v%d?%s", p.Protocol, p.Topic, p.Version, q.Encode()), nil
}

// Parse reverses Format.
func Parse(raw string) (Params, error) {
	schemeSplit := strings.SplitN(raw, ":", 2)
	if len(schemeSplit) != 2 {
		return Params{}, fmt.Errorf("uri: missing protocol separator")
	}
	protocol := schemeSplit[0]

	rest := schemeSplit[1]
	atIdx := strings.Index(rest, "@v")
	qIdx := strings.Index(rest, "?")
	if atIdx < 0 || qIdx < 0 || qIdx < atIdx {
		return Params{}, fmt.Errorf("uri: malformed body")
	}
	topic := rest[:atIdx]
	versionStr := rest[atIdx+2 : qIdx]
	version, err := strconv.Atoi(versionStr)
	if err != nil {
		return Params{}, fmt.Errorf("uri: invalid version: %w", err)
	}

	q, err := url.ParseQuery(rest[qIdx+1:])
	if err != nil {
		return Params{}, fmt.Errorf("uri: invalid query: %w", err)
	}

	pubKeyB64 := q.Get("publicKey")
	if pubKeyB64 == "" {
		return Params{}, fmt.Errorf("uri: missing publicKey")
	}
	pubKey, err := base64.RawURLEncoding.DecodeString(pubKeyB64)
	if err != nil {
		return Params{}, fmt.Errorf("uri: invalid publicKey encoding: %w", err)
	}

	symKeyB64 := q.Get("symKey")
	if symKeyB64 == "" {
		return Params{}, fmt.Errorf("uri: missing symKey")
	}
	symKey, err := base64.RawURLEncoding.DecodeString(symKeyB64)
	if err != nil {
		return Params{}, fmt.Errorf("uri: invalid symKey encoding: %w", err)
	}

	relayParams := make(map[string]string)
	for k := range q {
		if strings.HasPrefix(k, "relay-") && k != "relay-protocol" {
			relayParams[strings.TrimPrefix(k, "relay-")] = q.Get(k)
		}
	}

	return Params{
		Protocol:      protocol,
		Version:       version,
		Topic:         topic,
		PublicKey:     pubKey,
		SymKey:        symKey,
		RelayProtocol: q.Get("relay-protocol"),
		RelayParams:   relayParams,
	}, nil
}
