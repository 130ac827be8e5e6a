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

package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wireMessage is the control envelope exchanged with a relay server: a
// publish pushes a topic+ciphertext pair, a subscribe registers interest,
// and the server echoes back "message" frames for any topic a client has
// subscribed to.
type wireMessage struct {
	Type    string `json:"type"`
	Topic   string `json:"topic"`
	Payload []byte `json:"payload,omitempty"`
}

// WSClient is a relay.Client that speaks a minimal publish/subscribe
// protocol over a single websocket connection to a relay server.
type WSClient struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]chan InboundMessage

	done chan struct{}
}

// DialWS connects to a relay server at url within dialTimeout.
func DialWS(url string, dialTimeout time.Duration) (*WSClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("relay: dial %s: %w", url, err)
	}

	c := &WSClient{
		conn: conn,
		subs: make(map[string]chan InboundMessage),
		done: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	for {
		var msg wireMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			for _, ch := range c.subs {
				close(ch)
			}
			c.subs = make(map[string]chan InboundMessage)
			c.mu.Unlock()
			return
		}
		if msg.Type != "message" {
			continue
		}

		// The send happens with c.mu held so it can never interleave with
		// Unsubscribe's delete-then-close of the same channel -- the two
		// are mutually exclusive critical sections on the same lock, so
		// Unsubscribe's close is guaranteed to run only once this send
		// (if any) has already completed.
		c.mu.Lock()
		ch, ok := c.subs[msg.Topic]
		if !ok {
			c.mu.Unlock()
			continue
		}
		select {
		case ch <- InboundMessage{Topic: msg.Topic, Payload: msg.Payload}:
		case <-c.done:
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

func (c *WSClient) Publish(ctx context.Context, topic string, payload []byte, opts PublishOptions) error {
	sealed, err := sealEnvelope(opts.EncryptKeys, payload)
	if err != nil {
		return fmt.Errorf("relay: seal: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	return c.conn.WriteJSON(wireMessage{Type: "publish", Topic: topic, Payload: sealed})
}

func (c *WSClient) Subscribe(ctx context.Context, topic string, decryptKeys [][]byte) (<-chan InboundMessage, error) {
	c.mu.Lock()
	if _, ok := c.subs[topic]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("relay: already subscribed to %s", topic)
	}
	raw := make(chan InboundMessage, 16)
	c.subs[topic] = raw
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(wireMessage{Type: "subscribe", Topic: topic})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("relay: subscribe %s: %w", topic, err)
	}

	if len(decryptKeys) == 0 {
		return raw, nil
	}

	out := make(chan InboundMessage, 16)
	go func() {
		defer close(out)
		for msg := range raw {
			plain, err := openEnvelope(decryptKeys, msg.Payload)
			if err != nil {
				continue
			}
			out <- InboundMessage{Topic: msg.Topic, Payload: plain}
		}
	}()
	return out, nil
}

func (c *WSClient) Unsubscribe(ctx context.Context, topic string) error {
	c.mu.Lock()
	ch, ok := c.subs[topic]
	if ok {
		delete(c.subs, topic)
	}
	c.mu.Unlock()
	if !ok {
		return nil
	}
	close(ch)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(wireMessage{Type: "unsubscribe", Topic: topic})
}

func (c *WSClient) Close() error {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	return c.conn.Close()
}
