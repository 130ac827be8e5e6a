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

package pairing

import (
	"sync"
	"time"

	"github.com/sage-x-project/pairing/jsonrpc"
)

// replayGuard suppresses JSON-RPC requests the relay redelivers: it
// remembers (topic, id) pairs for ttl and reports whether a request has
// already been routed once. settleFromOutcome's singleflight keying and
// Await's exactly-once resolve already make a redelivered pairing_respond
// harmless; replayGuard closes the same gap for every other reserved
// method (pairing_update, pairing_delete, pairing_payload, and permitted
// application methods), where reprocessing would otherwise double-apply a
// metadata update or double-count a metric.
type replayGuard struct {
	ttl  time.Duration
	data sync.Map // topic -> *sync.Map (id -> expiryUnix)
	tick *time.Ticker
	stop chan struct{}
}

// newReplayGuard starts a TTL-based dedup cache; typical TTL is the relay's
// own redelivery window, a few minutes.
func newReplayGuard(ttl time.Duration) *replayGuard {
	g := &replayGuard{
		ttl:  ttl,
		stop: make(chan struct{}),
		tick: time.NewTicker(time.Minute),
	}
	go g.gcLoop()
	return g
}

// seen reports whether (topic, id) was already routed; if not, it records
// the pair and returns false.
func (g *replayGuard) seen(topic string, id jsonrpc.ID) bool {
	if topic == "" || id == "" {
		return false
	}
	exp := time.Now().Add(g.ttl).Unix()

	v, _ := g.data.LoadOrStore(topic, &sync.Map{})
	m := v.(*sync.Map)

	if old, ok := m.Load(id); ok {
		if prevExp, _ := old.(int64); prevExp >= time.Now().Unix() {
			return true
		}
	}
	m.Store(id, exp)
	return false
}

// forget drops every remembered id for topic; called when a topic's
// subscription is torn down so its dedup map doesn't linger.
func (g *replayGuard) forget(topic string) {
	g.data.Delete(topic)
}

func (g *replayGuard) close() {
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
	g.tick.Stop()
}

func (g *replayGuard) gcLoop() {
	for {
		select {
		case <-g.tick.C:
			now := time.Now().Unix()
			g.data.Range(func(k, v any) bool {
				m := v.(*sync.Map)
				empty := true
				m.Range(func(idKey, expVal any) bool {
					if exp, _ := expVal.(int64); exp < now {
						m.Delete(idKey)
					} else {
						empty = false
					}
					return true
				})
				if empty {
					g.data.Delete(k)
				}
				return true
			})
		case <-g.stop:
			return
		}
	}
}
