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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClientPlaintextRoundTrip(t *testing.T) {
	bus := NewBus()
	publisher := NewMemoryClient(bus)
	subscriber := NewMemoryClient(bus)

	ch, err := subscriber.Subscribe(context.Background(), "topic-a", nil)
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), "topic-a", []byte("hello"), PublishOptions{}))

	select {
	case msg := <-ch:
		assert.Equal(t, "topic-a", msg.Topic)
		assert.Equal(t, []byte("hello"), msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemoryClientSymmetricEncryption(t *testing.T) {
	bus := NewBus()
	publisher := NewMemoryClient(bus)
	subscriber := NewMemoryClient(bus)

	sharedKey := make([]byte, 32)
	for i := range sharedKey {
		sharedKey[i] = byte(i)
	}

	ch, err := subscriber.Subscribe(context.Background(), "settled-topic", [][]byte{sharedKey})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), "settled-topic", []byte("secret"), PublishOptions{
		EncryptKeys: [][]byte{sharedKey},
	}))

	select {
	case msg := <-ch:
		assert.Equal(t, []byte("secret"), msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestMemoryClientPreservesOrderPerTopic(t *testing.T) {
	bus := NewBus()
	publisher := NewMemoryClient(bus)
	subscriber := NewMemoryClient(bus)

	ch, err := subscriber.Subscribe(context.Background(), "ordered", nil)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		require.NoError(t, publisher.Publish(context.Background(), "ordered", []byte{byte(i)}, PublishOptions{}))
	}

	for i := 0; i < 20; i++ {
		select {
		case msg := <-ch:
			assert.Equal(t, []byte{byte(i)}, msg.Payload)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestMemoryClientUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	publisher := NewMemoryClient(bus)
	subscriber := NewMemoryClient(bus)

	ch, err := subscriber.Subscribe(context.Background(), "topic-b", nil)
	require.NoError(t, err)
	require.NoError(t, subscriber.Unsubscribe(context.Background(), "topic-b"))

	require.NoError(t, publisher.Publish(context.Background(), "topic-b", []byte("ignored"), PublishOptions{}))

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel should be closed after unsubscribe")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel neither closed nor delivered")
	}
}
