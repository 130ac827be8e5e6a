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

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistration(t *testing.T) {
	assert.NotNil(t, PairingsProposed)
	assert.NotNil(t, PairingsSettled)
	assert.NotNil(t, PairingsDeleted)
	assert.NotNil(t, PairingsUpdated)
	assert.NotNil(t, RouterDispatched)
	assert.NotNil(t, RouterRejected)
	assert.NotNil(t, PublishDuration)
	assert.NotNil(t, PublishFailures)
	assert.NotNil(t, ActivePairings)

	families, err := Registry.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetricsIncrement(t *testing.T) {
	PairingsProposed.Add(0)
	PairingsSettled.WithLabelValues("success").Add(0)
	PairingsDeleted.WithLabelValues("settled").Add(0)
	RouterDispatched.WithLabelValues("pairing_payload").Add(0)
	RouterRejected.WithLabelValues("wc_sessionPropose").Add(0)
	PublishFailures.WithLabelValues("settled").Add(0)
	ActivePairings.Set(0)
}
