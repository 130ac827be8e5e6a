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

// Events is the external observation surface a Controller notifies as a
// pairing moves through its lifecycle. All methods are invoked
// synchronously from the goroutine driving the controller; an
// implementation that wants to do its own work off that path must hand off
// itself.
type Events interface {
	// Proposed fires once propose() has inserted a pending record.
	Proposed(record PendingRecord)
	// Responded fires once a pending record receives its outcome, before
	// the pending record is deleted.
	Responded(record PendingRecord)
	// Settled fires once settle() has inserted a settled record.
	Settled(record SettledRecord)
	// Updated fires once a settled record's peer metadata changes.
	Updated(record SettledRecord)
	// Deleted fires once a settled record is removed, naming why.
	Deleted(topic string, reason string)
	// Payload fires for every pairing_payload delivered on a settled topic.
	Payload(topic string, payload []byte)
}

// NoopEvents implements Events with no-ops, for controllers that have no
// external observer wired up.
type NoopEvents struct{}

func (NoopEvents) Proposed(PendingRecord)  {}
func (NoopEvents) Responded(PendingRecord) {}
func (NoopEvents) Settled(SettledRecord)   {}
func (NoopEvents) Updated(SettledRecord)   {}
func (NoopEvents) Deleted(string, string)  {}
func (NoopEvents) Payload(string, []byte)  {}
