// Copyright 2025 Edgeo SCADA
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

package gateway

import (
	"iter"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// Cursor is the next table index FindNext considers
type Cursor int

const (
	// CursorStart begins an enumeration
	CursorStart Cursor = 0
	// CursorDone means no further device matches
	CursorDone Cursor = -1
)

// Resolver maps destination addresses to the devices they name
type Resolver struct {
	table    *Table
	networks NetworkList
}

// NewResolver creates a resolver over table for the given virtual networks
func NewResolver(table *Table, networks NetworkList) *Resolver {
	return &Resolver{
		table:    table,
		networks: append(NetworkList(nil), networks...),
	}
}

// Networks returns the configured virtual networks
func (r *Resolver) Networks() NetworkList {
	return append(NetworkList(nil), r.networks...)
}

// IsReachable reports whether dnet is served by this gateway
func (r *Resolver) IsReachable(dnet uint16) bool {
	return IsReachable(dnet, r.networks)
}

// FindNext tests the devices from cursor onwards against dest and returns
// the matching device, if any, with the cursor for the following call.
//
//   - global broadcast: the device at cursor is tested and the cursor
//     advances by one;
//   - local network (0): only the gateway is tested and the enumeration ends;
//   - virtual network: the gateway is skipped and the table is scanned up to
//     the first match;
//   - any other network is unreachable.
//
// The returned cursor is CursorDone when nothing matched or the table end
// was reached.
func (r *Resolver) FindNext(dest bacnet.Address, cursor Cursor) (ActiveDevice, Cursor, bool) {
	r.table.metrics.Lookups.Inc()

	r.table.mu.RLock()
	count := len(r.table.records)
	idx := int(cursor)
	matched := -1

	switch virtual, routed := r.networks.Virtual(); {
	case idx < 0 || idx >= count:
		idx = -1

	case dest.Net == bacnet.BroadcastNetwork:
		if MatchAddress(r.table.records[idx].Address, dest.Addr) {
			matched = idx
		}
		idx++

	case dest.Net == 0:
		if MatchAddress(r.table.records[GatewayHandle].Address, dest.Addr) {
			matched = int(GatewayHandle)
		}
		idx = -1

	case routed && dest.Net == virtual:
		if idx == 0 {
			idx = 1
		}
		for idx < count {
			i := idx
			idx++
			if MatchAddress(r.table.records[i].Address, dest.Addr) {
				matched = i
				break
			}
		}

	default:
		r.table.metrics.Unreachable.Inc()
		idx = -1
	}
	r.table.mu.RUnlock()

	next := Cursor(idx)
	if matched < 0 || idx >= count {
		next = CursorDone
	}
	if matched < 0 {
		return ActiveDevice{}, next, false
	}

	r.table.metrics.Matches.Inc()
	return ActiveDevice{table: r.table, handle: Handle(matched)}, next, true
}

// Matches returns the devices addressed by dest in ascending handle order.
// The sequence is lazy and may be ranged over any number of times.
func (r *Resolver) Matches(dest bacnet.Address) iter.Seq[ActiveDevice] {
	return func(yield func(ActiveDevice) bool) {
		cursor := CursorStart
		for {
			dev, next, ok := r.FindNext(dest, cursor)
			if ok && !yield(dev) {
				return
			}
			if next == CursorDone {
				return
			}
			cursor = next
		}
	}
}
