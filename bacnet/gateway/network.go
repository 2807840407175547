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
	"bytes"
	"fmt"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// MaxNetworks bounds the number of downstream networks a gateway announces
const MaxNetworks = 64

// NetworkList is the ordered list of virtual networks behind the gateway.
// Only the first entry is used for reachability and matching; the rest are
// announced but not routed.
type NetworkList []uint16

// NewNetworkList validates network numbers: each must be in 1..65534 and at
// most MaxNetworks may be given
func NewNetworkList(networks ...int) (NetworkList, error) {
	if len(networks) > MaxNetworks {
		return nil, fmt.Errorf("%w: %d networks, at most %d", ErrOutOfRange, len(networks), MaxNetworks)
	}
	list := make(NetworkList, 0, len(networks))
	for _, n := range networks {
		if n < 1 || n >= int(bacnet.BroadcastNetwork) {
			return nil, fmt.Errorf("%w: network %d", ErrOutOfRange, n)
		}
		list = append(list, uint16(n))
	}
	return list, nil
}

// Virtual returns the routed virtual network, the first entry
func (l NetworkList) Virtual() (uint16, bool) {
	if len(l) == 0 {
		return 0, false
	}
	return l[0], true
}

// IsReachable reports whether dnet is the global broadcast network, the
// local network (0) or the first configured virtual network
func IsReachable(dnet uint16, networks NetworkList) bool {
	if dnet == bacnet.BroadcastNetwork || dnet == 0 {
		return true
	}
	virtual, ok := networks.Virtual()
	return ok && dnet == virtual
}

// MatchAddress reports whether a device address matches a destination MAC.
// An empty destination is a MAC broadcast and matches every device.
func MatchAddress(record, dest []byte) bool {
	if len(dest) == 0 {
		return true
	}
	if len(record) < len(dest) {
		return false
	}
	return bytes.Equal(record[:len(dest)], dest)
}
