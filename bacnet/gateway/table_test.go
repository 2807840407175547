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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
)

// newTestTable builds gateway 1000 plus routed devices 2001 at [5] and 2002 at [9]
func newTestTable(t *testing.T, opts ...Option) *Table {
	t.Helper()
	table := NewTable(opts...)
	_, err := table.AddDevice(1000, WithObjectName("Gateway"), WithAddress([]byte{1}))
	require.NoError(t, err)
	_, err = table.AddDevice(2001, WithAddress([]byte{5}))
	require.NoError(t, err)
	_, err = table.AddDevice(2002, WithAddress([]byte{9}))
	require.NoError(t, err)
	return table
}

func TestAddDeviceDefaults(t *testing.T) {
	table := NewTable()
	dev, err := table.AddDevice(42)
	require.NoError(t, err)

	assert.True(t, dev.IsGateway())
	rec := dev.Record()
	assert.Equal(t, uint32(42), rec.Instance)
	assert.Equal(t, DefaultName, rec.Name)
	assert.Equal(t, DefaultDescription, rec.Description)
	assert.Equal(t, uint32(0), rec.Revision)
	assert.Equal(t, 1, table.Len())
	assert.Equal(t, DefaultCapacity, table.Cap())
}

func TestAddDeviceSelectsNewEntry(t *testing.T) {
	table := NewTable()
	_, err := table.AddDevice(1)
	require.NoError(t, err)

	dev, err := table.AddDevice(2, WithObjectName("AHU"), WithDescription("Air handler"))
	require.NoError(t, err)
	assert.Equal(t, Handle(1), dev.Handle())
	assert.False(t, dev.IsGateway())
	assert.Equal(t, "AHU", dev.Record().Name)
	assert.Equal(t, "Air handler", dev.Record().Description)
}

func TestAddDeviceTableFull(t *testing.T) {
	table := NewTable(WithCapacity(2))
	_, err := table.AddDevice(1)
	require.NoError(t, err)
	_, err = table.AddDevice(2)
	require.NoError(t, err)

	before := table.Records()
	_, err = table.AddDevice(3)
	assert.ErrorIs(t, err, ErrTableFull)
	assert.Equal(t, before, table.Records())
	assert.Equal(t, int64(1), table.Metrics().AddFailures.Value())
}

func TestAddDeviceValidation(t *testing.T) {
	table := NewTable()
	_, err := table.AddDevice(1)
	require.NoError(t, err)

	tests := []struct {
		name     string
		instance uint32
		opts     []DeviceOption
		want     error
	}{
		{"instance too large", bacnet.MaxInstance + 1, nil, ErrOutOfRange},
		{"duplicate instance", 1, nil, ErrDuplicateInstance},
		{"name at bound", 5, []DeviceOption{WithObjectName(strings.Repeat("n", MaxNameLen))}, ErrOutOfRange},
		{"description at bound", 5, []DeviceOption{WithDescription(strings.Repeat("d", MaxDescriptionLen))}, ErrOutOfRange},
		{"invalid utf-8 name", 5, []DeviceOption{WithObjectName("\xff")}, ErrCharacterSet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := table.AddDevice(tt.instance, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 1, table.Len())
		})
	}
}

func TestGetAndSelect(t *testing.T) {
	table := newTestTable(t)

	rec, err := table.Get(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(2002), rec.Instance)

	_, err = table.Get(3)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = table.Get(-1)
	assert.ErrorIs(t, err, ErrNotFound)

	dev, err := table.Select(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2001), dev.Instance())

	_, err = table.Select(Handle(table.Cap()))
	assert.ErrorIs(t, err, ErrNotFound)

	gw, err := table.Gateway()
	require.NoError(t, err)
	assert.Equal(t, uint32(1000), gw.Instance())
}

func TestGetReturnsCopy(t *testing.T) {
	table := newTestTable(t)

	rec, err := table.Get(1)
	require.NoError(t, err)
	rec.Address[0] = 0xEE

	again, err := table.Get(1)
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, again.Address)
}

func TestInstanceToHandle(t *testing.T) {
	table := newTestTable(t)

	assert.Equal(t, Handle(2), table.InstanceToHandle(2002))
	assert.Equal(t, Handle(1), table.InstanceToHandle(2001))
	// unknown instances resolve to the gateway
	assert.Equal(t, GatewayHandle, table.InstanceToHandle(77))

	dev, ok := table.SelectInstance(2002)
	assert.True(t, ok)
	assert.Equal(t, Handle(2), dev.Handle())

	dev, ok = table.SelectInstance(77)
	assert.False(t, ok)
	assert.True(t, dev.IsGateway())

	_, ok = NewTable().SelectInstance(1)
	assert.False(t, ok)
}

func TestSetInstanceNumber(t *testing.T) {
	table := newTestTable(t)
	dev, err := table.Select(1)
	require.NoError(t, err)

	// above the maximum instance
	err = dev.SetInstanceNumber(5_000_000)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, uint32(0), dev.Revision())
	assert.Equal(t, uint32(2001), dev.Instance())

	err = dev.SetInstanceNumber(2002)
	assert.ErrorIs(t, err, ErrDuplicateInstance)
	assert.Equal(t, uint32(0), dev.Revision())

	require.NoError(t, dev.SetInstanceNumber(bacnet.MaxInstance))
	assert.Equal(t, uint32(1), dev.Revision())
	assert.Equal(t, uint32(bacnet.MaxInstance), dev.Instance())

	// other devices keep their revision
	other, err := table.Select(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), other.Revision())
}

func TestSetObjectName(t *testing.T) {
	table := newTestTable(t)
	dev, err := table.Select(1)
	require.NoError(t, err)

	// boundary length is rejected
	err = dev.SetObjectName(bacnet.NewCharacterString(strings.Repeat("x", MaxNameLen)))
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, uint32(0), dev.Revision())

	err = dev.SetObjectName(bacnet.CharacterString{Encoding: bacnet.CharacterISO8859, Value: []byte("abc")})
	assert.ErrorIs(t, err, ErrCharacterSet)
	assert.Equal(t, uint32(0), dev.Revision())

	require.NoError(t, dev.SetObjectName(bacnet.NewCharacterString(strings.Repeat("x", MaxNameLen-1))))
	assert.Equal(t, uint32(1), dev.Revision())
	assert.Len(t, dev.Record().Name, MaxNameLen-1)
}

func TestSetDescriptionKeepsRevision(t *testing.T) {
	table := newTestTable(t)
	dev, err := table.Select(2)
	require.NoError(t, err)

	require.NoError(t, dev.SetDescription("Chiller plant"))
	assert.Equal(t, "Chiller plant", dev.Record().Description)
	assert.Equal(t, uint32(0), dev.Revision())

	err = dev.SetDescription(strings.Repeat("d", MaxDescriptionLen))
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, "Chiller plant", dev.Record().Description)
	assert.Equal(t, uint32(0), dev.Revision())
}

func TestBumpRevision(t *testing.T) {
	table := newTestTable(t)
	dev, err := table.Gateway()
	require.NoError(t, err)

	require.NoError(t, dev.BumpRevision())
	require.NoError(t, dev.BumpRevision())
	assert.Equal(t, uint32(2), dev.Revision())
	assert.Equal(t, int64(2), table.Metrics().RevisionChanges.Value())

	assert.ErrorIs(t, ActiveDevice{}.BumpRevision(), ErrNotFound)
}

func TestNetworkList(t *testing.T) {
	list, err := NewNetworkList(2001, 2002)
	require.NoError(t, err)
	virtual, ok := list.Virtual()
	assert.True(t, ok)
	assert.Equal(t, uint16(2001), virtual)

	_, err = NewNetworkList(0)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = NewNetworkList(65535)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = NewNetworkList(-1)
	assert.ErrorIs(t, err, ErrOutOfRange)

	many := make([]int, MaxNetworks+1)
	for i := range many {
		many[i] = i + 1
	}
	_, err = NewNetworkList(many...)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, ok = NetworkList(nil).Virtual()
	assert.False(t, ok)
}

func TestIsReachable(t *testing.T) {
	list, err := NewNetworkList(2001, 2002)
	require.NoError(t, err)

	assert.True(t, IsReachable(bacnet.BroadcastNetwork, list))
	assert.True(t, IsReachable(0, list))
	assert.True(t, IsReachable(2001, list))
	// only the first network is routed
	assert.False(t, IsReachable(2002, list))
	assert.False(t, IsReachable(5, list))

	assert.True(t, IsReachable(0, nil))
	assert.False(t, IsReachable(2001, nil))
}

func TestMatchAddress(t *testing.T) {
	tests := []struct {
		name   string
		record []byte
		dest   []byte
		want   bool
	}{
		{"empty destination", []byte{1, 2}, nil, true},
		{"empty destination and record", nil, nil, true},
		{"equal", []byte{1, 2}, []byte{1, 2}, true},
		{"different", []byte{1, 2}, []byte{1, 3}, false},
		{"record shorter", []byte{1}, []byte{1, 2}, false},
		{"destination prefix", []byte{1, 2, 3}, []byte{1, 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchAddress(tt.record, tt.dest))
		})
	}
}
