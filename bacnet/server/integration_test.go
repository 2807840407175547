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

package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/gateway"
)

func startServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	opts = append([]Option{WithAddress("127.0.0.1:0")}, opts...)
	s := newTestServer(t, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		s.Close()
	})
	return s
}

func connectClient(t *testing.T) *bacnet.Client {
	t.Helper()
	client := bacnet.NewClient(
		bacnet.WithLocalAddress("127.0.0.1:0"),
		bacnet.WithTimeout(time.Second),
		bacnet.WithRetries(0),
		bacnet.WithDiscoverTimeout(300*time.Millisecond),
		bacnet.WithLogger(discard),
	)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClientThroughGateway(t *testing.T) {
	s := startServer(t)
	client := connectClient(t)
	ctx := context.Background()
	wildcard := bacnet.NewObjectIdentifier(bacnet.ObjectTypeDevice, gateway.WildcardInstance)

	local := bacnet.Target{Addr: s.LocalAddr()}
	values, err := client.ReadProperty(ctx, local, wildcard, bacnet.PropertyObjectName)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, "Gateway", values[0].String())

	routed := bacnet.Target{Addr: s.LocalAddr(), Dest: &bacnet.Address{Net: virtualNet, Addr: []byte{9}}}
	values, err = client.ReadProperty(ctx, routed, wildcard, bacnet.PropertyObjectIdentifier)
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, uint32(2002), values[0].ObjectID.Instance)

	err = client.WriteProperty(ctx, routed, wildcard, bacnet.PropertyObjectName,
		bacnet.ApplicationValue{Tag: bacnet.TagCharacterString, CharacterString: bacnet.NewCharacterString("Pump")})
	require.NoError(t, err)

	values, err = client.ReadProperty(ctx, routed, wildcard, bacnet.PropertyObjectName)
	require.NoError(t, err)
	assert.Equal(t, "Pump", values[0].String())

	values, err = client.ReadProperty(ctx, routed, wildcard, bacnet.PropertyDatabaseRevision)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), values[0].Unsigned)

	err = client.ReinitializeDevice(ctx, routed, 1, "")
	assert.True(t, bacnet.IsUnrecognizedService(err))

	assert.GreaterOrEqual(t, client.Metrics().ResponsesReceived.Value(), int64(6))
}

func TestClientDiscoversRouter(t *testing.T) {
	s := startServer(t)
	client := connectClient(t)

	routers, err := client.WhoIsRouterToNetwork(context.Background(), s.LocalAddr(), nil)
	require.NoError(t, err)
	require.Len(t, routers, 1)
	assert.Equal(t, []uint16{virtualNet}, routers[0].Networks)
}

func TestAnnounce(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()

	s := startServer(t,
		WithBroadcastAddress(net.IPv4(127, 0, 0, 1)),
		WithPort(listener.LocalAddr().(*net.UDPAddr).Port),
	)
	require.NoError(t, s.Announce(context.Background(), gateway.NetworkList{virtualNet, 300}))

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1500)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	header, npduData, err := bacnet.DecodeBVLL(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, bacnet.BVLCOriginalBroadcastNPDU, header.Function)
	npdu, _, err := bacnet.DecodeNPDU(npduData)
	require.NoError(t, err)
	assert.Equal(t, bacnet.NetworkMessageIAmRouterToNetwork, npdu.MessageType)
	networks, err := bacnet.DecodeNetworkNumbers(npdu.Data)
	require.NoError(t, err)
	assert.Equal(t, []uint16{virtualNet, 300}, networks)
	assert.Equal(t, int64(1), s.Metrics().Announcements.Value())
}

func TestCollector(t *testing.T) {
	s := newTestServer(t)
	s.HandlePacket(request(nil, nil, 1, bacnet.ServiceReadProperty,
		readRequest(gateway.WildcardInstance, bacnet.PropertyObjectName)))

	registry := prometheus.NewRegistry()
	require.NoError(t, registry.Register(NewCollector(s)))

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetGauge() != nil:
				values[family.GetName()] = metric.GetGauge().GetValue()
			case metric.GetCounter() != nil:
				values[family.GetName()] = metric.GetCounter().GetValue()
			case metric.GetHistogram() != nil:
				values[family.GetName()] = float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}

	assert.Equal(t, float64(3), values["bacnet_gateway_devices"])
	assert.Equal(t, float64(1), values["bacnet_gateway_reads_total"])
	assert.Equal(t, float64(1), values["bacnet_server_requests_total"])
	assert.Equal(t, float64(1), values["bacnet_server_acks_sent_total"])
	assert.Equal(t, float64(1), values["bacnet_server_request_duration_seconds"])
}
