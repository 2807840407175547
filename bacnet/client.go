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

package bacnet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgeo-scada/bacnet-gateway/bacnet/internal/transport"
)

// ConnectionState represents the client connection state
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Target addresses a device, either directly on the local BACnet/IP network
// or behind a router
type Target struct {
	Addr *net.UDPAddr // device, or the router in front of it
	Dest *Address     // remote network and MAC; nil for a local device
}

func (t Target) String() string {
	if t.Dest == nil {
		return t.Addr.String()
	}
	return fmt.Sprintf("%s via %s", t.Dest, t.Addr)
}

// RouterInfo describes one I-Am-Router-To-Network answer
type RouterInfo struct {
	Addr     *net.UDPAddr
	Networks []uint16
}

// Client is a BACnet/IP client able to address devices behind a router
type Client struct {
	opts      *clientOptions
	transport *transport.UDPTransport

	state    atomic.Int32
	invokeID atomic.Uint32

	pendingMu sync.RWMutex
	pending   map[uint8]chan *APDU

	routersMu sync.Mutex
	routers   chan RouterInfo

	metrics *Metrics
	logger  *slog.Logger

	receiverCancel context.CancelFunc
	receiverDone   chan struct{}
}

// NewClient creates a new BACnet client
func NewClient(opts ...Option) *Client {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	c := &Client{
		opts:    options,
		pending: make(map[uint8]chan *APDU),
		metrics: NewMetrics(),
		logger:  options.logger,
	}

	c.transport = transport.NewUDPTransport(options.localAddress)
	c.transport.SetReadTimeout(options.timeout)
	c.transport.SetWriteTimeout(options.timeout)
	c.transport.SetBroadcastAddr(options.broadcastAddr)

	return c
}

// Connect opens the client socket and starts the receiver
func (c *Client) Connect(ctx context.Context) error {
	if !c.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return ErrAlreadyConnected
	}

	if err := c.transport.Open(ctx); err != nil {
		c.state.Store(int32(StateDisconnected))
		return fmt.Errorf("open transport: %w", err)
	}

	var receiverCtx context.Context
	receiverCtx, c.receiverCancel = context.WithCancel(context.Background())
	c.receiverDone = make(chan struct{})
	go c.receiver(receiverCtx)

	c.state.Store(int32(StateConnected))
	c.logger.Debug("client connected", slog.String("local_addr", c.transport.LocalAddr().String()))
	return nil
}

// Close closes the client
func (c *Client) Close() error {
	if c.state.Load() == int32(StateDisconnected) {
		return nil
	}
	c.state.Store(int32(StateDisconnected))

	if c.receiverCancel != nil {
		c.receiverCancel()
		<-c.receiverDone
	}

	c.pendingMu.Lock()
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	if err := c.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// State returns the current connection state
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Metrics returns the client metrics
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// LocalAddr returns the bound client address
func (c *Client) LocalAddr() *net.UDPAddr {
	return c.transport.LocalAddr()
}

func (c *Client) nextInvokeID() uint8 {
	return uint8(c.invokeID.Add(1) & 0xFF)
}

func (c *Client) receiver(ctx context.Context) {
	defer close(c.receiverDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, addr, err := c.transport.ReceiveWithTimeout(100 * time.Millisecond)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if c.transport.IsClosed() || errors.Is(err, transport.ErrNotOpen) {
				return
			}
			c.logger.Debug("receive error", slog.String("error", err.Error()))
			continue
		}

		c.metrics.BytesReceived.Add(int64(len(data)))
		c.metrics.RecordActivity()
		c.handlePacket(data, addr)
	}
}

func (c *Client) handlePacket(data []byte, addr *net.UDPAddr) {
	_, npduData, err := DecodeBVLL(data)
	if err != nil || npduData == nil {
		return
	}

	npdu, _, err := DecodeNPDU(npduData)
	if err != nil {
		c.logger.Debug("invalid NPDU", slog.String("error", err.Error()))
		return
	}

	if npdu.IsNetworkMessage() {
		if npdu.MessageType == NetworkMessageIAmRouterToNetwork {
			c.handleIAmRouter(npdu, addr)
		}
		return
	}

	apdu, err := DecodeAPDU(npdu.Data)
	if err != nil {
		c.logger.Debug("invalid APDU", slog.String("error", err.Error()))
		return
	}

	switch apdu.Type {
	case PDUTypeSimpleAck, PDUTypeComplexAck:
	case PDUTypeError:
		c.metrics.ErrorsReceived.Inc()
	case PDUTypeReject:
		c.metrics.RejectsReceived.Inc()
	case PDUTypeAbort:
		c.metrics.AbortsReceived.Inc()
	default:
		return
	}
	c.metrics.ResponsesReceived.Inc()

	c.pendingMu.RLock()
	ch, ok := c.pending[apdu.InvokeID]
	c.pendingMu.RUnlock()

	if ok {
		select {
		case ch <- apdu:
		default:
		}
	}
}

func (c *Client) handleIAmRouter(npdu *NPDU, addr *net.UDPAddr) {
	networks, err := DecodeNetworkNumbers(npdu.Data)
	if err != nil {
		return
	}

	c.routersMu.Lock()
	defer c.routersMu.Unlock()
	if c.routers == nil {
		return
	}
	select {
	case c.routers <- RouterInfo{Addr: addr, Networks: networks}:
		c.metrics.RoutersDiscovered.Inc()
	default:
	}
}

// sendRequest sends a confirmed request and waits for the response,
// retransmitting up to the configured retry count
func (c *Client) sendRequest(ctx context.Context, target Target, service ConfirmedServiceChoice, data []byte) (*APDU, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	invokeID := c.nextInvokeID()

	respCh := make(chan *APDU, 1)
	c.pendingMu.Lock()
	c.pending[invokeID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, invokeID)
		c.pendingMu.Unlock()
	}()

	npdu := &NPDU{Control: NPDUControlExpectingReply}
	if target.Dest != nil {
		npdu.Control |= NPDUControlDestSpecifier
		npdu.DestNet = target.Dest.Net
		npdu.DestAddr = target.Dest.Addr
		npdu.DestHopCount = 0xFF
	}
	npdu.Data = EncodeConfirmedRequest(invokeID, service, data, 0, c.opts.maxAPDU)
	packet := EncodeBVLL(BVLCOriginalUnicastNPDU, npdu.Encode())

	start := time.Now()
	c.metrics.ActiveRequests.Inc()
	defer c.metrics.ActiveRequests.Dec()

	for attempt := 0; attempt <= c.opts.retries; attempt++ {
		c.metrics.RequestsSent.Inc()
		if err := c.transport.Send(ctx, target.Addr, packet); err != nil {
			c.metrics.RequestsFailed.Inc()
			return nil, fmt.Errorf("send request: %w", err)
		}
		c.metrics.BytesSent.Add(int64(len(packet)))

		timer := time.NewTimer(c.opts.timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.metrics.RequestsTimedOut.Inc()
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())

		case <-timer.C:
			c.logger.Debug("request timeout",
				slog.String("service", service.String()),
				slog.Int("attempt", attempt+1),
			)
			continue

		case resp, ok := <-respCh:
			timer.Stop()
			c.metrics.RequestLatency.Record(time.Since(start))
			if !ok {
				return nil, ErrConnectionClosed
			}
			return c.decodeResponse(resp)
		}
	}

	c.metrics.RequestsTimedOut.Inc()
	return nil, ErrTimeout
}

func (c *Client) decodeResponse(resp *APDU) (*APDU, error) {
	switch resp.Type {
	case PDUTypeSimpleAck, PDUTypeComplexAck:
		c.metrics.RequestsSucceeded.Inc()
		return resp, nil

	case PDUTypeError:
		c.metrics.RequestsFailed.Inc()
		bacnetErr, err := DecodeErrorAPDU(resp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return nil, bacnetErr

	case PDUTypeReject:
		c.metrics.RequestsFailed.Inc()
		return nil, &RejectError{InvokeID: resp.InvokeID, Reason: RejectReason(resp.Service)}

	case PDUTypeAbort:
		c.metrics.RequestsFailed.Inc()
		return nil, &AbortError{InvokeID: resp.InvokeID, Reason: AbortReason(resp.Service)}

	default:
		return nil, fmt.Errorf("%w: unexpected PDU type %02x", ErrInvalidResponse, resp.Type)
	}
}

// ReadProperty reads a property and returns its decoded application values
func (c *Client) ReadProperty(ctx context.Context, target Target, objectID ObjectIdentifier, propertyID PropertyIdentifier, opts ...ReadOption) ([]ApplicationValue, error) {
	options := &ReadOptions{}
	for _, opt := range opts {
		opt(options)
	}

	req := &ReadPropertyRequest{
		ObjectID:   objectID,
		PropertyID: propertyID,
		ArrayIndex: options.ArrayIndex,
	}

	resp, err := c.sendRequest(ctx, target, ServiceReadProperty, req.Encode())
	if err != nil {
		return nil, err
	}
	if resp.Type != PDUTypeComplexAck {
		return nil, fmt.Errorf("%w: expected complex ack", ErrInvalidResponse)
	}

	_, value, err := DecodeReadPropertyAck(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return DecodeApplicationValues(value)
}

// WriteProperty writes an application value to a property
func (c *Client) WriteProperty(ctx context.Context, target Target, objectID ObjectIdentifier, propertyID PropertyIdentifier, value ApplicationValue, opts ...WriteOption) error {
	options := &WriteOptions{}
	for _, opt := range opts {
		opt(options)
	}

	req := &WritePropertyRequest{
		ObjectID:   objectID,
		PropertyID: propertyID,
		ArrayIndex: options.ArrayIndex,
		Value:      value.Encode(),
		Priority:   options.Priority,
	}

	_, err := c.sendRequest(ctx, target, ServiceWriteProperty, req.Encode())
	return err
}

// ReinitializeDevice asks the target device to reinitialize
func (c *Client) ReinitializeDevice(ctx context.Context, target Target, state uint32, password string) error {
	req := &ReinitializeDeviceRequest{State: state, Password: password}
	_, err := c.sendRequest(ctx, target, ServiceReinitializeDevice, req.Encode())
	return err
}

// DeviceCommunicationControl enables or disables communication on the
// target device. A zero duration means indefinitely.
func (c *Client) DeviceCommunicationControl(ctx context.Context, target Target, enable uint32, duration time.Duration, password string) error {
	req := &DeviceCommunicationControlRequest{Enable: enable, Password: password}
	if duration > 0 {
		minutes := uint32(duration.Minutes())
		req.Duration = &minutes
	}
	_, err := c.sendRequest(ctx, target, ServiceDeviceCommunicationControl, req.Encode())
	return err
}

// WhoIsRouterToNetwork queries for routers and collects the answers until
// the discover timeout or ctx expires. A nil addr broadcasts the query; a nil
// network asks for all networks.
func (c *Client) WhoIsRouterToNetwork(ctx context.Context, addr *net.UDPAddr, network *uint16) ([]RouterInfo, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	ch := make(chan RouterInfo, 16)
	c.routersMu.Lock()
	c.routers = ch
	c.routersMu.Unlock()
	defer func() {
		c.routersMu.Lock()
		c.routers = nil
		c.routersMu.Unlock()
	}()

	npdu := EncodeWhoIsRouterToNetwork(network)
	c.metrics.RouterQueriesSent.Inc()

	var err error
	if addr == nil {
		err = c.transport.Broadcast(ctx, c.opts.port, EncodeBVLL(BVLCOriginalBroadcastNPDU, npdu))
	} else {
		err = c.transport.Send(ctx, addr, EncodeBVLL(BVLCOriginalUnicastNPDU, npdu))
	}
	if err != nil {
		return nil, fmt.Errorf("send who-is-router: %w", err)
	}

	timer := time.NewTimer(c.opts.discoverTimeout)
	defer timer.Stop()

	var routers []RouterInfo
	for {
		select {
		case info := <-ch:
			routers = append(routers, info)
		case <-timer.C:
			return routers, nil
		case <-ctx.Done():
			return routers, nil
		}
	}
}

// IAmRouterToNetwork broadcasts an I-Am-Router-To-Network announcement for
// networks
func (c *Client) IAmRouterToNetwork(ctx context.Context, networks []uint16) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	packet := EncodeBVLL(BVLCOriginalBroadcastNPDU, EncodeIAmRouterToNetwork(networks))
	if err := c.transport.Broadcast(ctx, c.opts.port, packet); err != nil {
		return fmt.Errorf("send i-am-router: %w", err)
	}
	c.metrics.BytesSent.Add(int64(len(packet)))
	return nil
}
