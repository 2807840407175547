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

// Package server is the BACnet/IP front end of the routing gateway. Inbound
// NPDUs are resolved to the gateway device or the devices routed behind it
// and each match answers through the property dispatcher.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync/atomic"
	"time"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/device"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/gateway"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/internal/transport"
)

// Server errors
var (
	ErrNoGateway             = errors.New("server: device table has no gateway device")
	ErrNoNetworks            = errors.New("server: no networks to announce")
	ErrServerClosed          = errors.New("server: closed")
	ErrCommunicationDisabled = errors.New("server: communication disabled")
)

// DeviceCommunicationControl enable states
const (
	CommunicationEnable            uint32 = 0
	CommunicationDisable           uint32 = 1
	CommunicationDisableInitiation uint32 = 2
)

// maxReinitializeState is the highest defined ReinitializeDevice state
// (activate-changes)
const maxReinitializeState = 7

// Server answers BACnet/IP requests for a gateway device table
type Server struct {
	opts       *serverOptions
	table      *gateway.Table
	resolver   *gateway.Resolver
	dispatcher *gateway.Dispatcher
	transport  *transport.UDPTransport
	metrics    *Metrics
	logger     *slog.Logger

	virtual uint16
	routed  bool

	commState atomic.Uint32
	commUntil atomic.Int64 // unix nanoseconds, 0 means no expiry
}

// New creates a server for table. Properties the routing core does not
// serve itself are read from and written to base.
func New(table *gateway.Table, base device.Handler, opts ...Option) (*Server, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	if table.Len() == 0 {
		return nil, ErrNoGateway
	}

	s := &Server{
		opts:       options,
		table:      table,
		resolver:   gateway.NewResolver(table, options.networks),
		dispatcher: gateway.NewDispatcher(base, options.logger),
		transport:  transport.NewUDPTransport(options.address),
		metrics:    NewMetrics(),
		logger:     options.logger,
	}
	s.virtual, s.routed = options.networks.Virtual()
	s.transport.SetBroadcastAddr(options.broadcastAddr)

	return s, nil
}

// Table returns the device table
func (s *Server) Table() *gateway.Table {
	return s.table
}

// Resolver returns the routing resolver
func (s *Server) Resolver() *gateway.Resolver {
	return s.resolver
}

// Metrics returns the server metrics
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// LocalAddr returns the bound server address, nil before Start
func (s *Server) LocalAddr() *net.UDPAddr {
	return s.transport.LocalAddr()
}

// Start opens the server socket
func (s *Server) Start(ctx context.Context) error {
	if err := s.transport.Open(ctx); err != nil {
		return fmt.Errorf("open transport: %w", err)
	}
	s.logger.Info("gateway listening",
		slog.String("addr", s.transport.LocalAddr().String()),
		slog.Int("devices", s.table.Len()),
		slog.Int("virtual_network", int(s.virtual)),
	)
	return nil
}

// Close closes the server socket
func (s *Server) Close() error {
	return s.transport.Close()
}

// ListenAndServe starts the server and serves until ctx is done
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.Close()
	return s.Serve(ctx)
}

// Serve answers inbound packets until ctx is done, in which case it returns
// nil, or the server is closed
func (s *Server) Serve(ctx context.Context) error {
	if s.opts.announce {
		if err := s.Announce(ctx, nil); err != nil {
			s.logger.Warn("announce failed", slog.String("error", err.Error()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		data, addr, err := s.transport.ReceiveWithTimeout(s.opts.pollInterval)
		if err != nil {
			if transport.IsTimeout(err) {
				continue
			}
			if s.transport.IsClosed() || errors.Is(err, transport.ErrNotOpen) {
				return ErrServerClosed
			}
			s.logger.Debug("receive error", slog.String("error", err.Error()))
			continue
		}

		for _, reply := range s.HandlePacket(data) {
			if err := s.transport.Send(ctx, addr, reply); err != nil {
				s.metrics.SendFailures.Inc()
				s.logger.Debug("send failed",
					slog.String("to", addr.String()),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.metrics.BytesSent.Add(int64(len(reply)))
		}
	}
}

// Announce broadcasts I-Am-Router-To-Network for networks, or for the
// configured network list when networks is empty
func (s *Server) Announce(ctx context.Context, networks gateway.NetworkList) error {
	if s.communication() != CommunicationEnable {
		return ErrCommunicationDisabled
	}
	if len(networks) == 0 {
		networks = s.resolver.Networks()
	}
	if len(networks) == 0 {
		return ErrNoNetworks
	}

	packet := bacnet.EncodeBVLL(bacnet.BVLCOriginalBroadcastNPDU, bacnet.EncodeIAmRouterToNetwork(networks))
	if err := s.transport.Broadcast(ctx, s.opts.port, packet); err != nil {
		return fmt.Errorf("announce: %w", err)
	}
	s.metrics.Announcements.Inc()
	s.metrics.BytesSent.Add(int64(len(packet)))
	s.logger.Info("announced networks", slog.Any("networks", []uint16(networks)))
	return nil
}

// HandlePacket processes one BVLL frame and returns the frames to send back
// to its sender, one per answering device
func (s *Server) HandlePacket(data []byte) [][]byte {
	start := time.Now()
	s.metrics.PacketsReceived.Inc()
	s.metrics.BytesRecv.Add(int64(len(data)))

	_, npduData, err := bacnet.DecodeBVLL(data)
	if err != nil || npduData == nil {
		s.drop("not an NPDU", err)
		return nil
	}

	npdu, _, err := bacnet.DecodeNPDU(npduData)
	if err != nil {
		s.drop("invalid NPDU", err)
		return nil
	}

	if npdu.IsNetworkMessage() {
		return s.handleNetworkMessage(npdu)
	}

	dest := npdu.Destination()
	if !s.resolver.IsReachable(dest.Net) {
		s.metrics.Unroutable.Inc()
		s.logger.Debug("destination network not reachable", slog.Int("dnet", int(dest.Net)))
		return nil
	}

	apdu, err := bacnet.DecodeAPDU(npdu.Data)
	if err != nil {
		s.drop("invalid APDU", err)
		return nil
	}
	if apdu.Type != bacnet.PDUTypeConfirmedRequest {
		s.drop("not a confirmed request", nil)
		return nil
	}

	s.metrics.Requests.Inc()
	defer func() { s.metrics.HandleTime.Record(time.Since(start)) }()

	src, fromRouted := npdu.Source()
	var replies [][]byte
	for dev := range s.resolver.Matches(dest) {
		reply := s.handleRequest(dev, apdu)
		if reply == nil {
			continue
		}
		replies = append(replies, s.frame(dev, src, fromRouted, reply))
	}
	return replies
}

func (s *Server) drop(reason string, err error) {
	s.metrics.PacketsDropped.Inc()
	if err != nil {
		s.logger.Debug("packet dropped", slog.String("reason", reason), slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("packet dropped", slog.String("reason", reason))
}

// frame wraps an APDU reply from dev. Routed devices answer from the
// virtual network; routed requesters are addressed through their router.
func (s *Server) frame(dev gateway.ActiveDevice, src bacnet.Address, fromRouted bool, apdu []byte) []byte {
	npdu := &bacnet.NPDU{Data: apdu}
	if !dev.IsGateway() && s.routed {
		npdu.Control |= bacnet.NPDUControlSourceSpecifier
		npdu.SrcNet = s.virtual
		npdu.SrcAddr = dev.Address()
	}
	if fromRouted {
		npdu.Control |= bacnet.NPDUControlDestSpecifier
		npdu.DestNet = src.Net
		npdu.DestAddr = src.Addr
		npdu.DestHopCount = 0xFF
	}
	return bacnet.EncodeBVLL(bacnet.BVLCOriginalUnicastNPDU, npdu.Encode())
}

func (s *Server) handleNetworkMessage(npdu *bacnet.NPDU) [][]byte {
	s.metrics.NetworkMessages.Inc()
	if npdu.MessageType != bacnet.NetworkMessageWhoIsRouterToNetwork {
		return nil
	}
	s.metrics.RouterQueries.Inc()

	networks := s.resolver.Networks()
	if len(npdu.Data) >= 2 {
		wanted := uint16(npdu.Data[0])<<8 | uint16(npdu.Data[1])
		if !slices.Contains(networks, wanted) {
			return nil
		}
	}
	if len(networks) == 0 {
		return nil
	}

	packet := bacnet.EncodeBVLL(bacnet.BVLCOriginalUnicastNPDU, bacnet.EncodeIAmRouterToNetwork(networks))
	return [][]byte{packet}
}

// handleRequest runs one confirmed request against dev and returns the
// reply APDU, nil when nothing is sent
func (s *Server) handleRequest(dev gateway.ActiveDevice, apdu *bacnet.APDU) []byte {
	service := bacnet.ConfirmedServiceChoice(apdu.Service)
	invokeID := apdu.InvokeID

	if apdu.Segmented {
		s.metrics.AbortsSent.Inc()
		return bacnet.EncodeAbort(invokeID, bacnet.AbortReasonSegmentationNotSupported)
	}

	if s.communication() == CommunicationDisable &&
		service != bacnet.ServiceDeviceCommunicationControl &&
		service != bacnet.ServiceReinitializeDevice {
		s.metrics.Suppressed.Inc()
		return nil
	}

	if err := dev.Approve(service); err != nil {
		s.metrics.RejectsSent.Inc()
		s.logger.Debug("service not approved",
			slog.String("service", service.String()),
			slog.String("device", dev.String()),
		)
		return gateway.RejectAPDU(service, dev.Handle(), invokeID)
	}

	var (
		ack []byte
		err error
	)
	switch service {
	case bacnet.ServiceReadProperty:
		ack, err = s.readProperty(dev, invokeID, apdu.Data)
	case bacnet.ServiceWriteProperty:
		ack, err = s.writeProperty(dev, invokeID, apdu.Data)
	case bacnet.ServiceReinitializeDevice:
		ack, err = s.reinitialize(invokeID, apdu.Data)
	case bacnet.ServiceDeviceCommunicationControl:
		ack, err = s.communicationControl(invokeID, apdu.Data)
	default:
		s.metrics.RejectsSent.Inc()
		return bacnet.EncodeReject(invokeID, bacnet.RejectReasonUnrecognizedService)
	}

	if err != nil {
		return s.encodeError(invokeID, service, err)
	}
	s.metrics.AcksSent.Inc()
	return ack
}

func (s *Server) readProperty(dev gateway.ActiveDevice, invokeID uint8, data []byte) ([]byte, error) {
	req, err := bacnet.DecodeReadPropertyRequest(data)
	if err != nil {
		return nil, malformed(err)
	}

	value, err := s.dispatcher.Handler(dev).ReadProperty(&device.ReadRequest{
		ObjectID:   req.ObjectID,
		Property:   req.PropertyID,
		ArrayIndex: req.ArrayIndex,
	})
	if err != nil {
		return nil, err
	}

	if req.ObjectID.Type == bacnet.ObjectTypeDevice && req.ObjectID.Instance == gateway.WildcardInstance {
		req.ObjectID = dev.ObjectID()
	}
	return bacnet.EncodeComplexAck(invokeID, bacnet.ServiceReadProperty, bacnet.EncodeReadPropertyAck(req, value)), nil
}

func (s *Server) writeProperty(dev gateway.ActiveDevice, invokeID uint8, data []byte) ([]byte, error) {
	req, err := bacnet.DecodeWritePropertyRequest(data)
	if err != nil {
		return nil, malformed(err)
	}

	write := &device.WriteRequest{
		ObjectID:   req.ObjectID,
		Property:   req.PropertyID,
		ArrayIndex: req.ArrayIndex,
		Value:      req.Value,
	}
	if req.Priority != nil {
		write.Priority = *req.Priority
	}
	if err := s.dispatcher.Handler(dev).WriteProperty(write); err != nil {
		return nil, err
	}
	return bacnet.EncodeSimpleAck(invokeID, bacnet.ServiceWriteProperty), nil
}

func (s *Server) checkPassword(password string) error {
	if s.opts.password != "" && password != s.opts.password {
		return bacnet.NewBACnetError(bacnet.ErrorClassSecurity, bacnet.ErrorCodePasswordFailure)
	}
	return nil
}

func (s *Server) reinitialize(invokeID uint8, data []byte) ([]byte, error) {
	req, err := bacnet.DecodeReinitializeDeviceRequest(data)
	if err != nil {
		return nil, malformed(err)
	}
	if req.State > maxReinitializeState {
		return nil, &bacnet.RejectError{InvokeID: invokeID, Reason: bacnet.RejectReasonUndefinedEnumeration}
	}
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}

	s.logger.Info("reinitialize requested", slog.Uint64("state", uint64(req.State)))
	if s.opts.onReinit != nil {
		if err := s.opts.onReinit(req.State); err != nil {
			s.logger.Warn("reinitialize failed", slog.String("error", err.Error()))
			return nil, bacnet.NewBACnetError(bacnet.ErrorClassServices, bacnet.ErrorCodeServiceRequestDenied)
		}
	}
	return bacnet.EncodeSimpleAck(invokeID, bacnet.ServiceReinitializeDevice), nil
}

func (s *Server) communicationControl(invokeID uint8, data []byte) ([]byte, error) {
	req, err := bacnet.DecodeDeviceCommunicationControlRequest(data)
	if err != nil {
		return nil, malformed(err)
	}
	if req.Enable > CommunicationDisableInitiation {
		return nil, &bacnet.RejectError{InvokeID: invokeID, Reason: bacnet.RejectReasonUndefinedEnumeration}
	}
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}

	var until int64
	if req.Duration != nil && *req.Duration > 0 && req.Enable != CommunicationEnable {
		until = time.Now().Add(time.Duration(*req.Duration) * time.Minute).UnixNano()
	}
	s.commUntil.Store(until)
	s.commState.Store(req.Enable)

	attrs := []any{slog.Uint64("enable", uint64(req.Enable))}
	if req.Duration != nil {
		attrs = append(attrs, slog.Uint64("minutes", uint64(*req.Duration)))
	}
	s.logger.Info("communication control", attrs...)

	return bacnet.EncodeSimpleAck(invokeID, bacnet.ServiceDeviceCommunicationControl), nil
}

// Communication returns the current DeviceCommunicationControl state
func (s *Server) Communication() uint32 {
	return s.communication()
}

func (s *Server) communication() uint32 {
	state := s.commState.Load()
	if state == CommunicationEnable {
		return state
	}
	if until := s.commUntil.Load(); until != 0 && time.Now().UnixNano() >= until {
		s.commState.Store(CommunicationEnable)
		s.commUntil.Store(0)
		s.logger.Info("communication control expired")
		return CommunicationEnable
	}
	return state
}

func (s *Server) encodeError(invokeID uint8, service bacnet.ConfirmedServiceChoice, err error) []byte {
	var (
		bacnetErr *bacnet.BACnetError
		rejectErr *bacnet.RejectError
	)
	switch {
	case errors.As(err, &bacnetErr):
		s.metrics.ErrorsSent.Inc()
		return bacnet.EncodeErrorAPDU(invokeID, service, bacnetErr.Class, bacnetErr.Code)
	case errors.As(err, &rejectErr):
		s.metrics.RejectsSent.Inc()
		return bacnet.EncodeReject(invokeID, rejectErr.Reason)
	default:
		s.metrics.ErrorsSent.Inc()
		s.logger.Warn("request failed",
			slog.String("service", service.String()),
			slog.String("error", err.Error()),
		)
		return bacnet.EncodeErrorAPDU(invokeID, service, bacnet.ErrorClassDevice, bacnet.ErrorCodeOther)
	}
}

// malformed maps a request decode error to a reject
func malformed(err error) error {
	reason := bacnet.RejectReasonOther
	switch {
	case errors.Is(err, bacnet.ErrTruncated):
		reason = bacnet.RejectReasonMissingRequiredParameter
	case errors.Is(err, bacnet.ErrInvalidTag):
		reason = bacnet.RejectReasonInvalidTag
	}
	return fmt.Errorf("decode request: %w", &bacnet.RejectError{Reason: reason})
}
