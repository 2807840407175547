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
	"log/slog"
	"net"
	"time"

	"github.com/edgeo-scada/bacnet-gateway/bacnet"
	"github.com/edgeo-scada/bacnet-gateway/bacnet/gateway"
)

// serverOptions holds configuration for the gateway server
type serverOptions struct {
	address       string
	broadcastAddr net.IP
	port          int
	networks      gateway.NetworkList
	password      string
	announce      bool
	pollInterval  time.Duration
	onReinit      func(state uint32) error
	logger        *slog.Logger
}

func defaultOptions() *serverOptions {
	return &serverOptions{
		address:       ":47808",
		broadcastAddr: net.IPv4bcast,
		port:          bacnet.DefaultPort,
		pollInterval:  100 * time.Millisecond,
		logger:        slog.Default(),
	}
}

// Option is a functional option for configuring the server
type Option func(*serverOptions)

// WithAddress sets the local UDP address the server listens on
func WithAddress(addr string) Option {
	return func(o *serverOptions) {
		o.address = addr
	}
}

// WithBroadcastAddress sets the IP used for I-Am-Router-To-Network announcements
func WithBroadcastAddress(ip net.IP) Option {
	return func(o *serverOptions) {
		if ip != nil {
			o.broadcastAddr = ip
		}
	}
}

// WithPort sets the UDP port announcements are sent to
func WithPort(port int) Option {
	return func(o *serverOptions) {
		if port > 0 && port <= 65535 {
			o.port = port
		}
	}
}

// WithNetworks sets the networks reachable through the gateway. The first
// entry is the virtual network the routed devices live on.
func WithNetworks(networks gateway.NetworkList) Option {
	return func(o *serverOptions) {
		o.networks = append(gateway.NetworkList(nil), networks...)
	}
}

// WithPassword sets the password required by ReinitializeDevice and
// DeviceCommunicationControl. Empty disables the check.
func WithPassword(password string) Option {
	return func(o *serverOptions) {
		o.password = password
	}
}

// WithAnnounce makes Serve broadcast I-Am-Router-To-Network on start
func WithAnnounce(announce bool) Option {
	return func(o *serverOptions) {
		o.announce = announce
	}
}

// WithReinitializeHandler sets the function run after an accepted
// ReinitializeDevice request
func WithReinitializeHandler(fn func(state uint32) error) Option {
	return func(o *serverOptions) {
		o.onReinit = fn
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *serverOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
