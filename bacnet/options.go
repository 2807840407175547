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
	"log/slog"
	"net"
	"time"
)

// clientOptions holds configuration for the BACnet client
type clientOptions struct {
	localAddress  string
	broadcastAddr net.IP
	port          int

	timeout time.Duration
	retries int

	maxAPDU         uint8 // encoded max-APDU-length-accepted
	discoverTimeout time.Duration

	logger *slog.Logger
}

// defaultOptions returns the default client options
func defaultOptions() *clientOptions {
	return &clientOptions{
		broadcastAddr:   net.IPv4bcast,
		port:            DefaultPort,
		timeout:         3 * time.Second,
		retries:         0,
		maxAPDU:         5, // 1476 octets
		discoverTimeout: 2 * time.Second,
		logger:          slog.Default(),
	}
}

// Option is a functional option for configuring the client
type Option func(*clientOptions)

// WithLocalAddress sets the local address to bind to
func WithLocalAddress(addr string) Option {
	return func(o *clientOptions) {
		o.localAddress = addr
	}
}

// WithBroadcastAddress sets the directed broadcast address used for
// network layer queries
func WithBroadcastAddress(ip net.IP) Option {
	return func(o *clientOptions) {
		o.broadcastAddr = ip
	}
}

// WithPort sets the destination UDP port for broadcasts
func WithPort(port int) Option {
	return func(o *clientOptions) {
		o.port = port
	}
}

// WithTimeout sets the per-attempt request timeout
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// WithRetries sets the number of retransmissions for unanswered requests
func WithRetries(n int) Option {
	return func(o *clientOptions) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithDiscoverTimeout sets how long router queries collect replies
func WithDiscoverTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.discoverTimeout = d
	}
}

// WithLogger sets the logger for the client
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// ReadOptions holds configuration for read operations
type ReadOptions struct {
	ArrayIndex *uint32
}

// ReadOption is a functional option for read operations
type ReadOption func(*ReadOptions)

// WithArrayIndex sets the array index for reading array properties
func WithArrayIndex(index uint32) ReadOption {
	return func(o *ReadOptions) {
		o.ArrayIndex = &index
	}
}

// WriteOptions holds configuration for write operations
type WriteOptions struct {
	ArrayIndex *uint32
	Priority   *uint8
}

// WriteOption is a functional option for write operations
type WriteOption func(*WriteOptions)

// WithWriteArrayIndex sets the array index for writing array properties
func WithWriteArrayIndex(index uint32) WriteOption {
	return func(o *WriteOptions) {
		o.ArrayIndex = &index
	}
}

// WithPriority sets the priority for writing (1-16, where 1 is highest)
func WithPriority(priority uint8) WriteOption {
	return func(o *WriteOptions) {
		if priority >= 1 && priority <= 16 {
			o.Priority = &priority
		}
	}
}
