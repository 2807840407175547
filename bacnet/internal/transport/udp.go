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

// Package transport provides the BACnet/IP datagram transport shared by the
// gateway server and the CLI client.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// MaxPacketSize bounds a single BACnet/IP datagram (Ethernet MTU)
const MaxPacketSize = 1500

// ErrNotOpen is returned when the transport is used before Open or after Close
var ErrNotOpen = errors.New("transport: not open")

// UDPTransport implements BACnet/IP transport over UDP
type UDPTransport struct {
	localAddr     string
	broadcastAddr net.IP
	conn          *net.UDPConn
	mu            sync.RWMutex
	readTimeout   time.Duration
	writeTimeout  time.Duration
	closed        bool
}

// NewUDPTransport creates a new UDP transport bound to localAddr
// ("" or ":0" picks an ephemeral port)
func NewUDPTransport(localAddr string) *UDPTransport {
	return &UDPTransport{
		localAddr:     localAddr,
		broadcastAddr: net.IPv4bcast,
		readTimeout:   3 * time.Second,
		writeTimeout:  3 * time.Second,
	}
}

// SetReadTimeout sets the read timeout used when the context has no deadline
func (t *UDPTransport) SetReadTimeout(d time.Duration) {
	t.mu.Lock()
	t.readTimeout = d
	t.mu.Unlock()
}

// SetWriteTimeout sets the write timeout used when the context has no deadline
func (t *UDPTransport) SetWriteTimeout(d time.Duration) {
	t.mu.Lock()
	t.writeTimeout = d
	t.mu.Unlock()
}

// SetBroadcastAddr sets the directed broadcast address, e.g. 192.168.1.255
func (t *UDPTransport) SetBroadcastAddr(ip net.IP) {
	t.mu.Lock()
	t.broadcastAddr = ip
	t.mu.Unlock()
}

// Open opens the UDP socket
func (t *UDPTransport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil && !t.closed {
		return nil
	}

	var addr *net.UDPAddr
	if t.localAddr != "" {
		var err error
		addr, err = net.ResolveUDPAddr("udp4", t.localAddr)
		if err != nil {
			return fmt.Errorf("resolve local address: %w", err)
		}
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return fmt.Errorf("listen UDP: %w", err)
	}

	t.conn = conn
	t.closed = false
	return nil
}

// Close closes the UDP socket
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil || t.closed {
		return nil
	}

	t.closed = true
	return t.conn.Close()
}

// LocalAddr returns the bound address, or nil when not open
func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.conn == nil {
		return nil
	}
	addr, _ := t.conn.LocalAddr().(*net.UDPAddr)
	return addr
}

func (t *UDPTransport) active() (*net.UDPConn, error) {
	if t.conn == nil || t.closed {
		return nil, ErrNotOpen
	}
	return t.conn, nil
}

// Send sends a datagram to addr
func (t *UDPTransport) Send(ctx context.Context, addr *net.UDPAddr, data []byte) error {
	t.mu.RLock()
	conn, err := t.active()
	writeTimeout := t.writeTimeout
	t.mu.RUnlock()

	if err != nil {
		return err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}

	n, err := conn.WriteToUDP(data, addr)
	if err != nil {
		return fmt.Errorf("write UDP: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("partial write: %d of %d bytes", n, len(data))
	}

	return nil
}

// Broadcast sends a datagram to the broadcast address on port
func (t *UDPTransport) Broadcast(ctx context.Context, port int, data []byte) error {
	t.mu.RLock()
	ip := t.broadcastAddr
	t.mu.RUnlock()

	return t.Send(ctx, &net.UDPAddr{IP: ip, Port: port}, data)
}

// Receive reads one datagram
func (t *UDPTransport) Receive(ctx context.Context) ([]byte, *net.UDPAddr, error) {
	t.mu.RLock()
	conn, err := t.active()
	readTimeout := t.readTimeout
	t.mu.RUnlock()

	if err != nil {
		return nil, nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(readTimeout)
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, nil, fmt.Errorf("set read deadline: %w", err)
	}

	buf := make([]byte, MaxPacketSize)
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}

	return buf[:n], addr, nil
}

// ReceiveWithTimeout reads one datagram, waiting at most timeout
func (t *UDPTransport) ReceiveWithTimeout(timeout time.Duration) ([]byte, *net.UDPAddr, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return t.Receive(ctx)
}

// IsClosed returns true if the transport was closed
func (t *UDPTransport) IsClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// IsTimeout reports whether err is a read or write deadline expiry
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
