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

package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPTransportLoopback(t *testing.T) {
	a := NewUDPTransport("127.0.0.1:0")
	b := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, a.Open(context.Background()))
	require.NoError(t, b.Open(context.Background()))
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	payload := []byte{0x81, 0x0a, 0x00, 0x06, 0x01, 0x00}
	require.NoError(t, a.Send(ctx, b.LocalAddr(), payload))

	got, from, err := b.Receive(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, a.LocalAddr().Port, from.Port)
}

func TestUDPTransportReceiveTimeout(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0")
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	_, _, err := tr.ReceiveWithTimeout(20 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestUDPTransportNotOpen(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1:0")

	err := tr.Send(context.Background(), nil, []byte{1})
	assert.ErrorIs(t, err, ErrNotOpen)

	require.NoError(t, tr.Open(context.Background()))
	require.NoError(t, tr.Close())
	assert.True(t, tr.IsClosed())

	_, _, err = tr.Receive(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}
