// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tlsio is the TLS transport.Transport implementation used for
// amqps:// endpoints (spec.md §4.4): it performs the TLS handshake inside
// Open, then behaves exactly like tcpio.
package tlsio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/amqp10/common"
	"github.com/packetd/amqp10/transport"
)

const pollTimeout = 10 * time.Millisecond

// Config is the confengine-unmarshallable dial target for a TLS transport
// (spec.md §6's TLS I/O configuration surface: {hostname, port}).
type Config struct {
	Hostname string `config:"hostname"`
	Port     int    `config:"port"`
}

// Addr formats the Config as a host:port string suitable for New.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Hostname, c.Port) }

// Conn is a transport.Transport over a crypto/tls.Conn.
type Conn struct {
	addr   string
	config *tls.Config

	conn  net.Conn
	state transport.State

	onData  func([]byte)
	onState func(old, new transport.State)

	readBuf [2 * common.ReadWriteBlockSize]byte
}

// New builds a tlsio transport dialing addr (host:port) and performing a
// TLS handshake with config when Open is called. A nil config uses
// crypto/tls defaults plus the host from addr as ServerName.
func New(addr string, config *tls.Config) *Conn {
	return &Conn{addr: addr, config: config, state: transport.NotOpen}
}

func (c *Conn) setState(s transport.State) {
	if c.state == s {
		return
	}
	old := c.state
	c.state = s
	if c.onState != nil {
		c.onState(old, s)
	}
}

func (c *Conn) Open(ctx context.Context) error {
	c.setState(transport.Opening)

	cfg := c.config
	if cfg == nil {
		host, _, err := net.SplitHostPort(c.addr)
		if err != nil {
			host = c.addr
		}
		cfg = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}

	dialer := &tls.Dialer{Config: cfg}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.setState(transport.Error)
		return errors.Wrapf(err, "tlsio: dial %s", c.addr)
	}
	c.conn = conn
	c.setState(transport.Open)
	return nil
}

func (c *Conn) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.setState(transport.NotOpen)
	return err
}

func (c *Conn) Write(p []byte) (int, error) {
	if c.conn == nil {
		return 0, errors.New("tlsio: write before open")
	}
	return c.conn.Write(p)
}

func (c *Conn) DoWork() error {
	if c.conn == nil || c.state != transport.Open {
		return nil
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pollTimeout))
	n, err := c.conn.Read(c.readBuf[:])
	if n > 0 && c.onData != nil {
		c.onData(c.readBuf[:n])
	}
	if err == nil {
		return nil
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return nil
	}
	c.setState(transport.Error)
	return errors.Wrap(err, "tlsio: read")
}

func (c *Conn) State() transport.State { return c.state }

func (c *Conn) SetOnData(f func([]byte))                          { c.onData = f }
func (c *Conn) SetOnStateChanged(f func(old, new transport.State)) { c.onState = f }
