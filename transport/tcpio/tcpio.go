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

// Package tcpio is the plain-TCP transport.Transport implementation
// (spec.md §4.4), the bottom of the transport stack tlsio and saslio wrap.
package tcpio

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/packetd/amqp10/common"
	"github.com/packetd/amqp10/transport"
)

// pollTimeout bounds how long one DoWork read attempt may block. A short
// deadline turns net.Conn's blocking Read into the non-blocking poll
// dowork's cooperative loop requires: DoWork must return promptly whether
// or not bytes were available.
const pollTimeout = 10 * time.Millisecond

// Config is the confengine-unmarshallable dial target for a plain-TCP
// transport (spec.md §6's connection configuration surface), tagged the
// same way as connection.Options and sasl/plain.Config.
type Config struct {
	Hostname string `config:"hostname"`
	Port     int    `config:"port"`
}

// Addr formats the Config as a host:port string suitable for New.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Hostname, c.Port) }

// Conn is a transport.Transport over a plain net.Conn.
type Conn struct {
	addr string
	dial func(ctx context.Context, network, addr string) (net.Conn, error)

	conn  net.Conn
	state transport.State

	onData  func([]byte)
	onState func(old, new transport.State)

	readBuf [2 * common.ReadWriteBlockSize]byte
}

// New builds a tcpio transport that will dial addr (host:port) when
// Open is called.
func New(addr string) *Conn {
	d := &net.Dialer{}
	return &Conn{addr: addr, dial: d.DialContext, state: transport.NotOpen}
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
	conn, err := c.dial(ctx, "tcp", c.addr)
	if err != nil {
		c.setState(transport.Error)
		return errors.Wrapf(err, "tcpio: dial %s", c.addr)
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
		return 0, errors.New("tcpio: write before open")
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
	return errors.Wrap(err, "tcpio: read")
}

func (c *Conn) State() transport.State { return c.state }

func (c *Conn) SetOnData(f func([]byte))                     { c.onData = f }
func (c *Conn) SetOnStateChanged(f func(old, new transport.State)) { c.onState = f }
