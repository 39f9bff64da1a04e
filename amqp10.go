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

// Package amqp10 is the client-facing façade over the layered protocol
// engine (connection, session, link, messaging): it re-exports the
// constructors application code needs to open a connection and start
// sending or receiving, the way the teacher's root `pipeline` package
// re-exports the constructors its plugins need.
package amqp10

import (
	"context"
	"crypto/tls"

	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/connection"
	"github.com/packetd/amqp10/link"
	"github.com/packetd/amqp10/messaging"
	"github.com/packetd/amqp10/sasl"
	"github.com/packetd/amqp10/session"
	"github.com/packetd/amqp10/transport"
	"github.com/packetd/amqp10/transport/saslio"
	"github.com/packetd/amqp10/transport/tcpio"
	"github.com/packetd/amqp10/transport/tlsio"
)

// Re-exported types application code builds against, so most callers need
// only import this package.
type (
	Connection = connection.Connection
	Session    = session.Session
	Link       = link.Link
	Sender     = messaging.Sender
	Receiver   = messaging.Receiver
	Value      = amqpvalue.Value
	Mechanism  = sasl.Mechanism
)

// DialOptions configures Dial's transport and connection negotiation.
type DialOptions struct {
	// TLS enables amqps:// (TLS handshake before the AMQP header
	// exchange). TLSConfig may be nil to use crypto/tls defaults.
	TLS       bool
	TLSConfig *tls.Config

	// Mechanism, when non-nil, wraps the transport in a SASL negotiation
	// (spec.md §4.5) before the plain AMQP connection engine takes over.
	Mechanism sasl.Mechanism

	Connection connection.Options
}

// Dial builds the transport stack for addr ("host:port") per opts, wraps
// it in a Connection, and opens it: dials (and TLS/SASL-negotiates, if
// configured), then sends the local AMQP protocol header. Callers must
// keep calling DoWork until Connection.State reports StateOpened (or an
// error surfaces via OnStateChanged) — Dial does not block for the
// handshake to finish, matching the single-threaded cooperative model
// spec.md §5 requires.
func Dial(ctx context.Context, addr string, opts DialOptions) (*connection.Connection, error) {
	var tp transport.Transport
	if opts.TLS {
		tp = tlsio.New(addr, opts.TLSConfig)
	} else {
		tp = tcpio.New(addr)
	}
	if opts.Mechanism != nil {
		tp = saslio.New(tp, opts.Mechanism)
	}

	conn := connection.New(tp, opts.Connection)
	if err := conn.Open(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

// NewSession creates and begins a session on conn, returning once BEGIN
// has been sent (not once the peer's BEGIN has arrived — watch
// Session.State via NewSession's OnStateChanged hook, or poll State()).
func NewSession(conn *connection.Connection, opts session.Options) (*session.Session, error) {
	sess := session.New(conn, opts)
	if err := sess.Begin(); err != nil {
		return nil, err
	}
	return sess, nil
}

// NewSender creates a sending Link on sess for target address, attaches
// it, and wraps it in a Sender. Queued sends drain once the link reaches
// ATTACHED (or HALF_ATTACHED, for a peer slow to reply).
func NewSender(sess *session.Session, name, target string) (*messaging.Sender, error) {
	l := link.New(sess, link.Options{
		Name:   name,
		Role:   link.RoleSender,
		Source: messaging.CreateSource(target),
		Target: messaging.CreateTarget(target),
	})
	if err := l.Attach(); err != nil {
		return nil, err
	}
	return messaging.NewSender(sess, l), nil
}

// NewReceiver creates a receiving Link on sess for source address,
// attaches it, and wraps it in a Receiver. Call Subscribe to grant credit
// and start receiving.
func NewReceiver(sess *session.Session, name, source string) (*messaging.Receiver, error) {
	l := link.New(sess, link.Options{
		Name:   name,
		Role:   link.RoleReceiver,
		Source: messaging.CreateSource(source),
		Target: messaging.CreateTarget(source),
	})
	if err := l.Attach(); err != nil {
		return nil, err
	}
	return messaging.NewReceiver(l), nil
}
