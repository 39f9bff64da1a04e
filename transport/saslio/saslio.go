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

// Package saslio wraps an inner transport.Transport with the SASL
// negotiation handshake (spec.md §4.5): protocol header exchange with
// protocol id 3, sasl-mechanisms/sasl-init, an optional challenge/response
// loop, and sasl-outcome. The reset back to a plain AMQP protocol header
// (id 0) is left to the connection engine, which sends that header and
// performs its own header exchange over the wrapper. Once negotiation
// succeeds the wrapper is pure pass-through.
package saslio

import (
	"context"
	"time"

	"github.com/packetd/amqp10/amqpframe"
	"github.com/packetd/amqp10/amqpvalue"
	"github.com/packetd/amqp10/errs"
	"github.com/packetd/amqp10/sasl"
	"github.com/packetd/amqp10/transport"
)

// Descriptor codes for the SASL performatives (AMQP §5.3-§5.8).
const (
	descSASLMechanisms = 0x40
	descSASLInit       = 0x41
	descSASLChallenge  = 0x42
	descSASLResponse   = 0x43
	descSASLOutcome    = 0x44
)

const outcomeOK = 0

// header builds the 8-byte AMQP protocol header for the given protocol id
// (AMQP §2.2): 'A','M','Q','P', id, major=1, minor=0, revision=0.
func header(protocolID byte) []byte {
	return []byte{'A', 'M', 'Q', 'P', protocolID, 1, 0, 0}
}

// negotiateTimeout bounds the whole SASL handshake.
const negotiateTimeout = 30 * time.Second

// Conn wraps an inner transport.Transport with SASL negotiation.
type Conn struct {
	inner     transport.Transport
	mechanism sasl.Mechanism

	state   transport.State
	onData  func([]byte)
	onState func(old, new transport.State)
}

// New builds a saslio transport performing mechanism's negotiation over
// inner once Open is called.
func New(inner transport.Transport, mechanism sasl.Mechanism) *Conn {
	return &Conn{inner: inner, mechanism: mechanism, state: transport.NotOpen}
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
	if err := c.inner.Open(ctx); err != nil {
		c.setState(transport.Error)
		return err
	}
	if err := c.negotiate(ctx); err != nil {
		c.setState(transport.Error)
		return err
	}
	c.setState(transport.Open)
	return nil
}

// negotiate drives the blocking handshake described in the package doc by
// busy-polling the inner transport's non-blocking DoWork, since Open is
// documented to block until the transport is ready.
func (c *Conn) negotiate(ctx context.Context) error {
	deadline := time.Now().Add(negotiateTimeout)

	var headerEchoed bool
	var outcomeReceived bool
	var negotiateErr error

	dec := amqpframe.NewDecoder(0)
	dec.OnSASLFrame = func(f amqpframe.SASLFrame) error {
		descriptor, ok := f.Performative.Descriptor()
		if !ok {
			return errs.Protocol(errs.CondInvalidField, "saslio: sasl frame missing descriptor")
		}
		code, ok := descriptor.Ulong()
		if !ok {
			return errs.Protocol(errs.CondInvalidField, "saslio: sasl descriptor not a ulong")
		}
		switch code {
		case descSASLMechanisms:
			return c.sendInit()
		case descSASLChallenge:
			body, _ := f.Performative.Body()
			chall, _ := body.ListItem(0)
			raw, _ := chall.Binary()
			resp, err := c.mechanism.Challenge(raw)
			if err != nil {
				negotiateErr = err
				return err
			}
			return c.sendResponse(resp)
		case descSASLOutcome:
			body, _ := f.Performative.Body()
			codeVal, _ := body.ListItem(0)
			outcome, _ := codeVal.Ubyte()
			outcomeReceived = true
			if outcome != outcomeOK {
				negotiateErr = errs.Protocol(errs.CondNotAllowed, "saslio: sasl-outcome rejected authentication")
			}
			return nil
		default:
			return errs.Protocol(errs.CondInvalidField, "saslio: unexpected sasl performative")
		}
	}

	raw := make([]byte, 0, 8)
	c.inner.SetOnData(func(b []byte) {
		if !headerEchoed {
			raw = append(raw, b...)
			if len(raw) < 8 {
				return
			}
			_, _ = dec.Write(raw[8:])
			raw = nil
			headerEchoed = true
			return
		}
		_, _ = dec.Write(b)
	})

	if _, err := c.inner.Write(header(3)); err != nil {
		return err
	}

	for !outcomeReceived {
		if time.Now().After(deadline) {
			return errs.New(errs.TransportError, "saslio: negotiation timed out")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.inner.DoWork(); err != nil {
			return err
		}
		if dec.Poisoned() != nil {
			return dec.Poisoned()
		}
	}
	if negotiateErr != nil {
		return negotiateErr
	}

	c.inner.SetOnData(c.onData)
	return nil
}

func (c *Conn) sendInit() error {
	descriptor := amqpvalue.Ulong(descSASLInit)
	mech, _ := amqpvalue.Symbol(c.mechanism.Name())
	body := amqpvalue.ListOf(mech, amqpvalue.Binary(c.mechanism.InitBytes()))
	perf := amqpvalue.Described(descriptor, body)
	return amqpframe.EncodeSASLFrame(writerFunc(c.inner.Write), perf)
}

func (c *Conn) sendResponse(resp []byte) error {
	descriptor := amqpvalue.Ulong(descSASLResponse)
	body := amqpvalue.ListOf(amqpvalue.Binary(resp))
	perf := amqpvalue.Described(descriptor, body)
	return amqpframe.EncodeSASLFrame(writerFunc(c.inner.Write), perf)
}

// writerFunc adapts a Write method value to io.Writer.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func (c *Conn) Close() error { return c.inner.Close() }

func (c *Conn) Write(p []byte) (int, error) { return c.inner.Write(p) }

func (c *Conn) DoWork() error { return c.inner.DoWork() }

func (c *Conn) State() transport.State { return c.state }

func (c *Conn) SetOnData(f func([]byte)) {
	c.onData = f
	if c.state == transport.Open {
		c.inner.SetOnData(f)
	}
}

func (c *Conn) SetOnStateChanged(f func(old, new transport.State)) { c.onState = f }
