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

// Package plain implements the SASL PLAIN mechanism (RFC 4616), grounded
// on c/src/sasl_plain.c's saslplain_create, which builds the init bytes
// once at creation time rather than lazily.
package plain

import (
	"github.com/packetd/amqp10/errs"
	"github.com/packetd/amqp10/sasl"
)

func init() {
	sasl.Register("PLAIN", func() sasl.Mechanism { return New("", "") })
}

// Mechanism implements sasl.Mechanism for PLAIN: init bytes are
// authzid(empty) NUL authcid NUL passwd, exactly the layout
// saslplain_create assembles.
type Mechanism struct {
	initBytes []byte
}

// Config is the confengine-unmarshallable form of the PLAIN credentials
// (spec.md §6's SASL PLAIN configuration surface), tagged with
// `config:"..."` like connection.Options and tlsio.Config. The sample CLI
// does not load it through confengine; it builds the mechanism from its
// command-line flags.
type Config struct {
	Authcid string `config:"authcid"`
	Passwd  string `config:"passwd"`
}

// New builds a PLAIN mechanism for the given authentication identity and
// password. The authorization identity is left empty, matching
// saslplain_create (which never takes one).
func New(authcid, passwd string) *Mechanism {
	b := make([]byte, 0, 2+len(authcid)+len(passwd))
	b = append(b, 0x00)
	b = append(b, authcid...)
	b = append(b, 0x00)
	b = append(b, passwd...)
	return &Mechanism{initBytes: b}
}

// NewFromConfig builds a PLAIN mechanism from a Config loaded via
// confengine.
func NewFromConfig(cfg Config) *Mechanism {
	return New(cfg.Authcid, cfg.Passwd)
}

func (m *Mechanism) Name() string { return "PLAIN" }

func (m *Mechanism) InitBytes() []byte { return m.initBytes }

// Challenge always fails: PLAIN completes in a single step and the server
// must not issue a sasl-challenge for it.
func (m *Mechanism) Challenge(challenge []byte) ([]byte, error) {
	return nil, errs.Protocol(errs.CondNotAllowed, "sasl/plain: unexpected challenge")
}
