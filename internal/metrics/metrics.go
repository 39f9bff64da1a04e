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

// Package metrics exposes the protocol engine's lifecycle gauges, grounded
// the same way internal/rescue counts panics: promauto registers against
// the default registry so server's /metrics route exposes them with no
// further wiring.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/amqp10/common"
)

var (
	ConnectionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "connections_open",
		Help:      "number of AMQP connections currently in the OPENED state",
	})

	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "sessions_active",
		Help:      "number of AMQP sessions currently MAPPED",
	})

	LinksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: common.App,
		Name:      "links_active",
		Help:      "number of AMQP links currently ATTACHED or HALF_ATTACHED",
	})
)
