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

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/packetd/amqp10"
	"github.com/packetd/amqp10/confengine"
	"github.com/packetd/amqp10/connection"
	"github.com/packetd/amqp10/internal/rescue"
	"github.com/packetd/amqp10/internal/sigs"
	"github.com/packetd/amqp10/sasl"
	"github.com/packetd/amqp10/sasl/plain"
	"github.com/packetd/amqp10/server"
	"github.com/packetd/amqp10/session"
)

type receiveCmdConfig struct {
	Addr    string
	Source  string
	Credit  uint32
	Authcid string
	Passwd  string
	Config  string
}

var receiveConfig receiveCmdConfig

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Subscribe to an AMQP 1.0 source address and print messages as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReceive(context.Background())
	},
	Example: "# amqp10 receive --addr localhost:5672 --source examples",
}

func init() {
	receiveCmd.Flags().StringVar(&receiveConfig.Addr, "addr", "localhost:5672", "Broker address (host:port)")
	receiveCmd.Flags().StringVar(&receiveConfig.Source, "source", "examples", "Source link address")
	receiveCmd.Flags().Uint32Var(&receiveConfig.Credit, "credit", 0, "Link credit to grant (0 uses the package default)")
	receiveCmd.Flags().StringVar(&receiveConfig.Authcid, "authcid", "", "SASL PLAIN authentication identity (empty disables SASL)")
	receiveCmd.Flags().StringVar(&receiveConfig.Passwd, "passwd", "", "SASL PLAIN password")
	receiveCmd.Flags().StringVar(&receiveConfig.Config, "config", "", "Optional diagnostics-server config file (server.enabled/address/pprof)")
	rootCmd.AddCommand(receiveCmd)
}

func runReceive(ctx context.Context) error {
	defer rescue.HandleCrash()

	if receiveConfig.Config != "" {
		if err := startDiagnosticsServer(receiveConfig.Config); err != nil {
			return fmt.Errorf("receive: diagnostics server: %w", err)
		}
	}

	var mech sasl.Mechanism
	if receiveConfig.Authcid != "" {
		mech = plain.NewFromConfig(plain.Config{Authcid: receiveConfig.Authcid, Passwd: receiveConfig.Passwd})
	}

	conn, err := amqp10.Dial(ctx, receiveConfig.Addr, amqp10.DialOptions{
		Mechanism:  mech,
		Connection: connection.Options{ContainerID: "amqp10-cli"},
	})
	if err != nil {
		return fmt.Errorf("receive: dial: %w", err)
	}

	term := sigs.Terminate()

	if err := pumpUntilSignal(conn, term, func() bool { return conn.State() == connection.StateOpened }); err != nil {
		return fmt.Errorf("receive: waiting for OPEN: %w", err)
	}

	sess, err := amqp10.NewSession(conn, session.Options{})
	if err != nil {
		return multierror.Append(fmt.Errorf("receive: begin session: %w", err), conn.Close("", "")).ErrorOrNil()
	}

	if err := pumpUntilSignal(conn, term, func() bool { return sess.State() == session.StateMapped }); err != nil {
		return teardown(sess, conn, err)
	}

	recv, err := amqp10.NewReceiver(sess, "amqp10-cli-receiver", receiveConfig.Source)
	if err != nil {
		return teardown(sess, conn, fmt.Errorf("receive: attach: %w", err))
	}
	if err := recv.Subscribe(receiveConfig.Credit, func(payload []byte) {
		fmt.Fprintf(os.Stdout, "%s\n", payload)
	}); err != nil {
		return teardown(sess, conn, fmt.Errorf("receive: subscribe: %w", err))
	}

	// pumpUntilSignal's cond never becomes true here: it runs until the
	// terminal signal arrives or DoWork fails, the way the teacher's agent
	// command loops DoWork/select until sigs.Terminate() fires. A DoWork
	// failure is aggregated into teardown's result.
	err = pumpUntilSignal(conn, term, func() bool { return false })
	return teardown(sess, conn, err)
}

func startDiagnosticsServer(path string) error {
	cfg, err := confengine.LoadConfigPath(path)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	if srv == nil {
		return nil
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			fmt.Fprintf(os.Stderr, "receive: diagnostics server stopped: %v\n", err)
		}
	}()
	return nil
}

// pumpUntilSignal drives conn.DoWork until cond is satisfied or a
// termination signal arrives on term.
func pumpUntilSignal(conn *connection.Connection, term <-chan os.Signal, cond func() bool) error {
	for !cond() {
		select {
		case <-term:
			return nil
		default:
			if err := conn.DoWork(); err != nil {
				return err
			}
		}
	}
	return nil
}

// teardown ends sess and closes conn, aggregating every failure alongside
// cause (which may be nil) into one error.
func teardown(sess *session.Session, conn *connection.Connection, cause error) error {
	var result *multierror.Error
	if cause != nil {
		result = multierror.Append(result, cause)
	}
	if err := sess.End("", ""); err != nil {
		result = multierror.Append(result, err)
	}
	if err := conn.Close("", ""); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
