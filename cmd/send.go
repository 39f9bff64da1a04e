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
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/packetd/amqp10"
	"github.com/packetd/amqp10/connection"
	"github.com/packetd/amqp10/messaging"
	"github.com/packetd/amqp10/sasl"
	"github.com/packetd/amqp10/sasl/plain"
	"github.com/packetd/amqp10/session"
)

type sendCmdConfig struct {
	Addr    string
	Target  string
	Body    string
	Authcid string
	Passwd  string
	Timeout time.Duration
}

var sendConfig sendCmdConfig

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one message to an AMQP 1.0 target address",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), sendConfig.Timeout)
		defer cancel()
		return runSend(ctx)
	},
	Example: "# amqp10 send --addr localhost:5672 --target examples --body 'hello'",
}

func init() {
	sendCmd.Flags().StringVar(&sendConfig.Addr, "addr", "localhost:5672", "Broker address (host:port)")
	sendCmd.Flags().StringVar(&sendConfig.Target, "target", "examples", "Target link address")
	sendCmd.Flags().StringVar(&sendConfig.Body, "body", "", "Message body to send")
	sendCmd.Flags().StringVar(&sendConfig.Authcid, "authcid", "", "SASL PLAIN authentication identity (empty disables SASL)")
	sendCmd.Flags().StringVar(&sendConfig.Passwd, "passwd", "", "SASL PLAIN password")
	sendCmd.Flags().DurationVar(&sendConfig.Timeout, "timeout", 10*time.Second, "Overall deadline for connect, attach and settlement")
	rootCmd.AddCommand(sendCmd)
}

func runSend(ctx context.Context) (retErr error) {
	var mech sasl.Mechanism
	if sendConfig.Authcid != "" {
		mech = plain.NewFromConfig(plain.Config{Authcid: sendConfig.Authcid, Passwd: sendConfig.Passwd})
	}

	conn, err := amqp10.Dial(ctx, sendConfig.Addr, amqp10.DialOptions{
		Mechanism:  mech,
		Connection: connection.Options{ContainerID: "amqp10-cli"},
	})
	if err != nil {
		return fmt.Errorf("send: dial: %w", err)
	}
	defer func() {
		if err := conn.Close("", ""); err != nil {
			retErr = multierror.Append(retErr, err)
		}
	}()

	if err := pumpUntil(ctx, conn, func() bool { return conn.State() == connection.StateOpened }); err != nil {
		return fmt.Errorf("send: waiting for OPEN: %w", err)
	}

	sess, err := amqp10.NewSession(conn, session.Options{})
	if err != nil {
		return fmt.Errorf("send: begin session: %w", err)
	}
	defer func() {
		if err := sess.End("", ""); err != nil {
			retErr = multierror.Append(retErr, err)
		}
	}()

	if err := pumpUntil(ctx, conn, func() bool { return sess.State() == session.StateMapped }); err != nil {
		return fmt.Errorf("send: waiting for BEGIN: %w", err)
	}

	sender, err := amqp10.NewSender(sess, "amqp10-cli-sender", sendConfig.Target)
	if err != nil {
		return fmt.Errorf("send: attach: %w", err)
	}

	done := make(chan messaging.SendResult, 1)
	sender.Send([]byte(sendConfig.Body), func(r messaging.SendResult) { done <- r })

	for {
		select {
		case r := <-done:
			if r != messaging.SendOK {
				return fmt.Errorf("send: delivery not accepted")
			}
			fmt.Fprintln(os.Stdout, "message sent and settled")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := conn.DoWork(); err != nil {
				return fmt.Errorf("send: dowork: %w", err)
			}
		}
	}
}

// pumpUntil drives conn.DoWork until cond is satisfied or ctx expires.
func pumpUntil(ctx context.Context, conn *connection.Connection, cond func() bool) error {
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := conn.DoWork(); err != nil {
				return err
			}
		}
	}
	return nil
}
