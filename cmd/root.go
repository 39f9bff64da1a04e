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

// Package cmd implements the amqp10 sample CLI: a thin cobra front-end
// over the amqp10 facade package used to send and receive messages
// against a real broker, in the same shape the teacher's agent/log/watch
// subcommands front the sniffer controller.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/packetd/amqp10/common"
	"github.com/packetd/amqp10/logger"
)

var rootCmd = &cobra.Command{
	Use:   "amqp10",
	Short: "A minimal AMQP 1.0 client CLI",
}

var (
	logLevel string
	logFile  string
)

// Execute runs the root command, exiting the process on error the way
// cobra's own examples do.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (stdout if empty)")
	rootCmd.AddCommand(versionCmd)

	cobra.OnInitialize(func() {
		logger.SetOptions(logger.Options{
			Stdout:   logFile == "",
			Level:    logLevel,
			Filename: logFile,
			MaxSize:  100,
			MaxAge:   7,
		})
	})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		info := common.GetBuildInfo()
		fmt.Printf("%s version %s (%s, %s)\n", common.App, common.Version, info.GitHash, info.Time)
	},
}
