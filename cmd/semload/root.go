// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const applicationName = "semload"

var version = "0.1.0"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           applicationName,
		Short:         "Drive a semaphore with concurrent tasks",
		Long:          color.CyanString(applicationName) + " runs tasks against a counting semaphore or mutex and reports peak concurrency.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	root.AddCommand(newRunCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("%s %s\n", applicationName, version)
		},
	}
}
