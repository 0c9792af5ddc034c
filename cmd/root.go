// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cellarfs",
	Short: "Mount an encrypted, single-file SQLite-backed filesystem",
	Long: `cellarfs is a FUSE filesystem backed by a single encrypted SQLite
database file. It stores every inode, directory entry, and file block as
rows in that one file, so the whole filesystem can be copied, backed up, or
shipped around like any other file.`,
}

// Execute runs the cellarfs CLI, exiting the process with status 1 on
// error the way cobra's own top-level runners conventionally do.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(mountExecCmd)
	rootCmd.AddCommand(optimizeCmd)
}
