// Command cellarfs mounts, execs against, and optimizes encrypted
// single-file SQLite-backed filesystems.
package main

import "github.com/cellarfs/cellarfs/cmd"

func main() {
	cmd.Execute()
}
