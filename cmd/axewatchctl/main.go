// axewatchctl is the admin client for the axewatch API: inspect aggregate
// stats, fetch or clear cached snapshots, and submit scan results from files.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
