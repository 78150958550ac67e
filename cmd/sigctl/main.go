// cmd/sigctl is the operator CLI: one-off analysis, position sizing, store
// seeding, walk-forward backtests and a live signal tail.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
