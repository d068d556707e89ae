// Command attendctl is the operator tool for enrolling employees, managing
// admin accounts and exporting the attendance ledger.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
