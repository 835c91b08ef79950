// Package main provides a one-shot utility for custody grant keys and
// actor grants.
package main

import (
	"os"

	"github.com/louisbranch/custody/internal/platform/config"
	"github.com/louisbranch/custody/internal/tools/custodygrant"
)

func main() {
	if err := custodygrant.Run(os.Args[1:], os.Stdout, nil, nil); err != nil {
		config.Exitf("custody-grant: %v", err)
	}
}
