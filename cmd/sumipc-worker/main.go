// Command sumipc-worker answers a controller's sum requests and appends every
// answer to a log file. It is started by sumipc-controller.
package main

import (
	"os"

	"github.com/srediag/sumipc/pkg/worker"
)

func main() {
	os.Exit(worker.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
