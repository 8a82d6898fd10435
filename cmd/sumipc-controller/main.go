// Command sumipc-controller reads lines from stdin, has a worker process sum
// them over shared memory and prints the answers.
package main

import (
	"os"

	"github.com/srediag/sumipc/pkg/controller"
)

func main() {
	os.Exit(controller.Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
