// Command dice-sim estimates who wins a two player dice game.
package main

import (
	"os"

	"github.com/srediag/sumipc/pkg/dice"
)

func main() {
	os.Exit(dice.Main(os.Args[1:], os.Stdout, os.Stderr))
}
