package main

import (
	"github.com/irwinlee/tradecouncil/internal/cli"
)

func main() {
	cli.Run()
}
