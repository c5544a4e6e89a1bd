package main

import (
	"ledger-whale-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
