package main

import "donation-ledger/internal/cli"

func main() {
	cli.Execute()
}
