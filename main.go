package main

import "oracle-price-audit/internal/cli"

func main() {
	cli.Execute()
}
