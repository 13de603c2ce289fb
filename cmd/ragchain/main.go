package main

import "ragchain/internal/cli"

func main() {
	cli.Execute()
}
