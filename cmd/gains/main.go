package main

import "github.com/rustyeddy/gains/internal/cli"

func main() {
	cli.Execute()
}
