package main

import "github.com/cagehq/cage/internal/cli"

func main() {
	cli.Execute()
}
