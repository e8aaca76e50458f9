package main

import "github.com/alechenninger/provisioner/internal/cli"

func main() {
	cli.Execute()
}
