package main

import "github.com/veilguard-ai/veilguard/internal/cli"

func main() {
	cli.Execute()
}
