package main

import "github.com/corvino/cinema/internal/cli"

func main() {
	cli.Execute()
}
