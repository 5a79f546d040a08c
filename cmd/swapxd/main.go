package main

import "github.com/LeJamon/swapx/internal/cli"

func main() {
	cli.Execute()
}
