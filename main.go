package main

import (
	"github.com/scribe-archive/scribe/internal/cli"
)

func main() {
	cli.Run()
}
