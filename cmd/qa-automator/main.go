package main

import (
	"github.com/nguyenopenclaw/qa-automator/pkg/cli"
)

func main() {
	cli.Execute()
}
