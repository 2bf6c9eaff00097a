package main

import (
	"os"

	"github.com/hashicorp-forge/signbridge/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
