package main

import (
	"os"

	"github.com/bianoble/registry-manager/cmd/registry-manager/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
