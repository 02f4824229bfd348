package main

import (
	"github.com/awnumar/memguard"

	"github.com/openedu-urfu/reportctl/cmd/reportctl/cmd"
)

func main() {
	defer memguard.Purge()
	cmd.Execute()
}
