package main

import (
	"os"

	"github.com/wesleyorama2/signupload/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
