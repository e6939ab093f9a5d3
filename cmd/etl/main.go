package main

import (
	"os"

	"github.com/tradepath/roi-ingest/cmd/etl/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
