package main

import "github.com/Rohesen/walmart-ingest/cmd"

func main() {
	cmd.Execute()
}
