package main

import (
	"log"

	"github.com/austindbirch/ship_notify/cmd/shipnotify/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
