package main

import (
	"log"

	"github.com/forkops/replay-go/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		log.Fatalf("replay-go: %v", err)
	}
}
