package main

import (
	"log"

	"github.com/hirescope/hirescope/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
