package main

import (
	"log"

	"github.com/nuecms/storage-provider/cmd"
	"github.com/nuecms/storage-provider/config"
)

func main() {
	if config.CommitHash != "" {
		log.Printf("storage-provider %s (%s)", config.Version, config.CommitHash)
	} else {
		log.Printf("storage-provider %s", config.Version)
	}
	cmd.Execute()
}
