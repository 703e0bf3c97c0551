package main

import (
	"os"

	"worker-proxy-server/cmd"
)

// @title Worker Proxy API
// @version 1.0
// @description Bounded concurrent execution proxy for a streaming CLI worker
// @host localhost:8080
// @BasePath /api
func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
