package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/awantoch/loanscore/utils"
)

func main() {
	// Load .env as early as possible!
	_ = godotenv.Load()

	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		utils.Error("%v", err)
		exit(1)
	}
}

var exit = os.Exit
