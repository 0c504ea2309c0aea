package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-check",
	Short: "Detect faces in uploaded images",
	Long: `Face Check serves a small web page where visitors upload an image and
see whether it contains faces. Detection runs on a pluggable backend: the
embedding service, an in-process pigo cascade, or a Gemini or OpenAI vision
model.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
