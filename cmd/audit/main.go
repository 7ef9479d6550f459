package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codeguardian",
	Short: "Hybrid static + AI source-code security scanner",
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}
