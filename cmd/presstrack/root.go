package main

import "github.com/spf13/cobra"

var (
	serverURL string
	token     string
)

var rootCmd = &cobra.Command{
	Use:   "presstrack",
	Short: "Command line client for the presstrack api",
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listCmd)

	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:3443", "Address of the presstrack api")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "Bearer token, or username:role against a dev server")
}
