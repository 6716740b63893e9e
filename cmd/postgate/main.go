package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/postgate/postgate/internal/common/logtrace"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "postgate",
	Short: "Secure HTTP gateway for PostgreSQL with SQL validation and multi-tenant isolation",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Running without a subcommand starts the server.
		return runServe(cmd.Context())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	logtrace.InitLogger()
	godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to the config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(createDbCmd)
	rootCmd.AddCommand(genTokenCmd)
	rootCmd.AddCommand(listDbsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
