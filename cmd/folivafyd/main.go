// folivafyd is the document/collection engine's single binary: it serves
// the HTTP API and runs the outbox, mail, and purge-sweep background
// workers, and doubles as the operator CLI for one-off maintenance
// (migrate, create-collection, rebuild-grants).
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "folivafyd",
	Short: "The folivafy document/collection engine",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createCollectionCmd)
	rootCmd.AddCommand(rebuildGrantsCmd)
}

func initLogging() {
	levelName, _ := rootCmd.PersistentFlags().GetString("log-level")
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	loggerInit(level)
}
