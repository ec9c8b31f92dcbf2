/*
Copyright 2024 Viralship Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/viralship/viralship"
	"github.com/viralship/viralship/config"
	"github.com/viralship/viralship/database"
	"github.com/viralship/viralship/internal/notification"
)

// Viralship represents the CLI application, encapsulating the root Cobra command.
type Viralship struct {
	cmd *cobra.Command
}

// viralshipInstance holds the coordinator instance and its configuration,
// shared by every subcommand through the persistent pre-run hook.
type viralshipInstance struct {
	coordinator *viralship.Viralship
	cnf         *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the coordinator before
// running any command.
func preRun(app *viralshipInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("viralship.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		coordinator, err := setupViralship(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.coordinator = coordinator
		app.cnf = cnf

		return nil
	}
}

// setupViralship creates the coordinator from the configured data source.
func setupViralship(cfg *config.Configuration) (*viralship.Viralship, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	coordinator, err := viralship.NewViralship(db)
	if err != nil {
		return nil, fmt.Errorf("error creating viralship: %v", err)
	}
	return coordinator, nil
}

// NewCLI creates the command-line interface for the Viralship application.
func NewCLI() *Viralship {
	var configFile string
	v := &viralshipInstance{}

	var rootCmd = &cobra.Command{
		Use:   "viralship",
		Short: "Instagram engagement transaction coordinator",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./viralship.json", "Configuration file for viralship")

	rootCmd.PersistentPreRunE = preRun(v)

	rootCmd.AddCommand(serverCommands(v))
	rootCmd.AddCommand(workerCommands(v))
	rootCmd.AddCommand(migrateCommands(v))

	return &Viralship{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Viralship) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
