package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AyanAhmedKhan/endoscopy-go/cmd/analyze"
	"github.com/AyanAhmedKhan/endoscopy-go/cmd/history"
	"github.com/AyanAhmedKhan/endoscopy-go/cmd/models"
	"github.com/AyanAhmedKhan/endoscopy-go/cmd/report"
	"github.com/AyanAhmedKhan/endoscopy-go/cmd/serve"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "endoscopy",
		Short: "EndoscopyAI CLI",
		Long:  "Client for the explainable GI endoscopy diagnosis service: submit images, inspect results, export reports.",
	}

	// Set up the global flags for the root command.
	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		analyze.Command(settings),
		serve.Command(settings),
		models.Command(settings),
		report.Command(settings),
		history.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Service.BaseURL, "server", viper.GetString("service.baseurl"), "Base URL of the inference service")
	rootCmd.PersistentFlags().IntVar(&settings.Service.Timeout, "timeout", viper.GetInt("service.timeout"), "Inference wait bound in seconds")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		cobra.CheckErr(err)
	}
}
