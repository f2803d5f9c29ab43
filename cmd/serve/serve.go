// Package serve implements the local gateway command.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AyanAhmedKhan/endoscopy-go/internal/api"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/conf"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/datastore"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/diagnosis"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/httpclient"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/logging"
	"github.com/AyanAhmedKhan/endoscopy-go/internal/observability/metrics"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local diagnosis gateway",
		Long:  "Expose the diagnosis workflow as a JSON API for browser frontends and scripting clients.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGateway(settings)
		},
	}

	cmd.Flags().StringVar(&settings.Gateway.Listen, "listen", viper.GetString("gateway.listen"), "Listen address and port of the gateway")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return cmd
	}
	return cmd
}

func runGateway(settings *conf.Settings) error {
	logger := logging.ServiceLogger("serve")

	registry := prometheus.NewRegistry()
	diagMetrics, err := metrics.NewDiagnosisMetrics(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	store := datastore.New(settings)
	if store != nil {
		if err := store.Open(); err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer func() { _ = store.Close() }()
	}

	client := httpclient.NewFromSettings(settings)
	client.SetAfterResponseHook(func(req *http.Request, resp *http.Response, err error) {
		status := "error"
		if err == nil && resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		diagMetrics.RecordBackendResponse(req.Method, status)
	})

	session := diagnosis.NewSession(settings, client, store, diagMetrics)
	session.Tracker.Probe(context.Background())

	controller := api.New(settings, session, store, registry)

	errChan := make(chan error, 1)
	go func() {
		if err := controller.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		logger.Info("Shutting down gateway", "signal", sig.String())
		return controller.Shutdown()
	}
}
