package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/interface/plugin"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

type config struct {
	StoresFile     string
	AppPort        string
	UpdateOnStart  bool
	UpdateInterval time.Duration
}

func newAppConfig() (*config, error) {
	config := config{}
	flag.StringVar(&config.StoresFile, "stores", "", "yaml file describing the data stores")
	flag.StringVar(&config.AppPort, "port", "8080", "http port to serve")
	flag.BoolVar(&config.UpdateOnStart, "update", false, "reconcile the registries with the file systems at startup")
	flag.DurationVar(&config.UpdateInterval, "update-interval", 0, "period of the reconciliation of the registries (0: never)")
	flag.Parse()

	if config.StoresFile == "" {
		return nil, fmt.Errorf("missing configuration: -stores")
	}
	return &config, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	config, err := newAppConfig()
	if err != nil {
		return err
	}

	registry := plugin.NewRegistry(datatype.Default())
	federation, err := loadFederation(ctx, registry, config.StoresFile)
	if err != nil {
		return err
	}

	if config.UpdateOnStart {
		if err := federation.Update(ctx); err != nil {
			log.Logger(ctx).Sugar().Warnf("update: %v", err)
		}
	}
	if config.UpdateInterval > 0 {
		go func() {
			ticker := time.NewTicker(config.UpdateInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := federation.Update(ctx); err != nil {
						log.Logger(ctx).Sugar().Warnf("update: %v", err)
					}
				}
			}
		}()
	}

	// HTTP Server
	headersOk := handlers.AllowedHeaders([]string{"*"})
	originsOk := handlers.AllowedOrigins([]string{"*"})
	methodsOk := handlers.AllowedMethods([]string{"GET", "POST", "PUT", "OPTIONS"})
	handler := handlers.CORS(originsOk, headersOk, methodsOk)(federation.NewHandler())
	handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(handler)
	s := http.Server{
		Addr:    ":" + config.AppPort,
		Handler: handlers.CombinedLoggingHandler(os.Stdout, handler),
	}

	go func() {
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger(ctx).Fatal("datastore.ListenAndServe", zap.Error(err))
		}
	}()
	log.Logger(ctx).Sugar().Infof("datastore serves %v on port %s", federation.IDs(), config.AppPort)

	<-ctx.Done()
	sctx, cncl := context.WithTimeout(context.Background(), 30*time.Second)
	defer cncl()
	return s.Shutdown(sctx)
}
