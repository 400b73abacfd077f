package main

import (
	"parksphere/internal/lots/handler"
	"parksphere/internal/lots/repository"
	"parksphere/internal/lots/service"
	"parksphere/internal/lots/validator"
	"parksphere/pkg/app"
	"parksphere/pkg/config"
	"parksphere/pkg/tracing"
)

const ServiceName = "lots"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()

	cfg.Log.Info("Starting Lots service", "store", cfg.StoreDriver)
	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.OnShutdown(tracing.Init(ServiceName, cfg.OtelEndpoint))

	serverApp.SetApp(handler.NewLotHandler(initServices(cfg), cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.LotService {
	var lotRepo repository.LotRepository
	if cfg.UsesMongo() {
		lotRepo = repository.NewMongoLotRepository(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), cfg.ReadTimeout, cfg.WriteTimeout)
	} else {
		lotRepo = repository.NewSQLLotRepository(cfg.Client.SQL)
	}

	lotService := service.NewLotService(lotRepo, validator.NewLotValidator(cfg.Log), cfg)
	cfg.Log.Info("Lot service initialized", "store", cfg.StoreDriver)
	return lotService
}
