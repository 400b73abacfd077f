package main

import (
	"parksphere/internal/bookings/handler"
	"parksphere/internal/bookings/repository"
	"parksphere/internal/bookings/service"
	"parksphere/internal/bookings/validator"
	lotsrepository "parksphere/internal/lots/repository"
	"parksphere/pkg/app"
	"parksphere/pkg/config"
	mongodb "parksphere/pkg/db/mongo"
	"parksphere/pkg/kafka"
	kafka_config "parksphere/pkg/kafka/config"
	kafka_middleware "parksphere/pkg/kafka/middleware"
	"parksphere/pkg/tracing"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStore()

	cfg.Log.Info("Starting Bookings service", "store", cfg.StoreDriver)
	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.OnShutdown(tracing.Init(ServiceName, cfg.OtelEndpoint))

	publisher, closePublisher := initPublisher(cfg)
	serverApp.OnShutdown(closePublisher)

	bookingService := initServices(cfg, publisher)
	serverApp.SetApp(handler.NewBookingHandler(bookingService, cfg.Log))
	serverApp.Run()
}

func initRepositories(cfg *config.Config) (repository.BookingRepository, lotsrepository.LotRepository) {
	if cfg.UsesMongo() {
		database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		txManager := mongodb.NewTransactionManager(cfg.Client.Mongo)
		return repository.NewMongoBookingRepository(database, txManager, cfg.ReadTimeout, cfg.WriteTimeout),
			lotsrepository.NewMongoLotRepository(database, cfg.ReadTimeout, cfg.WriteTimeout)
	}
	return repository.NewSQLBookingRepository(cfg.Client.SQL), lotsrepository.NewSQLLotRepository(cfg.Client.SQL)
}

func initPublisher(cfg *config.Config) (kafka.EventPublisher, func()) {
	if !cfg.KafkaEnabled {
		cfg.Log.Info("Kafka disabled, booking events are not published")
		return kafka.NoopPublisher{}, func() {}
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaBookingsTopic, cfg.KafkaBookingsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	producer.Use(kafka_middleware.MetricsProducerMiddleware())

	cfg.Log.Info("Kafka producer initialized", "topic", cfg.KafkaBookingsTopic)
	return kafka.NewBookingEventPublisher(producer, ServiceName), func() {
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}

func initServices(cfg *config.Config, publisher kafka.EventPublisher) service.BookingService {
	bookingRepo, lotRepo := initRepositories(cfg)
	bookingValidator := validator.NewBookingValidator(cfg.Log, cfg.MaxBookingHours, nil)
	bookingService := service.NewBookingService(
		bookingRepo,
		lotRepo,
		bookingValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Booking service initialized", "store", cfg.StoreDriver)
	return bookingService
}
