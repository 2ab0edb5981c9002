package main

import (
	"context"

	"minidoodle/internal/events"
	meetinghandler "minidoodle/internal/meetings/handler"
	meetingrepo "minidoodle/internal/meetings/repository"
	meetingservice "minidoodle/internal/meetings/service"
	meetingvalidator "minidoodle/internal/meetings/validator"
	slothandler "minidoodle/internal/slots/handler"
	slotrepo "minidoodle/internal/slots/repository"
	slotservice "minidoodle/internal/slots/service"
	slotvalidator "minidoodle/internal/slots/validator"
	userhandler "minidoodle/internal/users/handler"
	userrepo "minidoodle/internal/users/repository"
	userservice "minidoodle/internal/users/service"
	uservalidator "minidoodle/internal/users/validator"
	"minidoodle/pkg/app"
	"minidoodle/pkg/config"
	"minidoodle/pkg/contracts"
	"minidoodle/pkg/db"
	"minidoodle/pkg/db/memory"
	mongotx "minidoodle/pkg/db/mongo"
	mysqldb "minidoodle/pkg/db/mysql"
	"minidoodle/pkg/kafka"
	kafka_config "minidoodle/pkg/kafka/config"
	kafka_middleware "minidoodle/pkg/kafka/middleware"
	"minidoodle/pkg/locking"
)

const ServiceName = "calendar"

type repositories struct {
	users    userrepo.UserRepository
	slots    slotrepo.SlotRepository
	meetings meetingrepo.MeetingRepository
	locker   locking.Locker
	pingers  []db.Pinger
}

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetStorage()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Calendar service", "storage_backend", cfg.StorageBackend)

	publisher, closePublisher := initPublisher(cfg)
	repos := initRepositories(cfg)
	handlers := initHandlers(cfg, repos, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.OnShutdown(closePublisher)
	serverApp.SetApp(repos.pingers, handlers...)
	serverApp.Run()
}

// initRepositories builds every repository over one shared store so that a
// booking transaction spans the slot and meeting writes.
func initRepositories(cfg *config.Config) *repositories {
	switch cfg.StorageBackend {
	case config.BackendMongo:
		database := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		return &repositories{
			users:    userrepo.NewMongoUserRepository(cfg),
			slots:    slotrepo.NewMongoSlotRepository(cfg),
			meetings: meetingrepo.NewMongoMeetingRepository(cfg),
			locker:   locking.NewMongoLeaseLocker(database, cfg.LockLeaseTTL, cfg.LockWaitTimeout, cfg.Log),
			pingers:  withRedis(cfg, mongotx.NewPinger(cfg.Client.Mongo)),
		}
	case config.BackendMySQL:
		store := mysqldb.New(cfg.Client.MySQL, cfg.LockWaitTimeout)
		// Row locks taken with SELECT ... FOR UPDATE serialize writers.
		return &repositories{
			users:    userrepo.NewMySQLUserRepository(store),
			slots:    slotrepo.NewMySQLSlotRepository(store),
			meetings: meetingrepo.NewMySQLMeetingRepository(store),
			locker:   locking.Noop{},
			pingers:  withRedis(cfg, store),
		}
	default:
		store := memory.New()
		return &repositories{
			users:    userrepo.NewMemoryUserRepository(store),
			slots:    slotrepo.NewMemorySlotRepository(store),
			meetings: meetingrepo.NewMemoryMeetingRepository(store),
			locker:   locking.NewKeyedMutex(cfg.LockWaitTimeout),
			pingers:  withRedis(cfg, store),
		}
	}
}

func withRedis(cfg *config.Config, primary db.Pinger) []db.Pinger {
	pingers := []db.Pinger{primary}
	if cfg.Client != nil && cfg.Client.Redis != nil {
		rdb := cfg.Client.Redis
		pingers = append(pingers, db.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}
	return pingers
}

func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Failed to load Kafka configuration", "error", err)
	}
	if !kafkaCfg.Enabled() {
		cfg.Log.Info("No Kafka brokers configured, domain events are not published")
		return events.Noop{}, func() {}
	}
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.KafkaEventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	metrics := &kafka_middleware.PublishMetrics{}
	producer.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	return events.NewKafkaPublisher(producer, ServiceName), func() {
		cfg.Log.Info("Kafka publish stats", metrics.Snapshot().LogAttrs()...)
		if err := producer.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka producer", "error", err)
		}
	}
}

func initHandlers(cfg *config.Config, repos *repositories, publisher events.Publisher) []contracts.Handler {
	userService := userservice.NewUserService(
		repos.users,
		uservalidator.NewUserValidator(cfg.Log),
		cfg,
	)

	slotService := slotservice.NewSlotService(
		repos.slots,
		repos.users,
		slotvalidator.NewSlotValidator(cfg.Log, cfg.MinSlotDurationMin, cfg.MaxSlotDurationMin),
		repos.locker,
		publisher,
		cfg,
	)

	meetingService := meetingservice.NewMeetingService(
		repos.meetings,
		repos.slots,
		repos.users,
		meetingvalidator.NewMeetingValidator(cfg.Log),
		repos.locker,
		publisher,
		cfg,
	)

	cfg.Log.Info("Services initialized", "storage_backend", cfg.StorageBackend)

	return []contracts.Handler{
		userhandler.NewUserHandler(userService, cfg.Log),
		slothandler.NewSlotHandler(slotService, cfg.Log),
		meetinghandler.NewMeetingHandler(meetingService, cfg.Log),
	}
}
