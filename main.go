package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorbook/config"
	"tutorbook/cron"
	"tutorbook/database"
	"tutorbook/database/memstore"
	bookingRepo "tutorbook/database/repository/booking"
	paymentRepo "tutorbook/database/repository/payment"
	timeslotRepo "tutorbook/database/repository/timeslot"
	userRepo "tutorbook/database/repository/user"
	"tutorbook/handlers"
	"tutorbook/middleware"
	"tutorbook/routes"
	"tutorbook/services/cancellation"
	"tutorbook/services/checkout"
	"tutorbook/services/hold"
	"tutorbook/services/notification"
	"tutorbook/services/payment"
	"tutorbook/services/settlement"
	"tutorbook/services/sweeper"
	"tutorbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type stores struct {
	slots    timeslotRepo.SlotRepository
	bookings bookingRepo.BookingRepository
	payments paymentRepo.PaymentRepository
	profiles userRepo.UserRepository
	mongo    *mongo.Client
}

type indexer interface {
	EnsureIndexes(ctx context.Context) error
}

func openStores(logger *zap.Logger) stores {
	if config.AppConfig.StoreDriver == "memory" {
		logger.Warn("main: using the in-memory store, data is lost on restart")
		return stores{
			slots:    memstore.NewSlotStore(),
			bookings: memstore.NewBookingStore(),
			payments: memstore.NewPaymentStore(),
			profiles: memstore.NewUserStore(),
		}
	}

	database.InitDB()
	db := database.DB()
	s := stores{
		slots:    timeslotRepo.NewMongoTimeSlotRepo(db),
		bookings: bookingRepo.NewMongoBookingRepo(db),
		payments: paymentRepo.NewMongoPaymentRepo(db),
		profiles: userRepo.NewMongoUserRepo(db),
		mongo:    database.MongoClient,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, repo := range []interface{}{s.slots, s.bookings, s.payments} {
		if ix, ok := repo.(indexer); ok {
			if err := ix.EnsureIndexes(ctx); err != nil {
				logger.Sugar().Fatalf("main: failed to create indexes: %v", err)
			}
		}
	}
	return s
}

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()

	if config.AppConfig.JWTSecret == "" {
		logger.Fatal("main: JWT_SECRET is required")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	st := openStores(logger)

	if err := utils.InitQueueRedis(); err != nil {
		logger.Warn("main: queue redis unavailable at startup", zap.Error(err))
	}
	utils.StartHealthMonitor(ctx, utils.QueueRedisClient, st.mongo, 30*time.Second)

	var push notification.Pusher
	fcm, err := utils.FirebaseInit(ctx, config.AppConfig.FirebaseCredentialsFile)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize firebase: %v", err)
	}
	if fcm != nil {
		push = fcm
	} else {
		logger.Warn("main: no firebase credentials, confirmations are logged only")
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	gateway := payment.NewStripeGateway(payment.StripeConfig{
		SecretKey:     config.AppConfig.StripeSecretKey,
		WebhookSecret: config.AppConfig.StripeWebhookSecret,
		SuccessURL:    config.AppConfig.CheckoutSuccessURL,
		CancelURL:     config.AppConfig.CheckoutCancelURL,
	}, logger)

	// services.
	holds := hold.NewManager(st.slots, config.AppConfig.HoldTTL, logger)
	initiator := checkout.NewInitiator(st.bookings, st.profiles, holds, gateway, checkout.Pricing{
		Tiers:    checkout.PriceTable(config.AppConfig.PriceTiers),
		Currency: config.AppConfig.Currency,
	}, logger)
	settler := settlement.NewHandler(st.slots, st.bookings, st.payments, gateway,
		notification.NewAsynqQueue(asynqClient, logger), logger)
	canceller := cancellation.NewHandler(st.bookings, st.slots, st.payments, gateway,
		config.AppConfig.CancellationWindow, logger)
	sweep := sweeper.New(st.slots, st.bookings, config.AppConfig.SweepHorizon, logger)
	sender := notification.NewSender(st.profiles, push, logger)

	worker, err := cron.StartWorker(redisOpt, config.AppConfig.WorkerConcurrency,
		cron.Jobs{Confirmations: sender, Maintenance: sweep},
		cron.Schedule{
			SweepInterval:     config.AppConfig.SweepInterval,
			ReconcileInterval: config.AppConfig.ReconcileInterval,
		}, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to start worker: %v", err)
	}

	hb := handlers.NewHandlerBundle(
		handlers.NewBookingHandler(holds, initiator, canceller),
		handlers.NewWebhookHandler(settler),
	)

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))
	routes.RegisterRoutes(router, hb)

	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              "0.0.0.0:" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	worker.Shutdown()
	if st.mongo != nil {
		_ = st.mongo.Disconnect(shutdownCtx)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
