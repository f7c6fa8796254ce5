package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"studygroups-service/internal/blob"
	"studygroups-service/internal/broker"
	"studygroups-service/internal/config"
	"studygroups-service/internal/db"
	"studygroups-service/internal/handlers"
	"studygroups-service/internal/middleware"
	"studygroups-service/internal/observability"
	"studygroups-service/internal/polls"
	"studygroups-service/internal/rabbitmq"
	"studygroups-service/internal/registry"
	"studygroups-service/internal/store"
	"studygroups-service/internal/telemetry"
	"studygroups-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "studygroups-service", cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	// Backend selection is a deployment-time decision: a connection string
	// selects Postgres, otherwise the single-file fallback serves both the
	// persistence and the blob port.
	var (
		dataStore store.Store
		fileStore *store.FileStore
	)
	if cfg.UsePostgres() {
		database, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to db: %v", err)
		}
		dataStore = store.NewPostgresStore(database)
		log.Println("using postgres store")
	} else {
		fileStore, err = store.NewFileStore(cfg.DataFile)
		if err != nil {
			log.Fatalf("failed to open data file: %v", err)
		}
		dataStore = fileStore
		log.Printf("using local file store (%s)", cfg.DataFile)
	}

	var blobStorage blob.Storage
	if cfg.UseS3() {
		blobStorage, err = blob.NewS3Storage(ctx, blob.S3Options{
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatalf("failed to connect to object store: %v", err)
		}
		log.Println("using s3 blob storage")
	} else {
		if fileStore == nil {
			fileStore, err = store.NewFileStore(cfg.DataFile)
			if err != nil {
				log.Fatalf("failed to open data file: %v", err)
			}
		}
		blobStorage = blob.NewLocalStorage(fileStore)
		log.Println("using local blob storage")
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.studygroups", "studygroups-service", cfg.Environment)
	observability.SetEventPublisher(publisher)

	groupRegistry := registry.New(dataStore, cfg.StorageTimeout)
	hub := broker.NewHub(dataStore, groupRegistry, cfg.StorageTimeout)
	groupRegistry.SetNotifier(hub)
	pollEngine := polls.NewEngine(dataStore, hub, cfg.StorageTimeout)

	groupHandler := handlers.NewGroupHandler(groupRegistry, dataStore, hub, audit)
	fileHandler := handlers.NewFileHandler(blobStorage, cfg.UploadTimeout, audit)
	wsHandler := ws.NewHandler(hub, pollEngine)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("studygroups-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	identity := middleware.IdentityMiddleware()

	router.GET("/api/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/api/groups", identity, groupHandler.ListGroups)
	router.POST("/api/groups", identity, groupHandler.CreateGroup)
	router.POST("/api/groups/join", identity, groupHandler.JoinGroup)
	router.POST("/api/groups/:group_id/leave", identity, groupHandler.LeaveGroup)
	router.DELETE("/api/groups/:group_id", identity, groupHandler.DeleteGroup)
	router.GET("/api/groups/:group_id/messages", identity, groupHandler.GetGroupMessages)
	router.POST("/api/groups/:group_id/messages/:message_id/pin", identity, groupHandler.TogglePin)

	router.POST("/api/upload", identity, fileHandler.Upload)
	router.GET("/api/files/:file_id", fileHandler.GetFile)

	router.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
