package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"messaging_service/internal/chat/app"
	"messaging_service/internal/chat/repository"
	"messaging_service/internal/chat/router"
	"messaging_service/pkg/config"
	"messaging_service/pkg/database"
	"messaging_service/pkg/logger"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceLogPath)
	cfg := config.LoadConfig[config.Messaging](config.EnvConfig.MessagingService, config.EnvConfig.MessagingServiceYAMLPath)

	// 2. 建立 Mongo 連線 (存 conversation/message/watermark)
	ctx := context.Background()
	uri := fmt.Sprintf("mongodb://%s:%s@%s:%d", cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
	mongo, err := database.NewMongoDB(ctx,
		database.Connection{
			ConnectStr:    uri,
			RetryCount:    cfg.MongoSQL.RetryCount,
			RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval),
		},
		cfg.MongoSQL.Database)
	if err != nil {
		logger.Log.Fatal(
			"Unable to connect to mongoDB database after retries",
			zap.String("address", fmt.Sprintf("[%s]", uri)),
			zap.Error(err),
		)
	}
	defer mongo.Close(ctx)

	// 3. 建立 Redis 連線 (Pub/Sub fan-out)
	masterName, sentinel := config.GetRedisSetting()
	redisClient, err := database.NewRedisClient(masterName, sentinel, cfg.Redis.RedisDB)
	if err != nil {
		logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
	}

	// 4. 建立 Kafka Writer (event archive), 連不上不擋啟動
	var archive repository.EventArchive
	writer, err := database.NewKafkaWriterWithRetry(database.KafkaConnection{
		Brokers:       cfg.Kafka.Brokers,
		Topic:         cfg.Kafka.Topic,
		RetryCount:    cfg.Kafka.RetryCount,
		RetryInterval: time.Duration(cfg.Kafka.RetryInterval),
	})
	if err != nil {
		logger.Log.Error(fmt.Sprintf("connect kafka err : %v, event archive disabled", err))
	} else {
		defer writer.Close()
		archive = repository.NewKafkaEventArchive(writer)
	}

	// 5. 初始化 Repository
	convRepo := repository.NewMongoConversationRepository(mongo.Database)
	msgRepo := repository.NewMongoChatMessageRepository(mongo.Database)
	wmRepo := repository.NewMongoWatermarkRepository(mongo.Database)
	pub := repository.NewRedisPubSub(redisClient)

	if err := convRepo.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure conversation indexes err : %v", err)
	}

	// 6. 初始化 UseCases
	fanout := app.NewFanoutPublisher(pub, archive)
	registry := app.NewSubscriptionRegistry()
	convUC := app.NewConversationUseCase(convRepo, msgRepo, fanout)
	msgUC := app.NewMessageUseCase(convRepo, msgRepo, wmRepo, fanout)

	// 7. 啟動 Fiber
	r := fiber.New()
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.MessagingServiceLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(r,
		app.NewChatHandler(convUC, msgUC),
		app.NewChatWebsocketHandler(convUC, msgUC, fanout, pub, registry),
	)

	// Listen
	port := ":" + cfg.Port
	log.Printf("Messaging Service listening on %s", port)
	if err := r.Listen(port); err != nil {
		log.Fatalf("Failed to start Fiber: %v", err)
	}
}
