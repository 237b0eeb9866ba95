// collabd is the collaboration server: it wires persistence, the
// distributed lock, Kafka event dispatch, room routing, presence, and
// authentication together behind a gin HTTP/WebSocket server, the same
// composition root shape as the teacher's collab-service/backend/cmd/
// collab_server/main.go.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"syncdoc/config"
	"syncdoc/internal/authclient"
	"syncdoc/internal/collab"
	"syncdoc/internal/lock"
	"syncdoc/internal/room"
	"syncdoc/internal/store"
	"syncdoc/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("collabd: load config: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("collabd: connect to redis: %v", err)
	}
	defer rdb.Close()

	db, err := gorm.Open(mysql.Open(cfg.Mysql.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("collabd: connect to mysql: %v", err)
	}
	if err := db.AutoMigrate(&store.Document{}, &store.OperationLogEntry{}); err != nil {
		log.Fatalf("collabd: auto-migrate: %v", err)
	}

	var producer sarama.SyncProducer
	if cfg.Kafka.Enabled {
		kcfg := sarama.NewConfig()
		kcfg.Producer.Return.Successes = true
		kcfg.Producer.RequiredAcks = sarama.WaitForLocal
		producer, err = sarama.NewSyncProducer(cfg.Kafka.Brokers, kcfg)
		if err != nil {
			log.Fatalf("collabd: connect to kafka: %v", err)
		}
		defer producer.Close()
	}

	docStore := store.NewGormStore(db)
	lockSvc := lock.NewService(rdb)
	svc := collab.NewService(docStore, lockSvc, producer, cfg.Kafka.Topic)

	router := room.NewRouter()
	presence := room.NewRedisPresence(rdb)

	var verifier authclient.Verifier
	if cfg.Auth.Mode == "remote" {
		verifier = authclient.NewRemoteVerifier(cfg.Auth.RemoteBase)
	} else {
		verifier = authclient.NewLocalVerifierWithSecret(cfg.Auth.JWTSecret)
	}

	manager := ws.NewManager(router, presence, svc, verifier)

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Authorization", "Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	docs := r.Group("/collab")
	docs.GET("/ws", manager.WebSocketConnect)
	docs.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	port := cfg.Running.Port
	if err := r.Run(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("collabd: server stopped: %v", err)
	}
}
