package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"slotrecycler/bus/digitrax"
	"slotrecycler/config"
	"slotrecycler/engine"
	"slotrecycler/loconet"
	"slotrecycler/messaging"
	"slotrecycler/metrics"
	"slotrecycler/slotstate"
	"slotrecycler/store"
	"slotrecycler/www"
)

var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "slotrecycler.yaml", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Println("slotrecycler", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if closeLog := setupLogging(cfg.Log); closeLog != nil {
		defer closeLog()
	}

	// Database
	db, err := store.Open(&cfg.Database)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	log.Printf("slotrecycler: database open (%s)", cfg.Database.Driver)

	// Redis slot-state mirror
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	var mirror engine.SlotMirror
	redisStore := slotstate.NewRedisStore(redisClient)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisStore.Ping(ctx); err != nil {
		log.Printf("slotrecycler: redis not available (%v), running without slot mirror", err)
	} else {
		if err := redisStore.FlushAll(ctx); err != nil {
			log.Printf("slotrecycler: redis flush: %v", err)
		}
		mirror = redisStore
		log.Printf("slotrecycler: redis connected (%s)", cfg.Redis.Address)
	}
	cancel()

	// LocoNet gateway
	var gw loconet.Gateway
	switch cfg.LocoNet.Transport {
	case "mqtt":
		mq := loconet.NewMQTTGateway(loconet.MQTTConfig{
			Broker:      cfg.LocoNet.MQTT.Broker,
			Port:        cfg.LocoNet.MQTT.Port,
			ClientID:    cfg.LocoNet.MQTT.ClientID,
			TopicPrefix: cfg.LocoNet.MQTT.TopicPrefix,
		})
		if err := mq.Connect(); err != nil {
			log.Printf("slotrecycler: mqtt bridge connect failed (%v)", err)
		}
		defer mq.Close()
		gw = mq
	default:
		gw = loconet.NewClient(cfg.LocoNet.HTTP.BaseURL, cfg.LocoNet.HTTP.Timeout)
	}
	backend := digitrax.New(gw)
	if err := backend.Ping(); err == nil {
		log.Printf("slotrecycler: bus connected (%s)", backend.Name())
	} else {
		log.Printf("slotrecycler: bus not available (%v)", err)
	}

	// Messaging client
	msgClient := messaging.NewClient(&cfg.Messaging)
	publish := false
	if err := msgClient.Connect(); err != nil {
		log.Printf("slotrecycler: messaging connect failed (%v), events will not be published", err)
	} else {
		publish = true
		log.Printf("slotrecycler: messaging connected (kafka)")
	}
	defer msgClient.Close()

	// Engine
	eng := engine.New(engine.Config{
		AppConfig:     cfg,
		ConfigPath:    *configPath,
		DB:            db,
		Bus:           backend,
		SlotState:     mirror,
		Metrics:       metrics.New(),
		PublishEvents: publish,
	})
	eng.Start()
	defer eng.Stop()

	// Outbox drainer
	if publish {
		drainer := messaging.NewOutboxDrainer(db, msgClient, cfg.Messaging.OutboxDrainInterval)
		drainer.Start()
		defer drainer.Stop()
	}

	// Web server
	handler, stopWeb := www.NewRouter(eng)

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		log.Printf("slotrecycler: web server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("slotrecycler: ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Printf("slotrecycler: shutting down...")
	stopWeb()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.Shutdown(shutdownCtx)

	log.Printf("slotrecycler: stopped")
}

// setupLogging points the standard logger at the console, the log file, or
// both. The returned func closes the file.
func setupLogging(lc config.LogConfig) func() {
	var writers []io.Writer
	if lc.Console {
		writers = append(writers, os.Stderr)
	}
	var f *os.File
	if lc.File != "" {
		var err error
		f, err = os.OpenFile(lc.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("slotrecycler: open log file %s: %v", lc.File, err)
		} else {
			writers = append(writers, f)
		}
	}
	switch len(writers) {
	case 0:
		log.SetOutput(io.Discard)
	case 1:
		log.SetOutput(writers[0])
	default:
		log.SetOutput(io.MultiWriter(writers...))
	}
	if f == nil {
		return nil
	}
	return func() { f.Close() }
}
