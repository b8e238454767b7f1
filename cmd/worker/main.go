package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iou-concept/kompas/internal/queue"
	"github.com/iou-concept/kompas/internal/storage"
	"github.com/iou-concept/kompas/internal/util"
	"github.com/iou-concept/kompas/pkg/ai"
	oai "github.com/iou-concept/kompas/pkg/ai/ollama"
	gai "github.com/iou-concept/kompas/pkg/ai/openai"
	"github.com/iou-concept/kompas/pkg/extract"
	"github.com/iou-concept/kompas/pkg/graph"
	"github.com/iou-concept/kompas/pkg/leaselock"
	"github.com/iou-concept/kompas/pkg/logger"
	"github.com/iou-concept/kompas/pkg/logger/console"
	graphstore "github.com/iou-concept/kompas/pkg/store/pgx"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug := util.GetEnvBool("DEBUG", false)
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	}))

	s3Client := storage.NewS3Client(ctx)

	aiClient := newAIClient()

	poolCfg, err := graphstore.NewPoolConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Invalid database configuration", "err", err)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	graphStore, err := graphstore.NewGraphDBStoreWithConnection(ctx, pgConn)
	if err != nil {
		logger.Fatal("Unable to create graph store", "err", err)
	}

	var extractor extract.Extractor
	switch util.GetEnvString("EXTRACT_STRATEGY", "rules") {
	case "model":
		extractor = extract.NewModelExtractor(extract.NewModelExtractorParams{
			Client: aiClient,
		})
	default:
		extractor = extract.NewRuleExtractor()
	}

	inferencer := graph.NewInferencer(graph.InferencerConfig{
		Window: int(util.GetEnvNumeric("GRAPH_COOCCURRENCE_WINDOW", 100)),
	})
	pipeline := graph.NewPipeline(graphStore, extractor, inferencer, aiClient, graph.PipelineConfig{
		RefreshEmbeddings: util.GetEnvBool("GRAPH_REFRESH_EMBEDDINGS", true),
	})
	detector := graph.NewDetector(graphStore, graph.DetectorConfig{
		Timeout: time.Duration(util.GetEnvNumeric("DETECT_TIMEOUT_MIN", 2)) * time.Minute,
	})
	locks := leaselock.New(pgConn)

	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// one consumer channel with prefetch=1: one message at a time across
	// all queues
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}
	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			msgs, err := consumerCh.Consume(
				qName,
				fmt.Sprintf("%s_consumer", qName),
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					logger.Info("Stopping consumer", "queue", qName)
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.IngestQueue:
					processingErr = queue.ProcessIngestMessage(ctx, s3Client, pipeline, string(qm.msg.Body))
				case queue.DetectQueue:
					processingErr = queue.ProcessDetectMessage(ctx, locks, detector, string(qm.msg.Body))
				}

				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration_ms", metrics.DurationMs,
				)
				logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}

func newAIClient() ai.GraphAIClient {
	switch util.GetEnv("AI_ADAPTER") {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			ExtractionModel: util.GetEnv("AI_CHAT_EXTRACT_MODEL"),
			EmbeddingModel:  util.GetEnv("AI_EMBED_MODEL"),

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),
		})
	}
}
