package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"liveinsights-client/pkg/assist"
	"liveinsights-client/pkg/audio"
	"liveinsights-client/pkg/client"
	"liveinsights-client/pkg/config"
	"liveinsights-client/pkg/insight"
	"liveinsights-client/pkg/messaging"
	"liveinsights-client/pkg/metrics"
	"liveinsights-client/pkg/store"
)

var logger *logrus.Logger

func main() {
	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339,
	})

	cfg, err := config.LoadConfig(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	if cfg.HTTPEnableMetrics {
		metrics.Init(logger)
		startMetricsServer(cfg.HTTPPort)
	}

	c := client.NewClient(&client.ClientConfig{
		URL:       cfg.BackendWSURL,
		APIToken:  cfg.APIToken,
		ProjectID: cfg.ProjectID,
	}, logger)

	attachPrinter(c)

	if cfg.AMQPUrl != "" {
		publisher := messaging.NewPublisher(&messaging.PublisherConfig{
			URL:         cfg.AMQPUrl,
			Exchange:    cfg.AMQPExchange,
			RoutingKey:  cfg.AMQPRoutingKey,
			QueueSize:   1000,
			DialTimeout: 5 * time.Second,
		}, logger)
		if err := publisher.Start(); err != nil {
			logger.WithError(err).Warn("AMQP publisher unavailable, continuing without it")
		} else {
			if err := publisher.Attach(c); err != nil {
				logger.WithError(err).Warn("Failed to attach AMQP publisher")
			}
			defer publisher.Stop()
		}
	}

	if cfg.SQLitePath != "" {
		db, err := store.Open(cfg.SQLitePath, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open session store")
		}
		defer db.Close()
		if err := db.Attach(c); err != nil {
			logger.WithError(err).Fatal("Failed to attach session store")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = c.Connect(ctx)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to live insights backend")
	}

	if cfg.AudioFile != "" {
		go streamAudioFile(c, cfg)
	}

	waitForShutdown()

	if err := c.Close(); err != nil {
		logger.WithError(err).Error("Error closing client")
	}
	logger.Info("Shutdown complete")
}

func startMetricsServer(port int) {
	mux := http.NewServeMux()
	metrics.RegisterHandler(mux)

	go func() {
		addr := fmt.Sprintf(":%d", port)
		logger.WithField("addr", addr).Info("Metrics server listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()
}

// attachPrinter subscribes to every channel and logs what arrives. This is
// the reference consumer; UI layers subscribe the same way.
func attachPrinter(c *client.Client) {
	connState, _ := c.ConnectionState().Subscribe("printer", 8)
	status, _ := c.SessionStatus().Subscribe("printer", 8)
	transcripts, _ := c.Transcripts().Subscribe("printer", 256)
	insights, _ := c.Insights().Subscribe("printer", 64)
	assistance, _ := c.Assistance().Subscribe("printer", 64)
	sessionMetrics, _ := c.Metrics().Subscribe("printer", 16)
	errs, _ := c.Errors().Subscribe("printer", 64)

	go func() {
		for connState != nil || status != nil || transcripts != nil || insights != nil ||
			assistance != nil || sessionMetrics != nil || errs != nil {
			select {
			case up, ok := <-connState:
				if !ok {
					connState = nil
					continue
				}
				logger.WithField("connected", up).Info("Connection state changed")

			case st, ok := <-status:
				if !ok {
					status = nil
					continue
				}
				logger.WithFields(logrus.Fields{
					"status":     st,
					"session_id": c.Session().SessionID(),
				}).Info("Session state changed")

			case chunk, ok := <-transcripts:
				if !ok {
					transcripts = nil
					continue
				}
				logger.WithFields(logrus.Fields{
					"chunk_index": chunk.ChunkIndex,
					"speaker":     chunk.Speaker,
				}).Info(chunk.Text)

			case result, ok := <-insights:
				if !ok {
					insights = nil
					continue
				}
				printInsights(result)

			case batch, ok := <-assistance:
				if !ok {
					assistance = nil
					continue
				}
				printAssistance(batch)

			case sm, ok := <-sessionMetrics:
				if !ok {
					sessionMetrics = nil
					continue
				}
				logger.WithFields(logrus.Fields{
					"duration_seconds": sm.SessionDurationSeconds,
					"chunks_processed": sm.ChunksProcessed,
					"total_insights":   sm.TotalInsights,
				}).Info("Session metrics update")

			case clientErr, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				logger.WithFields(logrus.Fields{
					"stage":   clientErr.Stage,
					"message": clientErr.Message,
				}).Warn("Session error")
			}
		}
	}()
}

func printInsights(result insight.ExtractionResult) {
	for _, ins := range result.Insights {
		logger.WithFields(logrus.Fields{
			"insight_id": ins.InsightID,
			"type":       ins.Type,
			"priority":   ins.Priority,
			"confidence": ins.Confidence,
		}).Info(ins.Content)
	}
}

func printAssistance(batch []assist.Assistance) {
	for _, entry := range batch {
		fields := logrus.Fields{
			"kind":       entry.Kind,
			"insight_id": entry.InsightID,
			"confidence": entry.Confidence,
		}
		switch entry.Kind {
		case assist.KindAutoAnswer:
			logger.WithFields(fields).Infof("Q: %s A: %s", entry.AutoAnswer.Question, entry.AutoAnswer.Answer)
		case assist.KindClarification:
			logger.WithFields(fields).Infof("Clarify (%s): %s", entry.Clarification.Vagueness, entry.Clarification.Statement)
		case assist.KindConflict:
			logger.WithFields(fields).Infof("Conflict (%s): %s", entry.Conflict.Severity, entry.Conflict.CurrentStatement)
		}
	}
}

// streamAudioFile replays a raw 16-bit PCM file as timed audio chunks,
// simulating a live capture source, then requests finalization.
func streamAudioFile(c *client.Client, cfg *config.Configuration) {
	f, err := os.Open(cfg.AudioFile)
	if err != nil {
		logger.WithError(err).Error("Failed to open audio file")
		return
	}
	defer f.Close()

	streamer := audio.NewStreamer(audio.StreamConfig{
		SampleRate:    cfg.SampleRate,
		ChunkDuration: cfg.ChunkDuration,
		Speaker:       cfg.Speaker,
	}, logger)

	if err := streamer.Stream(context.Background(), f, c); err != nil {
		logger.WithError(err).Error("Audio streaming stopped")
		return
	}

	logger.Info("Audio file fully streamed, requesting finalization")
	if err := c.EndSession(); err != nil {
		logger.WithError(err).Error("Failed to request session finalization")
	}
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown signal received")
}
