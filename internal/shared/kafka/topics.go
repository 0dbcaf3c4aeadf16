package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EnsureTopics cria os tópicos de jobs via controller do cluster (ambiente local/dev).
// Tópico já existente não é erro.
func EnsureTopics(ctx context.Context, brokers string, topics []string, log *zap.Logger) error {
	list := Brokers(brokers)
	if len(list) == 0 {
		return fmt.Errorf("kafka brokers not provided")
	}

	conn, err := kafka.DialContext(ctx, "tcp", list[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}

	cconn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	for _, t := range topics {
		// partição única, compatível com single-broker
		cfg := kafka.TopicConfig{Topic: t, NumPartitions: 1, ReplicationFactor: 1}
		if err := cconn.CreateTopics(cfg); err != nil && !strings.Contains(err.Error(), "already exists") {
			log.Warn("failed to create kafka topic", zap.String("topic", t), zap.Error(err))
			continue
		}
		log.Info("kafka topic ready", zap.String("topic", t))
	}
	return nil
}

// DevEnv indica os ambientes em que os tópicos são criados na subida
func DevEnv(env string) bool { return env == "local" || env == "dev" }
