package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Dhoini/newsletter-billing/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// TopicDefinition описание топика для создания
type TopicDefinition struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// DefaultTopics топики, в которые пишет сервис
func DefaultTopics(topic string) []TopicDefinition {
	return []TopicDefinition{{Name: topic, Partitions: 3, ReplicationFactor: 1}}
}

// EnsureKafkaTopics создает недостающие топики через контроллер кластера.
func EnsureKafkaTopics(ctx context.Context, brokers []string, topics []TopicDefinition, log *logger.Logger) error {
	if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
		return errors.New("kafka broker address is empty")
	}
	if err := validateBroker(brokers[0]); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := kafkaGo.DialContext(dialCtx, "tcp", strings.TrimSpace(brokers[0]))
	if err != nil {
		log.Errorw("Failed to connect to Kafka broker", "broker", brokers[0], "error", err)
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	controllerConn, err := kafkaGo.DialContext(dialCtx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer controllerConn.Close()

	partitions, err := controllerConn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}
	existing := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	missing := missingTopics(topics, existing)
	if len(missing) == 0 {
		log.Infow("All required Kafka topics already exist")
		return nil
	}

	if err := controllerConn.CreateTopics(missing...); err != nil {
		if errors.Is(err, kafkaGo.TopicAlreadyExists) {
			log.Warnw("Topic already existed during creation", "topics", topicNames(missing))
			return nil
		}
		log.Errorw("Failed to create Kafka topics", "error", err, "topics", topicNames(missing))
		return fmt.Errorf("kafka create topics failed: %w", err)
	}

	log.Infow("Created Kafka topics", "topics", topicNames(missing))
	return nil
}

func validateBroker(addr string) error {
	_, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return fmt.Errorf("invalid broker address %s: %w", addr, err)
	}
	if _, err := strconv.Atoi(portStr); err != nil {
		return fmt.Errorf("invalid broker port %s: %w", addr, err)
	}
	return nil
}

func missingTopics(topics []TopicDefinition, existing map[string]bool) []kafkaGo.TopicConfig {
	var out []kafkaGo.TopicConfig
	for _, t := range topics {
		if existing[t.Name] {
			continue
		}
		out = append(out, kafkaGo.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.Partitions,
			ReplicationFactor: t.ReplicationFactor,
		})
	}
	return out
}

func topicNames(configs []kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(configs))
	for _, c := range configs {
		names = append(names, c.Topic)
	}
	return names
}
