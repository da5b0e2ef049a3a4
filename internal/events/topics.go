package events

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"marketplace/internal/logger"
)

// EnsureTopicsExist creates the service's topics on the cluster if they are
// not there yet. Individual failures are logged and skipped so one bad topic
// does not block the rest.
func EnsureTopicsExist(brokers []string, log *logger.Logger) error {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return err
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return err
	}
	defer controllerConn.Close()

	for _, topic := range Topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			if strings.Contains(err.Error(), "already exists") {
				log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
				continue
			}
			log.Warn("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
			continue
		}
		log.Info("KAFKA", fmt.Sprintf("Created topic: %s", topic))
	}

	// Give the cluster a moment to settle topic metadata.
	time.Sleep(1 * time.Second)
	return nil
}
