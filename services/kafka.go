package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"enrollment-module/config"
	"enrollment-module/logger"

	"github.com/segmentio/kafka-go"
)

// Kafka topics the checkout workflow publishes to.
const (
	TopicPayments    = "payments"
	TopicEnrollments = "enrollments"
)

var (
	producer      *kafka.Writer
	producerMutex sync.Mutex
	isConnected   bool
)

// InitProducer initializes a Kafka writer using brokers from the config
func InitProducer() {
	producerMutex.Lock()
	defer producerMutex.Unlock()

	if config.AppConfig.KafkaBrokers == "" {
		logger.Info("Kafka is disabled (KAFKA_BROKERS is empty)")
		return
	}

	brokers := strings.Split(config.AppConfig.KafkaBrokers, ",")

	// Validate brokers
	var validBrokers []string
	for _, b := range brokers {
		if b := strings.TrimSpace(b); b != "" {
			validBrokers = append(validBrokers, b)
		}
	}

	if len(validBrokers) == 0 {
		logger.Warn("No valid Kafka brokers configured")
		return
	}

	producer = &kafka.Writer{
		Addr:         kafka.TCP(validBrokers...),
		Balancer:     &kafka.LeastBytes{},
		Async:        false,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}

	logger.Info("Kafka producer initialized. Brokers=%v", validBrokers)
	isConnected = true
}

// Publish marshals value to JSON and publishes to the given topic with key.
// Best-effort with exponential backoff retry logic (3 attempts); a disabled
// producer is not an error.
func Publish(topic, key string, value interface{}) error {
	producerMutex.Lock()
	defer producerMutex.Unlock()

	// The broker list is read from config only in InitProducer; a nil
	// producer means Kafka is disabled or was never initialized.
	if producer == nil {
		logger.Warn("Kafka producer not initialized, skipping publish to topic: %s", topic)
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		logger.Error("Error marshaling Kafka message: %v", err)
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
	}

	// Retry with exponential backoff
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := producer.WriteMessages(ctx, msg)
		cancel()

		if err == nil {
			isConnected = true
			return nil
		}

		lastErr = err
		if attempt < 2 {
			backoffTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
			logger.Warn("Kafka publish attempt %d/%d failed, retrying in %v: %v", attempt+1, 3, backoffTime, err)
			time.Sleep(backoffTime)
		} else {
			logger.Error("Kafka publish failed after 3 attempts: %v", err)
		}
		isConnected = false
	}

	return lastErr
}

// IsConnected returns true if Kafka producer is connected and ready
func IsConnected() bool {
	producerMutex.Lock()
	defer producerMutex.Unlock()
	return isConnected && producer != nil
}

// Close gracefully closes the Kafka producer
func Close() error {
	producerMutex.Lock()
	defer producerMutex.Unlock()

	if producer != nil {
		return producer.Close()
	}
	return nil
}

// publishEvent publishes asynchronously; domain flows never block on Kafka.
func publishEvent(topic, key string, evt map[string]interface{}) {
	go func() {
		if err := Publish(topic, key, evt); err != nil {
			logger.Warn("failed to publish %v event: %v", evt["event"], err)
		}
	}()
}

// PublishPaymentInitiated publishes payment.initiated after order creation.
func PublishPaymentInitiated(studentID int, orderID string, amount float64, currency, batchType string) {
	publishEvent(TopicPayments, fmt.Sprintf("student-%d", studentID), map[string]interface{}{
		"event":      "payment.initiated",
		"student_id": studentID,
		"order_id":   orderID,
		"amount":     amount,
		"currency":   currency,
		"batch_type": batchType,
		"status":     "pending",
		"ts":         time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishPaymentVerified publishes payment.verified after confirmation.
func PublishPaymentVerified(studentID int, orderID, paymentID, source string) {
	publishEvent(TopicPayments, fmt.Sprintf("student-%d", studentID), map[string]interface{}{
		"event":      "payment.verified",
		"student_id": studentID,
		"order_id":   orderID,
		"payment_id": paymentID,
		"source":     source,
		"status":     "paid",
		"ts":         time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishPaymentFailed publishes payment.failed.
func PublishPaymentFailed(studentID int, orderID, paymentID, reason string) {
	publishEvent(TopicPayments, fmt.Sprintf("student-%d", studentID), map[string]interface{}{
		"event":      "payment.failed",
		"student_id": studentID,
		"order_id":   orderID,
		"payment_id": paymentID,
		"reason":     reason,
		"ts":         time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishEnrollmentConfirmed publishes enrollment.confirmed once a seat is held.
func PublishEnrollmentConfirmed(enrollmentID, studentID, batchID int) {
	publishEvent(TopicEnrollments, fmt.Sprintf("enrollment-%d", enrollmentID), map[string]interface{}{
		"event":         "enrollment.confirmed",
		"enrollment_id": enrollmentID,
		"student_id":    studentID,
		"batch_id":      batchID,
		"ts":            time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishEnrollmentOverbooked publishes the alertable paid-but-unseated event.
func PublishEnrollmentOverbooked(enrollmentID, studentID, courseID int, orderID string, amount float64) {
	publishEvent(TopicEnrollments, fmt.Sprintf("enrollment-%d", enrollmentID), map[string]interface{}{
		"event":         "enrollment.overbooked",
		"enrollment_id": enrollmentID,
		"student_id":    studentID,
		"course_id":     courseID,
		"order_id":      orderID,
		"amount":        amount,
		"refund_owed":   true,
		"ts":            time.Now().UTC().Format(time.RFC3339),
	})
}

// PublishEnrollmentExpired publishes enrollment.expired for swept checkouts.
func PublishEnrollmentExpired(enrollmentID, studentID int, orderID string) {
	publishEvent(TopicEnrollments, fmt.Sprintf("enrollment-%d", enrollmentID), map[string]interface{}{
		"event":         "enrollment.expired",
		"enrollment_id": enrollmentID,
		"student_id":    studentID,
		"order_id":      orderID,
		"ts":            time.Now().UTC().Format(time.RFC3339),
	})
}
