// Package publisher handles publishing discovery events to RabbitMQ.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/streamscan/stream-scanner/internal/scanner"
)

// Publisher sends CloudEvents to RabbitMQ.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.SugaredLogger
}

// CloudEvent represents the CloudEvents 1.0 specification structure.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	Type            string      `json:"type"`
	Source          string      `json:"source"`
	ID              string      `json:"id"`
	Time            string      `json:"time"`
	DataContentType string      `json:"datacontenttype"`
	Data            interface{} `json:"data"`
}

// StreamDiscoveredData represents data for a discovered stream event.
type StreamDiscoveredData struct {
	StreamID   string `json:"stream_id"`
	URL        string `json:"url"`
	Protocol   string `json:"protocol"`
	Resolution string `json:"resolution,omitempty"`
	VideoCodec string `json:"video_codec,omitempty"`
	AudioCodec string `json:"audio_codec,omitempty"`
}

// ScanFinishedData represents data for a scan lifecycle event.
type ScanFinishedData struct {
	ScanID  string `json:"scan_id"`
	Status  string `json:"status"`
	Valid   int    `json:"valid"`
	Invalid int    `json:"invalid"`
}

// New creates a new Publisher connected to RabbitMQ.
func New(url, exchange string, logger *zap.SugaredLogger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// Close closes the RabbitMQ connection.
func (p *Publisher) Close() error {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishStreamDiscovered publishes a validated stream as a discovery event.
func (p *Publisher) PublishStreamDiscovered(result scanner.ValidationResult) error {
	data := StreamDiscoveredData{
		StreamID:   uuid.NewString(),
		URL:        result.URL,
		Protocol:   result.Protocol,
		Resolution: result.Resolution,
		VideoCodec: result.VideoCodec,
		AudioCodec: result.AudioCodec,
	}
	event := p.createEvent("streams.stream.discovered", data)
	return p.publish(event, "discovered.stream")
}

// PublishScanFinished publishes a scan lifecycle event.
func (p *Publisher) PublishScanFinished(snapshot scanner.SessionSnapshot) error {
	data := ScanFinishedData{
		ScanID:  snapshot.ID,
		Status:  string(snapshot.Status),
		Valid:   snapshot.Valid,
		Invalid: snapshot.Invalid,
	}
	event := p.createEvent("streams.scan.finished", data)
	return p.publish(event, "scan.finished")
}

func (p *Publisher) createEvent(eventType string, data interface{}) CloudEvent {
	return CloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          "/stream-scanner",
		ID:              uuid.New().String(),
		Time:            time.Now().UTC().Format(time.RFC3339),
		DataContentType: "application/json",
		Data:            data,
	}
}

func (p *Publisher) publish(event CloudEvent, routingKey string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType: "application/cloudevents+json",
			Body:        body,
			MessageId:   event.ID,
			Timestamp:   time.Now(),
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debugw("Event published",
		"type", event.Type,
		"id", event.ID,
		"routing_key", routingKey,
	)

	return nil
}
