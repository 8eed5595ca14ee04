// Package events announces finished campaigns on an AMQP exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

const RoutingKeyCampaignCompleted = "sms.campaign.completed"

// CampaignCompleted is published once per campaign per run.
type CampaignCompleted struct {
	RunID       string    `json:"run_id"`
	CampaignRow int       `json:"campaign_row"`
	Kind        string    `json:"kind"`
	Eligible    int       `json:"eligible"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Status      string    `json:"status"`
	DryRun      bool      `json:"dry_run"`
	CompletedAt time.Time `json:"completed_at"`
}

type Publisher interface {
	PublishCampaignCompleted(ctx context.Context, ev CampaignCompleted) error
}

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	ch       Channel
	exchange string
	conn     *amqp.Connection
}

// DialAMQP connects to url and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	p, err := NewAMQPPublisher(ch, exchange)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

func NewAMQPPublisher(ch Channel, exchange string) (*AMQPPublisher, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("amqp declare exchange %q: %w", exchange, err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) PublishCampaignCompleted(ctx context.Context, ev CampaignCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.ch.Publish(p.exchange, RoutingKeyCampaignCompleted, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.CompletedAt,
		MessageId:    fmt.Sprintf("%s:%d", ev.RunID, ev.CampaignRow),
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
