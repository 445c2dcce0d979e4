package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConfig 描述告警队列的连接参数。
type RabbitMQConfig struct {
	URL     string
	Queue   string
	Durable bool
}

// RabbitMQNotifier 将告警事件发布到 RabbitMQ 队列,
// 供外部的值班系统消费。
type RabbitMQNotifier struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
}

// NewRabbitMQNotifier 建立连接并声明告警队列。
func NewRabbitMQNotifier(cfg RabbitMQConfig) (*RabbitMQNotifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("未配置 RabbitMQ 连接地址")
	}
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		queue = "mintrelay.alerts"
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("打开 RabbitMQ 通道失败: %w", err)
	}

	if _, err := channel.QueueDeclare(queue, cfg.Durable, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("声明告警队列失败: %w", err)
	}

	return &RabbitMQNotifier{conn: conn, channel: channel, queue: queue}, nil
}

// Notify 将事件序列化后发布到队列。
func (n *RabbitMQNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化告警事件失败: %w", err)
	}

	err = n.channel.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
		Timestamp:   event.At,
	})
	if err != nil {
		return fmt.Errorf("发布告警事件失败: %w", err)
	}
	return nil
}

// Close 关闭通道与连接。
func (n *RabbitMQNotifier) Close() error {
	var errs []error
	if err := n.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("关闭 RabbitMQ 通道失败: %w", err))
	}
	if err := n.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("关闭 RabbitMQ 连接失败: %w", err))
	}
	return errors.Join(errs...)
}

var _ Notifier = (*RabbitMQNotifier)(nil)
