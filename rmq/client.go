package rmq

import (
	"fmt"

	"caoba.org/botcheck/logger"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

type Config struct {
	Host                    string `envconfig:"BOTCHECK_RMQ_HOST" required:"true"`
	Port                    string `envconfig:"BOTCHECK_RMQ_PORT" default:"5672"`
	Username                string `envconfig:"BOTCHECK_RMQ_USERNAME" required:"true"`
	Password                string `envconfig:"BOTCHECK_RMQ_PASSWORD" required:"true"`
	Exchange                string `envconfig:"BOTCHECK_RMQ_EXCHANGE" default:"botcheck-default-exchange"`
	MaxParallelRequestCount int    `envconfig:"BOTCHECK_RMQ_MAX_PARALLEL_REQUESTS" default:"5"`
	TaskQueue               string `envconfig:"BOTCHECK_RMQ_TASK_QUEUE" default:"botcheck-analysis-tasks"`
	ResultsQueue            string `envconfig:"BOTCHECK_RMQ_RESULTS_QUEUE" default:"botcheck-analysis-results"`
}

type Client struct {
	Deliveries     <-chan amqp.Delivery
	ReqChanErrors  <-chan *amqp.Error
	RespChanErrors <-chan *amqp.Error
	config         Config
	reqConn        *amqp.Connection
	respConn       *amqp.Connection
	respChannel    *amqp.Channel
	bcLogger       *zerolog.Logger
}

func ReadConfig() (Config, error) {
	var config Config
	err := envconfig.Process("", &config)
	return config, err
}

func NewClient() (*Client, error) {
	bcLogger := logger.NewLogger("RMQ client")
	config, err := ReadConfig()
	if err != nil {
		bcLogger.Error().Err(err).Msg("Could not read env config")
		return nil, err
	}

	url := getURL(config)
	respConn, respChannel, err := setup(url)
	if err != nil {
		return nil, fmt.Errorf("failed connection: %w", err)
	}
	reqConn, reqChannel, err := setup(url)
	if err != nil {
		_ = respConn.Close()
		return nil, fmt.Errorf("failed connection: %w", err)
	}

	if err := declare(reqChannel, config, config.TaskQueue); err != nil {
		return nil, err
	}
	if err := declare(respChannel, config, config.ResultsQueue); err != nil {
		return nil, err
	}
	if err := reqChannel.Qos(config.MaxParallelRequestCount, 0, false); err != nil {
		return nil, fmt.Errorf("qos: %w", err)
	}

	deliveries, err := reqChannel.Consume(
		config.TaskQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("consume deliveries: %w", err)
	}
	reqChanErrors := reqChannel.NotifyClose(make(chan *amqp.Error))
	respChanErrors := respChannel.NotifyClose(make(chan *amqp.Error))

	bcLogger.Info().
		Str("task_queue", config.TaskQueue).
		Str("results_queue", config.ResultsQueue).
		Msg("Connected to RMQ")
	return &Client{
		Deliveries:     deliveries,
		ReqChanErrors:  reqChanErrors,
		RespChanErrors: respChanErrors,
		config:         config,
		reqConn:        reqConn,
		respConn:       respConn,
		respChannel:    respChannel,
		bcLogger:       &bcLogger,
	}, nil
}

// declare makes sure a durable queue exists and is bound to the exchange under its own name.
func declare(ch *amqp.Channel, config Config, queue string) error {
	if err := ch.ExchangeDeclare(
		config.Exchange,
		amqp.ExchangeDirect,
		true,  // durable
		false, // delete when unused
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("exchange %s: %w", config.Exchange, err)
	}
	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, queue, config.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", queue, err)
	}
	return nil
}

func (c *Client) SendResult(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.ResultsQueue,
		false,
		false,
		msg)
}

// SendTask publishes on the task queue; used to submit work.
func (c *Client) SendTask(msg amqp.Publishing) error {
	return c.respChannel.Publish(
		c.config.Exchange,
		c.config.TaskQueue,
		false,
		false,
		msg)
}

func (c *Client) Close() {
	_ = c.reqConn.Close()
	_ = c.respConn.Close()
}

func getURL(config Config) string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s", config.Username, config.Password, config.Host, config.Port)
}

func setup(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}
