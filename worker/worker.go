package worker

import (
	"context"
	"fmt"
	"sync"

	"caoba.org/botcheck/logger"
	"caoba.org/botcheck/pipeline"
	"caoba.org/botcheck/rmq"
	"caoba.org/botcheck/s3client"
	"caoba.org/botcheck/tasks"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

type Config struct {
	TaskMaxRetries int `envconfig:"BOTCHECK_TASK_MAX_RETRIES" default:"3"`
}

// Worker consumes analysis task messages from RabbitMQ, runs the analysis
// pipeline over the referenced text and stores the profile in S3.
type Worker struct {
	config   Config
	redis    redisTransactions
	s3       s3Transactions
	rmq      rmqTransactions
	rmqMu    sync.RWMutex
	bcLogger *zerolog.Logger
	ppln     pipeline.Pipeline

	refreshRMQ func() error
	inFlight   sync.WaitGroup
}

func New(ppln pipeline.Pipeline) (*Worker, error) {
	bcLogger := logger.NewLogger("Worker")

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		bcLogger.Err(err).Msg("Could not read config")
		return nil, err
	}

	worker := newWorker(config, ppln, &bcLogger)
	worker.refreshRMQ = worker.refreshRMQClient
	if err := worker.refreshRMQClient(); err != nil {
		bcLogger.Err(err).Msg("Could not create RMQ client")
		return nil, err
	}
	if err := worker.refreshS3Client(); err != nil {
		bcLogger.Err(err).Msg("Could not create S3 client")
		worker.Close()
		return nil, err
	}
	if err := worker.refreshRedisClients(); err != nil {
		bcLogger.Err(err).Msg("Could not create Redis client")
		worker.Close()
		return nil, err
	}
	return worker, nil
}

func newWorker(config Config, ppln pipeline.Pipeline, bcLogger *zerolog.Logger) *Worker {
	return &Worker{
		config:   config,
		bcLogger: bcLogger,
		ppln:     ppln,
	}
}

// StartWorker blocks until ctx is done or the RMQ connection cannot be
// recovered. Messages still being processed are awaited before returning.
func (worker *Worker) StartWorker(ctx context.Context) error {
	defer worker.Close()
	defer worker.inFlight.Wait()
	for {
		var rmqErr error
		rmqConn := worker.currentRMQ()
		select {
		case <-ctx.Done():
			worker.bcLogger.Info().Msg("Stopping worker")
			return nil
		case delivery, ok := <-rmqConn.getDeliveriesCh():
			if ok {
				worker.inFlight.Add(1)
				go func() {
					defer worker.inFlight.Done()
					worker.processMessage(rmqConn, &delivery)
				}()
				continue
			}
			rmqErr = fmt.Errorf("rmq deliveries channel has been closed")
		case amqpErr := <-rmqConn.getRespChanErrorsCh():
			if amqpErr == nil {
				continue
			}
			rmqErr = fmt.Errorf("response connection received error: %w", amqpErr)
		case amqpErr := <-rmqConn.getReqChanErrorsCh():
			if amqpErr == nil {
				continue
			}
			rmqErr = fmt.Errorf("request connection received error: %w", amqpErr)
		}
		worker.bcLogger.Err(rmqErr).Msg("Trying to refresh RMQ client")
		if err := worker.refreshRMQ(); err != nil {
			return fmt.Errorf("%v and refresh failed with: %w", rmqErr, err)
		}
	}
}

func (worker *Worker) Close() {
	if worker.redis != nil {
		worker.redis.close()
	}
	if worker.s3 != nil {
		worker.s3.close()
	}
	if rmqConn := worker.currentRMQ(); rmqConn != nil {
		rmqConn.close()
	}
}

// currentRMQ returns the wrapper in use. A refresh may replace it while
// messages received on the previous connection are still being processed.
func (worker *Worker) currentRMQ() rmqTransactions {
	worker.rmqMu.RLock()
	defer worker.rmqMu.RUnlock()
	return worker.rmq
}

func (worker *Worker) setRMQ(rmqConn rmqTransactions) rmqTransactions {
	worker.rmqMu.Lock()
	defer worker.rmqMu.Unlock()
	old := worker.rmq
	worker.rmq = rmqConn
	return old
}

func (worker *Worker) refreshRedisClients() error {
	tasksClient, err := tasks.NewClient()
	if err != nil {
		worker.bcLogger.Err(err).Msg("Failed to refresh Redis client")
		return err
	}
	if oldClient := worker.redis; oldClient != nil {
		oldClient.close()
	}
	worker.redis = &redisClientWrapper{&tasksClient}
	worker.bcLogger.Info().Msg("Refreshed Redis client")
	return nil
}

func (worker *Worker) refreshRMQClient() error {
	rmqClient, err := rmq.NewClient()
	if err != nil {
		worker.bcLogger.Err(err).Msg("Failed to refresh RMQ client")
		return err
	}
	if oldClient := worker.setRMQ(&rmqClientWrapper{rmqClient}); oldClient != nil {
		oldClient.close()
	}
	worker.bcLogger.Info().Msg("Refreshed RMQ client")
	return nil
}

func (worker *Worker) refreshS3Client() error {
	s3Client, err := s3client.New()
	if err != nil {
		worker.bcLogger.Err(err).Msg("Failed to refresh S3 client")
		return err
	}
	if oldClient := worker.s3; oldClient != nil {
		oldClient.close()
	}
	worker.s3 = &s3ClientWrapper{s3Client}
	worker.bcLogger.Info().Msg("Refreshed S3 client")
	return nil
}
