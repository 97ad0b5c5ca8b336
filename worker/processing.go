package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"caoba.org/botcheck/pipeline"
	"caoba.org/botcheck/tasks"
	"caoba.org/botcheck/utils"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

const senderName = "botcheck"

type Message struct {
	WorkType string `json:"work_type"`
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
}

type Task struct {
	delivery     *amqp.Delivery
	analysisTask *tasks.AnalysisTask
	message      *Message
	redisKey     string
	bcLogger     *zerolog.Logger
}

func (worker *Worker) processMessage(rmqConn rmqTransactions, delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.bcLogger.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.bcLogger.Err(err).
			Str("message_id", delivery.MessageId).
			Str("body", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		rmqConn.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(task); err != nil {
		rmqConn.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = rmqConn.notifyResults(task, *task.message); err != nil {
		task.bcLogger.Err(err).Msg("Got error while sending message to results queue")
		rmqConn.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = rmqConn.acknowledgeDelivery(delivery); err != nil {
		task.bcLogger.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.bcLogger.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	if err := json.Unmarshal(delivery.Body, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	analysisTask, err := worker.redis.getAnalysisTask(message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis task for message, got error %w", err)
	}
	taskLogger := worker.bcLogger.With().
		Str("tid", message.RedisKey).
		Str("user_id", analysisTask.UserID).
		Logger()
	return &Task{
		delivery:     delivery,
		analysisTask: analysisTask,
		redisKey:     message.RedisKey,
		message:      &message,
		bcLogger:     &taskLogger,
	}, nil
}

func (worker *Worker) processTask(task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(task)
	if err != nil {
		task.bcLogger.Err(err).
			Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.redis.onTaskStarted(task); err != nil {
		task.bcLogger.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update task info: %w", err)
	}
	if err = worker.runPipeline(task); err != nil {
		task.bcLogger.Err(err).Msg("Got error while running pipeline")
		return worker.redis.onTaskFailedWithError(task, err)
	}
	task.bcLogger.Info().Msg("Saved results, marking task as complete")
	if err = worker.redis.onTaskComplete(task); err != nil {
		task.bcLogger.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	return nil
}

func (worker *Worker) runPipeline(task *Task) (err error) {
	defer utils.RecoverWithError(&err)
	task.bcLogger.Info().Msgf("Processing message from RMQ, attempt # %d", task.analysisTask.Info.Attempts)
	data, err := worker.s3.getText(task)
	if err != nil {
		task.bcLogger.Err(err).Caller().Msg("Could not fetch text from s3")
		return fmt.Errorf("failed fetch data from s3: %w", err)
	}
	request := pipeline.Request{
		Tid:  task.redisKey,
		Text: string(data),
	}
	result, ok := <-worker.ppln(request)
	if !ok {
		task.bcLogger.Error().Msg("Pipeline channel was closed before returning anything")
		return errors.New("pipeline channel was closed before returning anything")
	}
	task.bcLogger.Info().Msg("Finished pipeline, saving results to s3")
	if err = worker.s3.saveResultsFile(task, result); err != nil {
		task.bcLogger.Err(err).Msg("Got error while trying to save results")
		return err
	}
	return nil
}

func (worker *Worker) shouldPerformTask(task *Task) (bool, error) {
	taskInfo := task.analysisTask.Info
	taskLogger := task.bcLogger

	if taskInfo.Status.Complete() {
		taskLogger.Info().Msg("Task is already done (might indicate issue acking message with RMQ). Notifying results queue.")
		return false, nil
	}
	if task.analysisTask.BatchID != "" {
		batch, err := worker.redis.getBatchTask(task)
		if err != nil {
			taskLogger.Err(err).Msg("Failed to query batch of analysis task")
			return false, err
		}
		if batch.UserCanceled {
			taskLogger.Info().Msg("Batch was canceled, no need to perform this task. Notifying results queue.")
			return false, worker.redis.onTaskCancelled(task)
		}
		if batch.StopOnFailure && len(batch.FailedTasks) > 0 {
			failedTask := batch.FailedTasks[0]
			taskLogger.Info().Msgf("Task is not required because %q already failed in this batch. Notifying results queue.", failedTask)
			return false, worker.redis.onTaskCancelled(
				task,
				fmt.Sprintf(
					"Task was marked as %q because task %q of the same batch has failed.",
					tasks.TaskStatusCanceled,
					failedTask,
				),
			)
		}
	}
	if taskInfo.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Analysis task has exceeded retries. Notifying results queue.")
		return false, worker.redis.onTaskExceededRetries(task, worker.config.TaskMaxRetries)
	}
	return true, nil
}
