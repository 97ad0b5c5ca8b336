package worker

import (
	"fmt"

	"caoba.org/botcheck/tasks"
)

type redisTransactions interface {
	getAnalysisTask(redisKey string) (*tasks.AnalysisTask, error)
	getBatchTask(task *Task) (*tasks.BatchTask, error)
	onTaskStarted(task *Task) error
	onTaskCancelled(task *Task, errorMessages ...string) error
	onTaskExceededRetries(task *Task, maxRetries int) error
	onTaskFailedWithError(task *Task, err error) error
	onTaskComplete(task *Task) error
	close()
}

type redisClientWrapper struct {
	tasksClient *tasks.Client
}

func (wrapper *redisClientWrapper) close() {
	wrapper.tasksClient.Close()
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	return wrapper.tasksClient.Analysis.Update(task.redisKey, func(analysisTask *tasks.AnalysisTask) {
		markStarted(&analysisTask.Info)
	})
}

func (wrapper *redisClientWrapper) onTaskCancelled(task *Task, errorMessages ...string) error {
	return wrapper.tasksClient.Analysis.Update(task.redisKey, func(analysisTask *tasks.AnalysisTask) {
		markFinished(&analysisTask.Info, tasks.TaskStatusCanceled, errorMessages...)
	})
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxRetries int) error {
	if batchID := task.analysisTask.BatchID; batchID != "" {
		err := wrapper.tasksClient.Batches.Update(batchID, func(batch *tasks.BatchTask) {
			batch.FailedTasks = append(batch.FailedTasks, task.redisKey)
		})
		if err != nil {
			return err
		}
	}
	return wrapper.tasksClient.Analysis.Update(task.redisKey, func(analysisTask *tasks.AnalysisTask) {
		info := &analysisTask.Info
		markFinished(info, tasks.TaskStatusCompletedFailure, fmt.Sprintf(
			"Task has exceeded retries. (Attempts: %d, max retries: %d )",
			info.Attempts+1,
			maxRetries,
		))
	})
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, err error) error {
	return wrapper.tasksClient.Analysis.Update(task.redisKey, func(analysisTask *tasks.AnalysisTask) {
		markFailed(&analysisTask.Info, err)
	})
}

func (wrapper *redisClientWrapper) onTaskComplete(task *Task) error {
	resultsFileKey := getResultsFileKey(task)
	return wrapper.tasksClient.Analysis.Update(task.redisKey, func(analysisTask *tasks.AnalysisTask) {
		markComplete(&analysisTask.Info, resultsFileKey)
	})
}

func (wrapper *redisClientWrapper) getAnalysisTask(redisKey string) (*tasks.AnalysisTask, error) {
	return wrapper.tasksClient.Analysis.Get(redisKey)
}

func (wrapper *redisClientWrapper) getBatchTask(task *Task) (*tasks.BatchTask, error) {
	return wrapper.tasksClient.Batches.Get(task.analysisTask.BatchID)
}

func markStarted(info *tasks.AnalysisTaskInfo) {
	info.Status = tasks.TaskStatusStarted
	info.Attempts += 1
	info.StartedAt = getFormattedNow()
	info.CompletedAt = nil
}

// markFinished closes a task that never ran; it still counts as an attempt.
func markFinished(info *tasks.AnalysisTaskInfo, status tasks.TaskStatus, errorMessages ...string) {
	info.Status = status
	info.StartedAt = getFormattedNow()
	info.CompletedAt = getFormattedNow()
	info.Attempts += 1
	info.ErrorMessages = append(info.ErrorMessages, errorMessages...)
}

func markFailed(info *tasks.AnalysisTaskInfo, err error) {
	info.Status = tasks.TaskStatusFailed
	info.CompletedAt = getFormattedNow()
	info.ErrorMessages = append(info.ErrorMessages, err.Error())
}

func markComplete(info *tasks.AnalysisTaskInfo, resultsFileKey string) {
	if !info.Status.Complete() {
		info.Status = tasks.TaskStatusCompletedSuccess
	}
	info.CompletedAt = getFormattedNow()
	info.ResultsFileKey = resultsFileKey
}
