package tasks

import (
	"caoba.org/botcheck/redis"
)

const BatchesDB redis.DB = 1

// BatchTask groups the analysis tasks submitted together, usually one corpus.
type BatchTask struct {
	UserCanceled  bool     `json:"user_canceled"`
	StopOnFailure bool     `json:"stop_on_failure"`
	FailedTasks   []string `json:"failed_tasks"`
}

type BatchTasks struct {
	client redis.Client
}

func (tasks BatchTasks) Get(redisKey string) (*BatchTask, error) {
	var task BatchTask
	if err := tasks.client.GetDoc(redisKey, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks BatchTasks) Update(redisKey string, updateFunc func(task *BatchTask)) error {
	var task BatchTask
	return tasks.client.UpdateDoc(redisKey, &task, func() {
		updateFunc(&task)
	})
}
