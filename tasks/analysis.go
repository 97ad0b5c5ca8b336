package tasks

import (
	"caoba.org/botcheck/redis"
)

const AnalysisDB redis.DB = 0

// AnalysisTask asks for one text stored in S3 to be run through the analysis pipeline.
type AnalysisTask struct {
	BatchID     string           `json:"batch_id"`
	UserID      string           `json:"user_id"`
	TextFileKey string           `json:"text_file_key"`
	Info        AnalysisTaskInfo `json:"botcheck"`
}

type AnalysisTaskInfo struct {
	ResultsFileKey string     `json:"results_file_key"`
	StartedAt      *string    `json:"started_at"`
	CompletedAt    *string    `json:"completed_at"`
	Attempts       int        `json:"attempts"`
	Status         TaskStatus `json:"status"`
	ErrorMessages  []string   `json:"error_messages"`
}

type AnalysisTasks struct {
	client redis.Client
}

func (tasks AnalysisTasks) Get(redisKey string) (*AnalysisTask, error) {
	var task AnalysisTask
	if err := tasks.client.GetDoc(redisKey, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (tasks AnalysisTasks) Update(redisKey string, updateFunc func(task *AnalysisTask)) error {
	var task AnalysisTask
	return tasks.client.UpdateDoc(redisKey, &task, func() {
		updateFunc(&task)
	})
}
