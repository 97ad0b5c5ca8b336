package tasks

import (
	"caoba.org/botcheck/redis"
)

type Client struct {
	Analysis AnalysisTasks
	Batches  BatchTasks
}

// NewClient is a preferred way for working with task documents
func NewClient() (Client, error) {
	analysisRedisClient, err := redis.NewClient(AnalysisDB)
	if err != nil {
		return Client{}, err
	}
	batchesRedisClient, err := redis.NewClient(BatchesDB)
	if err != nil {
		_ = analysisRedisClient.Close()
		return Client{}, err
	}
	return Client{
		Analysis: AnalysisTasks{client: analysisRedisClient},
		Batches:  BatchTasks{client: batchesRedisClient},
	}, nil
}

func (client *Client) Close() {
	_ = client.Analysis.client.Close()
	_ = client.Batches.client.Close()
}
