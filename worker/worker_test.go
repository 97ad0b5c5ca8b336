package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"caoba.org/botcheck/pipeline"
	"caoba.org/botcheck/tasks"
	"github.com/google/go-cmp/cmp"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const taskBody = `{"work_type": "analysis", "redis_key": "task-1", "sender": "api", "version": "1"}`

var (
	lookupCalls   = []string{"getAnalysisTask", "getBatchTask"}
	runCalls      = []string{"onTaskStarted", "getText", "pipeline", "saveResultsFile"}
	finishCalls   = []string{"notifyResults", "acknowledgeDelivery"}
	successCalls  = concat(lookupCalls, runCalls, []string{"onTaskComplete"}, finishCalls)
	noBatchCalls  = concat([]string{"getAnalysisTask"}, runCalls, []string{"onTaskComplete"}, finishCalls)
	skippedCalls  = concat(lookupCalls, []string{"onTaskCancelled"}, finishCalls)
	exceededCalls = concat(lookupCalls, []string{"onTaskExceededRetries"}, finishCalls)
)

func concat(lists ...[]string) []string {
	var result []string
	for _, list := range lists {
		result = append(result, list...)
	}
	return result
}

func sorted(names []string) []string {
	log := callLog{}
	for _, name := range names {
		log.record(name)
	}
	return log.list()
}

func TestProcessMessage(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		config   mocksConfig
		expected []string
	}{
		{
			name:     "successful",
			config:   mocksConfig{text: "hola mundo", result: `{"lang": "es"}`},
			expected: successCalls,
		},
		{
			name:     "invalid message body",
			body:     "{not json",
			expected: []string{"rejectDelivery"},
		},
		{
			name:     "failed to get analysis task",
			config:   mocksConfig{fail: failures{"getAnalysisTask": true}},
			expected: []string{"getAnalysisTask", "rejectDelivery"},
		},
		{
			name:     "task without batch",
			config:   mocksConfig{analysisTask: &tasks.AnalysisTask{UserID: "5a3f"}},
			expected: noBatchCalls,
		},
		{
			name:     "failed to get batch task",
			config:   mocksConfig{fail: failures{"getBatchTask": true}},
			expected: concat(lookupCalls, []string{"rejectDelivery"}),
		},
		{
			name: "already completed with success",
			config: mocksConfig{analysisTask: &tasks.AnalysisTask{
				BatchID: "batch-1",
				Info:    tasks.AnalysisTaskInfo{Status: tasks.TaskStatusCompletedSuccess},
			}},
			expected: concat([]string{"getAnalysisTask"}, finishCalls),
		},
		{
			name: "already completed with failure",
			config: mocksConfig{analysisTask: &tasks.AnalysisTask{
				BatchID: "batch-1",
				Info:    tasks.AnalysisTaskInfo{Status: tasks.TaskStatusCompletedFailure},
			}},
			expected: concat([]string{"getAnalysisTask"}, finishCalls),
		},
		{
			name:     "batch canceled by user",
			config:   mocksConfig{batchTask: &tasks.BatchTask{UserCanceled: true}},
			expected: skippedCalls,
		},
		{
			name:     "failed to mark canceled task",
			config:   mocksConfig{batchTask: &tasks.BatchTask{UserCanceled: true}, fail: failures{"onTaskCancelled": true}},
			expected: concat(lookupCalls, []string{"onTaskCancelled", "rejectDelivery"}),
		},
		{
			name: "another task of the batch failed",
			config: mocksConfig{batchTask: &tasks.BatchTask{
				StopOnFailure: true,
				FailedTasks:   []string{"task-0"},
			}},
			expected: skippedCalls,
		},
		{
			name:     "stop on failure without failed tasks",
			config:   mocksConfig{batchTask: &tasks.BatchTask{StopOnFailure: true}},
			expected: successCalls,
		},
		{
			name:     "failed tasks without stop on failure",
			config:   mocksConfig{batchTask: &tasks.BatchTask{FailedTasks: []string{"task-0"}}},
			expected: successCalls,
		},
		{
			name: "exceeded attempts",
			config: mocksConfig{analysisTask: &tasks.AnalysisTask{
				BatchID: "batch-1",
				Info:    tasks.AnalysisTaskInfo{Attempts: 3, Status: tasks.TaskStatusFailed},
			}},
			expected: exceededCalls,
		},
		{
			name: "failed to mark exceeded attempts",
			config: mocksConfig{
				analysisTask: &tasks.AnalysisTask{BatchID: "batch-1", Info: tasks.AnalysisTaskInfo{Attempts: 4}},
				fail:         failures{"onTaskExceededRetries": true},
			},
			expected: concat(lookupCalls, []string{"onTaskExceededRetries", "rejectDelivery"}),
		},
		{
			name:     "failed to mark task as started",
			config:   mocksConfig{fail: failures{"onTaskStarted": true}},
			expected: concat(lookupCalls, []string{"onTaskStarted", "rejectDelivery"}),
		},
		{
			name:     "failed to download text",
			config:   mocksConfig{fail: failures{"getText": true}},
			expected: concat(lookupCalls, []string{"onTaskStarted", "getText", "onTaskFailedWithError"}, finishCalls),
		},
		{
			name:     "pipeline closed without result",
			config:   mocksConfig{closePipe: true},
			expected: concat(lookupCalls, []string{"onTaskStarted", "getText", "pipeline", "onTaskFailedWithError"}, finishCalls),
		},
		{
			name:     "failed to save results",
			config:   mocksConfig{fail: failures{"saveResultsFile": true}},
			expected: concat(lookupCalls, runCalls, []string{"onTaskFailedWithError"}, finishCalls),
		},
		{
			name:     "failed to record failure",
			config:   mocksConfig{fail: failures{"getText": true, "onTaskFailedWithError": true}},
			expected: concat(lookupCalls, []string{"onTaskStarted", "getText", "onTaskFailedWithError", "rejectDelivery"}),
		},
		{
			name:     "failed to mark task as complete",
			config:   mocksConfig{fail: failures{"onTaskComplete": true}},
			expected: concat(lookupCalls, runCalls, []string{"onTaskComplete", "rejectDelivery"}),
		},
		{
			name:     "failed to notify results queue",
			config:   mocksConfig{fail: failures{"notifyResults": true}},
			expected: concat(lookupCalls, runCalls, []string{"onTaskComplete", "notifyResults", "rejectDelivery"}),
		},
		{
			name:     "failed to acknowledge delivery",
			config:   mocksConfig{fail: failures{"acknowledgeDelivery": true}},
			expected: successCalls,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			body := testCase.body
			if body == "" {
				body = taskBody
			}
			m := newMocks(testCase.config)
			m.worker(3).processMessage(m.rmq, &amqp.Delivery{Body: []byte(body)})
			if diff := cmp.Diff(sorted(testCase.expected), m.calls.list()); diff != "" {
				t.Errorf("Got unexpected called methods set (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProcessMessagePassesData(t *testing.T) {
	m := newMocks(mocksConfig{text: "hola mundo", result: `{"lang": "es"}`})
	m.worker(3).processMessage(m.rmq, &amqp.Delivery{Body: []byte(taskBody)})

	require.Equal(t, "task-1", m.pipeline.request.Tid)
	require.Equal(t, "hola mundo", m.pipeline.request.Text)
	require.Equal(t, `{"lang": "es"}`, m.s3.saved)
	require.Equal(t, "task-1", m.rmq.notified.RedisKey)
	require.Equal(t, "analysis", m.rmq.notified.WorkType)
}

func TestProcessMessageRecordsFailures(t *testing.T) {
	t.Run("pipeline error is stored", func(t *testing.T) {
		m := newMocks(mocksConfig{fail: failures{"saveResultsFile": true}})
		m.worker(3).processMessage(m.rmq, &amqp.Delivery{Body: []byte(taskBody)})
		require.True(t, errors.Is(m.redis.failure, errMock))
	})

	t.Run("cancellation names the failed task", func(t *testing.T) {
		m := newMocks(mocksConfig{batchTask: &tasks.BatchTask{
			StopOnFailure: true,
			FailedTasks:   []string{"task-0", "task-7"},
		}})
		m.worker(3).processMessage(m.rmq, &amqp.Delivery{Body: []byte(taskBody)})
		require.Len(t, m.redis.errorMessages, 1)
		require.Contains(t, m.redis.errorMessages[0], `"task-0"`)
		require.Contains(t, m.redis.errorMessages[0], string(tasks.TaskStatusCanceled))
	})

	t.Run("user cancellation has no message", func(t *testing.T) {
		m := newMocks(mocksConfig{batchTask: &tasks.BatchTask{UserCanceled: true}})
		m.worker(3).processMessage(m.rmq, &amqp.Delivery{Body: []byte(taskBody)})
		require.Empty(t, m.redis.errorMessages)
	})
}

func TestMaxRetriesIsConfigurable(t *testing.T) {
	config := mocksConfig{analysisTask: &tasks.AnalysisTask{
		BatchID: "batch-1",
		Info:    tasks.AnalysisTaskInfo{Attempts: 3},
	}}

	m := newMocks(config)
	m.worker(5).processMessage(m.rmq, &amqp.Delivery{Body: []byte(taskBody)})
	require.Equal(t, sorted(successCalls), m.calls.list())

	m = newMocks(config)
	m.worker(1).processMessage(m.rmq, &amqp.Delivery{Body: []byte(taskBody)})
	require.Equal(t, sorted(exceededCalls), m.calls.list())
}

func TestStartWorker(t *testing.T) {
	newLoop := func() (*mocks, *Worker) {
		m := newMocks(mocksConfig{text: "hola", result: "{}"})
		m.rmq.deliveries = make(chan amqp.Delivery)
		m.rmq.reqErrs = make(chan *amqp.Error)
		m.rmq.respErrs = make(chan *amqp.Error)
		return m, m.worker(3)
	}
	closeCalls := []string{"redis.close", "s3.close", "rmq.close"}

	t.Run("stops when context is done", func(t *testing.T) {
		m, worker := newLoop()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, worker.StartWorker(ctx))
		require.Equal(t, sorted(closeCalls), m.calls.list())
	})

	t.Run("processes deliveries before stopping", func(t *testing.T) {
		m, worker := newLoop()
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- worker.StartWorker(ctx) }()

		m.rmq.deliveries <- amqp.Delivery{Body: []byte(taskBody)}
		cancel()
		require.NoError(t, <-done)
		require.Equal(t, sorted(concat(successCalls, closeCalls)), m.calls.list())
	})

	t.Run("fails when closed deliveries cannot be refreshed", func(t *testing.T) {
		_, worker := newLoop()
		close(worker.rmq.(*rmqMock).deliveries)
		err := worker.StartWorker(context.Background())
		require.Error(t, err)
		require.True(t, errors.Is(err, errMock))
		require.True(t, strings.Contains(err.Error(), "deliveries channel has been closed"))
	})

	t.Run("refreshes after connection error", func(t *testing.T) {
		m, worker := newLoop()
		refreshed := make(chan struct{}, 2)
		worker.refreshRMQ = func() error {
			refreshed <- struct{}{}
			return nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- worker.StartWorker(ctx) }()

		m.rmq.respErrs <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "closed"}
		m.rmq.reqErrs <- &amqp.Error{Code: amqp.ChannelError, Reason: "closed"}
		select {
		case <-refreshed:
		case <-time.After(time.Second):
			t.Fatal("RMQ client was not refreshed")
		}
		<-refreshed
		cancel()
		require.NoError(t, <-done)
	})

	t.Run("in-flight message finishes on the connection it came from", func(t *testing.T) {
		m, worker := newLoop()
		started := make(chan struct{})
		release := make(chan struct{})
		worker.ppln = func(request pipeline.Request) <-chan string {
			close(started)
			<-release
			return m.pipeline.run(request)
		}
		replacement := &rmqMock{
			calls:      &callLog{},
			deliveries: make(chan amqp.Delivery),
			reqErrs:    make(chan *amqp.Error),
			respErrs:   make(chan *amqp.Error),
		}
		refreshed := make(chan struct{})
		worker.refreshRMQ = func() error {
			worker.setRMQ(replacement)
			close(refreshed)
			return nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- worker.StartWorker(ctx) }()

		m.rmq.deliveries <- amqp.Delivery{Body: []byte(taskBody)}
		<-started
		m.rmq.respErrs <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "closed"}
		<-refreshed
		close(release)
		cancel()
		require.NoError(t, <-done)

		require.Equal(t, sorted(concat(successCalls, []string{"redis.close", "s3.close"})), m.calls.list())
		require.Equal(t, []string{"rmq.close"}, replacement.calls.list())
	})
}

func TestResultMessage(t *testing.T) {
	b, err := resultMessage(Message{WorkType: "analysis", RedisKey: "task-1", Sender: "api", Version: "1"})
	require.NoError(t, err)

	var message Message
	require.NoError(t, json.Unmarshal(b, &message))
	require.Equal(t, Message{WorkType: "analysis", RedisKey: "task-1", Sender: senderName, Version: "1"}, message)
}

func TestResultsFileKey(t *testing.T) {
	key := getResultsFileKey(&Task{redisKey: "task-1"})
	require.Equal(t, "processed/analysis/task-1/task-1.botcheck.json", key)
}

func TestTaskInfoTransitions(t *testing.T) {
	t.Run("started", func(t *testing.T) {
		info := tasks.AnalysisTaskInfo{Attempts: 1, CompletedAt: getFormattedNow(), Status: tasks.TaskStatusFailed}
		markStarted(&info)
		require.Equal(t, 2, info.Attempts)
		require.Equal(t, tasks.TaskStatusStarted, info.Status)
		require.NotNil(t, info.StartedAt)
		require.Nil(t, info.CompletedAt)
	})

	t.Run("finished without running", func(t *testing.T) {
		info := tasks.AnalysisTaskInfo{ErrorMessages: []string{"first"}}
		markFinished(&info, tasks.TaskStatusCanceled, "second")
		require.Equal(t, 1, info.Attempts)
		require.Equal(t, tasks.TaskStatusCanceled, info.Status)
		require.True(t, info.Status.Complete())
		require.Equal(t, []string{"first", "second"}, info.ErrorMessages)
		require.NotNil(t, info.CompletedAt)
	})

	t.Run("failed", func(t *testing.T) {
		var info tasks.AnalysisTaskInfo
		markFailed(&info, errMock)
		require.Equal(t, tasks.TaskStatusFailed, info.Status)
		require.False(t, info.Status.Complete())
		require.Equal(t, []string{errMock.Error()}, info.ErrorMessages)
	})

	t.Run("complete", func(t *testing.T) {
		info := tasks.AnalysisTaskInfo{Status: tasks.TaskStatusStarted}
		markComplete(&info, "processed/analysis/task-1/task-1.botcheck.json")
		require.Equal(t, tasks.TaskStatusCompletedSuccess, info.Status)
		require.Equal(t, "processed/analysis/task-1/task-1.botcheck.json", info.ResultsFileKey)
	})

	t.Run("formatted timestamp", func(t *testing.T) {
		_, err := time.Parse(RFC3339Micro, *getFormattedNow())
		require.NoError(t, err)
	})
}
