package worker

import (
	"errors"
	"sort"
	"sync"

	"caoba.org/botcheck/pipeline"
	"caoba.org/botcheck/tasks"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

var errMock = errors.New("mock error")

// callLog records which mocked methods were called.
type callLog struct {
	mu    sync.Mutex
	names map[string]bool
}

func (log *callLog) record(name string) {
	log.mu.Lock()
	defer log.mu.Unlock()
	if log.names == nil {
		log.names = map[string]bool{}
	}
	log.names[name] = true
}

func (log *callLog) list() []string {
	log.mu.Lock()
	defer log.mu.Unlock()
	names := make([]string, 0, len(log.names))
	for name := range log.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// failures holds the names of mocked methods that should return errMock.
type failures map[string]bool

func (f failures) err(name string) error {
	if f[name] {
		return errMock
	}
	return nil
}

type mocks struct {
	calls    *callLog
	redis    *redisMock
	s3       *s3Mock
	rmq      *rmqMock
	pipeline *pipelineMock
}

type mocksConfig struct {
	fail         failures
	analysisTask *tasks.AnalysisTask
	batchTask    *tasks.BatchTask
	text         string
	result       string
	closePipe    bool
}

func newMocks(config mocksConfig) *mocks {
	calls := &callLog{}
	if config.fail == nil {
		config.fail = failures{}
	}
	if config.analysisTask == nil {
		config.analysisTask = &tasks.AnalysisTask{
			BatchID:     "batch-1",
			UserID:      "5a3f",
			TextFileKey: "texts/5a3f.txt",
		}
	}
	if config.batchTask == nil {
		config.batchTask = &tasks.BatchTask{}
	}
	return &mocks{
		calls:    calls,
		redis:    &redisMock{calls: calls, config: config},
		s3:       &s3Mock{calls: calls, config: config},
		rmq:      &rmqMock{calls: calls, config: config},
		pipeline: &pipelineMock{calls: calls, config: config},
	}
}

func (m *mocks) worker(maxRetries int) *Worker {
	nop := zerolog.Nop()
	worker := newWorker(Config{TaskMaxRetries: maxRetries}, m.pipeline.run, &nop)
	worker.redis = m.redis
	worker.s3 = m.s3
	worker.rmq = m.rmq
	worker.refreshRMQ = func() error { return errMock }
	return worker
}

type pipelineMock struct {
	calls   *callLog
	config  mocksConfig
	request pipeline.Request
}

func (mock *pipelineMock) run(request pipeline.Request) <-chan string {
	mock.calls.record("pipeline")
	mock.request = request
	if mock.config.closePipe {
		ch := make(chan string)
		close(ch)
		return ch
	}
	ch := make(chan string, 1)
	ch <- mock.config.result
	close(ch)
	return ch
}

type redisMock struct {
	calls         *callLog
	config        mocksConfig
	errorMessages []string
	failure       error
}

func (mock *redisMock) getAnalysisTask(redisKey string) (*tasks.AnalysisTask, error) {
	mock.calls.record("getAnalysisTask")
	if err := mock.config.fail.err("getAnalysisTask"); err != nil {
		return nil, err
	}
	return mock.config.analysisTask, nil
}

func (mock *redisMock) getBatchTask(task *Task) (*tasks.BatchTask, error) {
	mock.calls.record("getBatchTask")
	if err := mock.config.fail.err("getBatchTask"); err != nil {
		return nil, err
	}
	return mock.config.batchTask, nil
}

func (mock *redisMock) onTaskStarted(task *Task) error {
	mock.calls.record("onTaskStarted")
	return mock.config.fail.err("onTaskStarted")
}

func (mock *redisMock) onTaskCancelled(task *Task, errorMessages ...string) error {
	mock.calls.record("onTaskCancelled")
	mock.errorMessages = errorMessages
	return mock.config.fail.err("onTaskCancelled")
}

func (mock *redisMock) onTaskExceededRetries(task *Task, maxRetries int) error {
	mock.calls.record("onTaskExceededRetries")
	return mock.config.fail.err("onTaskExceededRetries")
}

func (mock *redisMock) onTaskFailedWithError(task *Task, err error) error {
	mock.calls.record("onTaskFailedWithError")
	mock.failure = err
	return mock.config.fail.err("onTaskFailedWithError")
}

func (mock *redisMock) onTaskComplete(task *Task) error {
	mock.calls.record("onTaskComplete")
	return mock.config.fail.err("onTaskComplete")
}

func (mock *redisMock) close() {
	mock.calls.record("redis.close")
}

type s3Mock struct {
	calls  *callLog
	config mocksConfig
	saved  string
}

func (mock *s3Mock) saveResultsFile(task *Task, result string) error {
	mock.calls.record("saveResultsFile")
	mock.saved = result
	return mock.config.fail.err("saveResultsFile")
}

func (mock *s3Mock) getText(task *Task) ([]byte, error) {
	mock.calls.record("getText")
	if err := mock.config.fail.err("getText"); err != nil {
		return nil, err
	}
	return []byte(mock.config.text), nil
}

func (mock *s3Mock) close() {
	mock.calls.record("s3.close")
}

type rmqMock struct {
	calls      *callLog
	config     mocksConfig
	notified   Message
	deliveries chan amqp.Delivery
	reqErrs    chan *amqp.Error
	respErrs   chan *amqp.Error
}

func (mock *rmqMock) notifyResults(task *Task, message Message) error {
	mock.calls.record("notifyResults")
	mock.notified = message
	return mock.config.fail.err("notifyResults")
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.record("acknowledgeDelivery")
	return mock.config.fail.err("acknowledgeDelivery")
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, bcLogger *zerolog.Logger) {
	mock.calls.record("rejectDelivery")
}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return mock.deliveries
}

func (mock *rmqMock) getReqChanErrorsCh() <-chan *amqp.Error {
	return mock.reqErrs
}

func (mock *rmqMock) getRespChanErrorsCh() <-chan *amqp.Error {
	return mock.respErrs
}

func (mock *rmqMock) close() {
	mock.calls.record("rmq.close")
}
