package eventbus

import (
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus 异步事件总线
//
// 转写事件通过worker池分发，避免慢速订阅者阻塞音频流水线。
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

type asyncEvent struct {
	topic   string
	args    []interface{}
	handler func(args ...interface{})
}

// NewAsyncEventBus 创建异步事件总线
func NewAsyncEventBus(workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}

	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 1000),
		stopChan:  make(chan struct{}),
	}
}

// Start 启动异步处理
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop 停止异步处理
func (aeb *AsyncEventBus) Stop() {
	close(aeb.stopChan)
	aeb.wg.Wait()
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			func() {
				defer func() {
					if r := recover(); r != nil {
						// 订阅者panic不能拖垮worker
					}
				}()
				event.handler(event.args...)
			}()
		}
	}
}

// Publish 发布事件（同步）
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync 异步发布事件，队列满时丢弃
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	select {
	case aeb.workChan <- asyncEvent{
		topic: topic,
		args:  args,
		handler: func(args ...interface{}) {
			aeb.bus.Publish(topic, args...)
		},
	}:
	default:
		// 队列满时丢弃事件，转写不回压音频线程
	}
}

// Subscribe 订阅事件
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

// HasCallback 检查是否有订阅者
func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// WaitAsync 等待在途事件（测试用）
func (aeb *AsyncEventBus) WaitAsync() {
	time.Sleep(100 * time.Millisecond)
}
