package utils

import (
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// BlockingQueue 无界阻塞队列，Take在队列为空时阻塞。
// 不做容量限制，调试命令宁可占内存也不能丢
type BlockingQueue struct {
	mutex sync.Mutex
	cond  *sync.Cond
	queue *linkedlistqueue.Queue
}

func NewBlockingQueue() *BlockingQueue {
	q := &BlockingQueue{
		queue: linkedlistqueue.New(),
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

// Put 入队，唤醒一个等待的Take
func (q *BlockingQueue) Put(value interface{}) {
	q.mutex.Lock()
	q.queue.Enqueue(value)
	q.mutex.Unlock()
	q.cond.Signal()
}

// Take 出队，队列为空时阻塞
func (q *BlockingQueue) Take() interface{} {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for q.queue.Empty() {
		q.cond.Wait()
	}
	value, _ := q.queue.Dequeue()
	return value
}

func (q *BlockingQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.queue.Size()
}

func (q *BlockingQueue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	q.queue.Clear()
}
