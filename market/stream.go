package market

import (
	"context"
	"sync"
)

// OverflowPolicy 有界队列写满后的处理方式。
type OverflowPolicy int

const (
	// Block 阻塞发布者直到有空间（实盘默认，保证不丢事件）。
	Block OverflowPolicy = iota
	// DropOldest 丢弃最老的事件为新事件腾位，丢弃计入统计。
	DropOldest
)

// Stream 面向实盘的持续事件源。
type Stream interface {
	Events() <-chan Event
	// Err 返回流终止原因；正常关闭为 nil。
	Err() error
}

// Buffer 是一个带溢出策略的有界事件队列，解耦行情接入与引擎消费。
type Buffer struct {
	ch      chan Event
	policy  OverflowPolicy
	mu      sync.Mutex
	dropped uint64
	err     error
	closed  bool
}

func NewBuffer(capacity int, policy OverflowPolicy) *Buffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &Buffer{
		ch:     make(chan Event, capacity),
		policy: policy,
	}
}

// Publish 写入一个事件；Block 策略下可被 ctx 取消。
func (b *Buffer) Publish(ctx context.Context, ev Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return context.Canceled
	}
	b.mu.Unlock()

	switch b.policy {
	case DropOldest:
		for {
			select {
			case b.ch <- ev:
				return nil
			default:
				select {
				case <-b.ch:
					b.mu.Lock()
					b.dropped++
					b.mu.Unlock()
				default:
				}
			}
		}
	default:
		select {
		case b.ch <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Buffer) Events() <-chan Event {
	return b.ch
}

func (b *Buffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Dropped 返回因溢出被丢弃的事件数。
func (b *Buffer) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close 关闭流；err 记录终止原因，可为 nil。
func (b *Buffer) Close(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.err = err
	close(b.ch)
}
