package ws

import "sync"

const TransportSSE = "sse"

// SSESubscriber подписчик потока Server-Sent Events. Запись в ответ выполняет HTTP-обработчик,
// читая кадры из Frames().
type SSESubscriber struct {
	id        string
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func NewSSESubscriber(id string, buffer int) *SSESubscriber {
	if buffer <= 0 {
		buffer = SendBuffer
	}
	return &SSESubscriber{
		id:     id,
		frames: make(chan Frame, buffer),
		done:   make(chan struct{}),
	}
}

func (s *SSESubscriber) ID() string        { return s.id }
func (s *SSESubscriber) Transport() string { return TransportSSE }

func (s *SSESubscriber) Enqueue(f Frame) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- f:
		return true
	default:
		return false
	}
}

func (s *SSESubscriber) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Frames очередь кадров для записи в поток.
func (s *SSESubscriber) Frames() <-chan Frame { return s.frames }

// Done закрывается, когда хаб отключил подписчика.
func (s *SSESubscriber) Done() <-chan struct{} { return s.done }
