package events

import "sync"

type auditMessage struct {
	Kind string
	Data []byte
	prev *auditMessage
}

// auditBuffer is an unbounded FIFO of pending audit messages.
type auditBuffer struct {
	lock sync.Mutex
	head *auditMessage
	tail *auditMessage
	size int
}

func newAuditBuffer() *auditBuffer {
	return &auditBuffer{}
}

func (b *auditBuffer) PushBack(msg *auditMessage) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.head == nil {
		b.head = msg
		b.tail = msg
	} else {
		b.tail.prev = msg
		b.tail = msg
	}
	b.size++
}

func (b *auditBuffer) Pop() *auditMessage {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.head == nil {
		return nil
	}
	tmp := b.head
	if b.head.prev != nil {
		b.head = b.head.prev
	} else {
		// removing the last one
		b.head = nil
		b.tail = nil
	}
	b.size--
	return tmp
}

func (b *auditBuffer) Size() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.size
}
