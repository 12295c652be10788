package core

import "github.com/dkeye/Relay/internal/domain"

// MessageLog is an append-only history buffer.
// It is not safe for concurrent use; Room serializes access to it.
type MessageLog struct {
	capacity int
	msgs     []domain.Message
}

// NewMessageLog keeps at most capacity messages, dropping the oldest first.
// A capacity <= 0 keeps everything.
func NewMessageLog(capacity int) *MessageLog {
	return &MessageLog{capacity: capacity}
}

func (l *MessageLog) Append(m domain.Message) {
	l.msgs = append(l.msgs, m)
	// compact lazily so appends stay amortized O(1)
	if l.capacity > 0 && len(l.msgs) >= 2*l.capacity {
		kept := make([]domain.Message, l.capacity, 2*l.capacity)
		copy(kept, l.msgs[len(l.msgs)-l.capacity:])
		l.msgs = kept
	}
}

func (l *MessageLog) window() []domain.Message {
	if l.capacity > 0 && len(l.msgs) > l.capacity {
		return l.msgs[len(l.msgs)-l.capacity:]
	}
	return l.msgs
}

func (l *MessageLog) Len() int { return len(l.window()) }

// Recent returns a copy of the last limit messages in append order.
func (l *MessageLog) Recent(limit int) []domain.Message {
	w := l.window()
	if limit <= 0 || len(w) == 0 {
		return []domain.Message{}
	}
	if limit > len(w) {
		limit = len(w)
	}
	out := make([]domain.Message, limit)
	copy(out, w[len(w)-limit:])
	return out
}
