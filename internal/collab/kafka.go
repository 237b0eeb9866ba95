package collab

import (
	"encoding/json"
	"log"
	"time"

	"github.com/IBM/sarama"

	"syncdoc/internal/ot/delta"
)

// DocOpEvent is the audit record published for every applied op, same
// shape as the teacher's collab.DocOpEvent (gateway/backend/internal/
// collab/kafka.go) but carrying the version the op landed at instead of a
// revision counter local to one in-memory process.
type DocOpEvent struct {
	EventType string      `json:"eventType"`
	DocID     string      `json:"docId"`
	Version   uint64      `json:"version"`
	AuthorID  string      `json:"authorId"`
	ClientID  string      `json:"clientId"`
	ClientSeq uint64      `json:"clientSeq"`
	Ops       delta.Delta `json:"ops"`
	AppliedAt time.Time   `json:"appliedAt"`
}

const (
	dispatcherQueueCap  = 1024
	dispatcherWorkers   = 4
	dispatcherMaxRetry  = 3
	dispatcherBaseDelay = 50 * time.Millisecond
)

// KafkaDispatcher publishes DocOpEvents off the write critical path: the
// teacher fired a bare `go func` per event with no queue and no retry
// (gateway/backend/internal/collab/service.go's Submit); a worker pool
// bounds how many of those goroutines can exist at once and retries a
// transient send failure instead of silently dropping it.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
	queue    chan AppliedOp
}

func NewKafkaDispatcher(producer sarama.SyncProducer, topic string) *KafkaDispatcher {
	d := &KafkaDispatcher{producer: producer, topic: topic, queue: make(chan AppliedOp, dispatcherQueueCap)}
	if producer != nil {
		for i := 0; i < dispatcherWorkers; i++ {
			go d.worker()
		}
	}
	return d
}

// Publish enqueues op for async delivery, dropping it if the queue is
// full rather than blocking the commit path that just succeeded.
func (d *KafkaDispatcher) Publish(op AppliedOp) {
	if d.producer == nil {
		return
	}
	select {
	case d.queue <- op:
	default:
		log.Printf("collab: kafka dispatch queue full, dropping op for doc %s v%d", op.DocID, op.Version)
	}
}

func (d *KafkaDispatcher) worker() {
	for op := range d.queue {
		d.send(op)
	}
}

func (d *KafkaDispatcher) send(op AppliedOp) {
	evt := DocOpEvent{
		EventType: "OP_APPLIED",
		DocID:     op.DocID,
		Version:   op.Version,
		AuthorID:  op.AuthorID,
		ClientID:  op.ClientID,
		ClientSeq: op.ClientSeq,
		Ops:       op.Ops,
		AppliedAt: op.AppliedAt,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		log.Printf("collab: marshal DocOpEvent for doc %s: %v", op.DocID, err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(op.DocID),
		Value: sarama.ByteEncoder(body),
	}

	delay := dispatcherBaseDelay
	for attempt := 0; attempt <= dispatcherMaxRetry; attempt++ {
		if _, _, err := d.producer.SendMessage(msg); err == nil {
			return
		} else if attempt == dispatcherMaxRetry {
			log.Printf("collab: giving up publishing op for doc %s v%d after %d attempts: %v", op.DocID, op.Version, attempt+1, err)
			return
		}
		time.Sleep(delay)
		delay *= 2
	}
}
