package mqtt

import (
	log "github.com/sirupsen/logrus"
	"github.com/sweeney/quad-decoder/internal/logic"
)

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
// Counter reports also keep the report they were built from so that a later
// report can absorb them.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
	report   *logic.CounterReport
}

// outbox holds messages while the broker is unreachable.
// System events are kept in order. At most one counter report is pending:
// a newer report replaces it, its deltas extended to cover the whole
// offline span. When full, the oldest message is dropped.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	msgs     []bufferedMsg
	capacity int
	overflow bool // a message was dropped since the last drain
}

func newOutbox(capacity int) *outbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &outbox{capacity: capacity}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.report != nil {
		if i := o.pendingReport(); i >= 0 {
			msg = mergeReports(o.msgs[i], msg)
			o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
		}
	}
	if len(o.msgs) == o.capacity {
		if !o.overflow {
			log.Warnf("mqtt: buffer full (%d messages), dropping oldest", o.capacity)
			o.overflow = true
		}
		o.msgs = o.msgs[1:]
	}
	o.msgs = append(o.msgs, msg)
}

func (o *outbox) pendingReport() int {
	for i, m := range o.msgs {
		if m.report != nil {
			return i
		}
	}
	return -1
}

// mergeReports folds the deltas of an unsent report into the newer one.
func mergeReports(older, newer bufferedMsg) bufferedMsg {
	rep := *newer.report
	rep.Deltas = older.report.Deltas.Add(rep.Deltas)
	payload, err := FormatPayload(rep)
	if err != nil {
		log.Warnf("mqtt: re-encode merged report: %v", err)
		return newer
	}
	newer.report = &rep
	newer.payload = payload
	return newer
}

// drainAll returns the pending messages oldest first and empties the outbox.
func (o *outbox) drainAll() []bufferedMsg {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	o.overflow = false
	return out
}

func (o *outbox) len() int {
	return len(o.msgs)
}
