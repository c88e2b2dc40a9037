package kafka

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/parley/pkg/eventstream"
)

type recordingWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w *recordingWriter
		p *Publisher
	)

	BeforeEach(func() {
		w = &recordingWriter{}
		p = newPublisher(w, Config{})
	})

	It("validates its configuration", func() {
		_, err := NewPublisher(Config{Topic: "turns"})
		Expect(err).To(HaveOccurred())

		_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(HaveOccurred())
	})

	It("returns ErrNilTurnEvent for nil events", func() {
		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
	})

	It("writes the event keyed by conversation key", func() {
		event := &eventstream.TurnCompletedEvent{
			EventType:    eventstream.EventTypeTurnCompleted,
			EventID:      "evt_1",
			Conversation: eventstream.ConversationMeta{Key: "abc", TurnID: 3},
		}
		Expect(p.PublishTurn(context.Background(), event)).To(Succeed())

		Expect(w.messages).To(HaveLen(1))
		Expect(string(w.messages[0].Key)).To(Equal("abc"))

		var got map[string]any
		Expect(json.Unmarshal(w.messages[0].Value, &got)).To(Succeed())
		Expect(got["event_id"]).To(Equal("evt_1"))
	})

	It("wraps writer failures", func() {
		w.err = errors.New("broker down")
		err := p.PublishTurn(context.Background(), &eventstream.TurnCompletedEvent{})
		Expect(err).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
