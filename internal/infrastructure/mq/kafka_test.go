package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestProducerSendMessage(t *testing.T) {
	sp := mocks.NewSyncProducer(t, ProducerConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"status":"COMPLETED"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	p := NewProducer(sp)
	if err := p.SendMessage("payment_result", "TXN-1", `{"status":"COMPLETED"}`); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducerSendMessageError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, ProducerConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	p := NewProducer(sp)
	err := p.SendMessage("payment_result", "TXN-1", "{}")
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	p.Close()
}
