package events

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestEvents(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Events Suite")
}

var _ = Describe("EventBus", func() {
	var bus *EventBus

	BeforeEach(func() {
		bus = NewEventBus(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
	})

	It("delivers an event to every handler of its type", func() {
		var calls atomic.Int32
		var got atomic.Value
		bus.Subscribe(EventTypeRequestSubmitted, func(_ context.Context, e Event) error {
			got.Store(e.(*RequestSubmittedEvent).RequestID)
			calls.Add(1)
			return nil
		})
		bus.Subscribe(EventTypeRequestSubmitted, func(context.Context, Event) error {
			calls.Add(1)
			return errors.New("mail down")
		})
		bus.Subscribe(EventTypeRequestDecided, func(context.Context, Event) error {
			calls.Add(100)
			return nil
		})

		err := bus.Publish(context.Background(), NewRequestSubmittedEvent("req-1", "Eve", "eve@example.com", "bonus", 10, "mgr-1"))
		bus.Wait()

		Expect(err).NotTo(HaveOccurred())
		Expect(calls.Load()).To(Equal(int32(2)))
		Expect(got.Load()).To(Equal("req-1"))
	})

	It("keeps running handlers after the publisher's context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		var seen atomic.Value
		bus.Subscribe(EventTypeRequestDecided, func(ctx context.Context, _ Event) error {
			seen.Store(ctx.Err() == nil)
			return nil
		})

		Expect(bus.Publish(ctx, NewRequestDecidedEvent("req-1", "Eve", "eve@example.com", "bonus", 10, "rejected", "Max", "no"))).To(Succeed())
		cancel()
		bus.Wait()

		Expect(seen.Load()).To(BeTrue())
	})

	It("ignores events nobody listens to", func() {
		Expect(bus.Publish(context.Background(), BaseEvent{ID: "x", Type: "unknown"})).To(Succeed())
	})
})
