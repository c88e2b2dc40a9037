package orchestrator

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("keyLocks", func() {
	It("forgets keys nobody holds", func() {
		l := newKeyLocks()
		unlock, err := l.acquire(context.Background(), "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(l.size()).To(Equal(1))

		unlock()
		Expect(l.size()).To(BeZero())
	})

	It("queues a second holder until release", func() {
		l := newKeyLocks()
		unlock, err := l.acquire(context.Background(), "k")
		Expect(err).NotTo(HaveOccurred())

		acquired := make(chan func())
		go func() {
			u, _ := l.acquire(context.Background(), "k")
			acquired <- u
		}()

		Consistently(acquired, 30*time.Millisecond).ShouldNot(Receive())
		unlock()

		var second func()
		Eventually(acquired).Should(Receive(&second))
		second()
		Expect(l.size()).To(BeZero())
	})

	It("abandons the wait when the context ends", func() {
		l := newKeyLocks()
		unlock, err := l.acquire(context.Background(), "k")
		Expect(err).NotTo(HaveOccurred())
		defer unlock()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = l.acquire(ctx, "k")
		Expect(err).To(MatchError(context.Canceled))
		Expect(l.size()).To(Equal(1))
	})

	It("does not block unrelated keys", func() {
		l := newKeyLocks()
		a, err := l.acquire(context.Background(), "a")
		Expect(err).NotTo(HaveOccurred())
		defer a()

		b, err := l.acquire(context.Background(), "b")
		Expect(err).NotTo(HaveOccurred())
		b()
	})
})
