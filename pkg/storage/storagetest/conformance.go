// Package storagetest holds the behavioural specs every storage.Driver must
// satisfy. Driver packages register them from their own suites.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/storage"
)

// DescribeDriver registers the conformance specs for a driver. newDriver is
// called before every spec and the returned driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	newKey := func(key, userID string) *conversation.Key {
		k := &conversation.Key{
			Key:    key,
			UserID: userID,
			Preset: "json_generator",
			Model:  "grok",
			Topic:  "instructions",
			Title:  "Unnamed 1",
		}
		Expect(driver.CreateKey(ctx, k)).To(Succeed())
		return k
	}

	addTurn := func(key, question, response string) *conversation.Turn {
		turn, err := driver.CreateTurn(ctx, &conversation.Turn{
			ConversationKey: key,
			Question:        question,
		})
		Expect(err).NotTo(HaveOccurred())
		if response != "" {
			Expect(driver.FillResponse(ctx, turn.ID, response)).To(Succeed())
			turn.Response = response
		}
		return turn
	}

	Describe("keys", func() {
		It("stores and retrieves a key", func() {
			newKey("k1", "u1")

			got, err := driver.GetKey(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.UserID).To(Equal("u1"))
			Expect(got.Model).To(Equal("grok"))
			Expect(got.Topic).To(Equal("instructions"))
			Expect(got.CreatedAt.IsZero()).To(BeFalse())
			Expect(got.Saved).To(BeFalse())
		})

		It("returns NotFoundError for unknown keys", func() {
			_, err := driver.GetKey(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("lists and counts only the owner's live keys", func() {
			newKey("k1", "u1")
			newKey("k2", "u1")
			newKey("k3", "u2")
			Expect(driver.DeleteKey(ctx, "k2")).To(Succeed())

			keys, err := driver.ListKeys(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(HaveLen(1))
			Expect(keys[0].Key).To(Equal("k1"))

			n, err := driver.CountKeys(ctx, "u1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(1))
		})

		It("hides soft-deleted keys from every read", func() {
			newKey("k1", "u1")
			addTurn("k1", "q", "r")
			Expect(driver.DeleteKey(ctx, "k1")).To(Succeed())

			_, err := driver.GetKey(ctx, "k1")
			Expect(storage.IsNotFound(err)).To(BeTrue())

			_, err = driver.Turns(ctx, "k1")
			Expect(storage.IsNotFound(err)).To(BeTrue())

			_, err = driver.WindowTurns(ctx, "k1", 2)
			Expect(storage.IsNotFound(err)).To(BeTrue())

			_, err = driver.CreateTurn(ctx, &conversation.Turn{ConversationKey: "k1", Question: "q"})
			Expect(storage.IsNotFound(err)).To(BeTrue())

			Expect(storage.IsNotFound(driver.DeleteKey(ctx, "k1"))).To(BeTrue())
			Expect(storage.IsNotFound(driver.SetSaved(ctx, "k1", true))).To(BeTrue())
		})

		It("saves a key together with its turns", func() {
			newKey("k1", "u1")
			addTurn("k1", "q1", "r1")
			addTurn("k1", "q2", "r2")

			Expect(driver.SetSaved(ctx, "k1", true)).To(Succeed())

			got, err := driver.GetKey(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Saved).To(BeTrue())

			turns, err := driver.Turns(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			for _, t := range turns {
				Expect(t.Saved).To(BeTrue())
			}
		})
	})

	Describe("turns", func() {
		BeforeEach(func() {
			newKey("k1", "u1")
		})

		It("assigns increasing ids", func() {
			a := addTurn("k1", "q1", "")
			b := addTurn("k1", "q2", "")
			Expect(b.ID).To(BeNumerically(">", a.ID))
			Expect(a.CreatedAt.IsZero()).To(BeFalse())
		})

		It("rejects turns for unknown keys", func() {
			_, err := driver.CreateTurn(ctx, &conversation.Turn{ConversationKey: "missing", Question: "q"})
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("fills a response exactly once", func() {
			turn := addTurn("k1", "q", "")
			Expect(driver.FillResponse(ctx, turn.ID, "first")).To(Succeed())
			Expect(driver.FillResponse(ctx, turn.ID, "second")).To(MatchError(storage.ErrResponseAlreadySet))

			turns, err := driver.Turns(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns[0].Response).To(Equal("first"))
		})

		It("reports unknown turns on fill and delete", func() {
			Expect(storage.IsNotFound(driver.FillResponse(ctx, 9999, "r"))).To(BeTrue())
			Expect(storage.IsNotFound(driver.DeleteTurn(ctx, 9999))).To(BeTrue())
		})

		It("deletes a turn", func() {
			turn := addTurn("k1", "q", "")
			Expect(driver.DeleteTurn(ctx, turn.ID)).To(Succeed())

			turns, err := driver.Turns(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(BeEmpty())
		})

		It("returns turns in creation order", func() {
			for i := range 5 {
				addTurn("k1", fmt.Sprintf("q%d", i), fmt.Sprintf("r%d", i))
			}

			turns, err := driver.Turns(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(5))
			for i, t := range turns {
				Expect(t.Question).To(Equal(fmt.Sprintf("q%d", i)))
				Expect(t.ConversationKey).To(Equal("k1"))
			}
		})

		It("orders by created_at before id", func() {
			base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			late, err := driver.CreateTurn(ctx, &conversation.Turn{ConversationKey: "k1", Question: "late", CreatedAt: base.Add(time.Hour)})
			Expect(err).NotTo(HaveOccurred())
			early, err := driver.CreateTurn(ctx, &conversation.Turn{ConversationKey: "k1", Question: "early", CreatedAt: base})
			Expect(err).NotTo(HaveOccurred())
			Expect(early.ID).To(BeNumerically(">", late.ID))

			turns, err := driver.Turns(ctx, "k1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns[0].Question).To(Equal("early"))
			Expect(turns[1].Question).To(Equal("late"))
		})

		It("assigns unique ids under concurrent writers", func() {
			var (
				wg  sync.WaitGroup
				mu  sync.Mutex
				ids = make(map[int64]struct{})
			)
			for i := range 10 {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					turn, err := driver.CreateTurn(ctx, &conversation.Turn{ConversationKey: "k1", Question: fmt.Sprintf("q%d", i)})
					Expect(err).NotTo(HaveOccurred())
					mu.Lock()
					ids[turn.ID] = struct{}{}
					mu.Unlock()
				}(i)
			}
			wg.Wait()
			Expect(ids).To(HaveLen(10))
		})
	})

	Describe("WindowTurns", func() {
		BeforeEach(func() {
			newKey("k1", "u1")
		})

		questions := func(turns []*conversation.Turn) []string {
			out := make([]string, 0, len(turns))
			for _, t := range turns {
				out = append(out, t.Question)
			}
			return out
		}

		It("returns short conversations whole", func() {
			addTurn("k1", "q0", "r0")
			addTurn("k1", "q1", "r1")
			addTurn("k1", "q2", "r2")

			turns, err := driver.WindowTurns(ctx, "k1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(questions(turns)).To(Equal([]string{"q0", "q1", "q2"}))
		})

		It("keeps the first and last turns of long conversations", func() {
			for i := range 7 {
				addTurn("k1", fmt.Sprintf("q%d", i), fmt.Sprintf("r%d", i))
			}

			turns, err := driver.WindowTurns(ctx, "k1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(questions(turns)).To(Equal([]string{"q0", "q1", "q5", "q6"}))
			Expect(turns[3].Response).To(Equal("r6"))
		})

		It("excludes pending turns", func() {
			for i := range 5 {
				addTurn("k1", fmt.Sprintf("q%d", i), fmt.Sprintf("r%d", i))
			}
			addTurn("k1", "pending", "")

			turns, err := driver.WindowTurns(ctx, "k1", 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(questions(turns)).To(Equal([]string{"q0", "q1", "q3", "q4"}))
		})

		It("normalizes a non-positive keep", func() {
			for i := range 6 {
				addTurn("k1", fmt.Sprintf("q%d", i), fmt.Sprintf("r%d", i))
			}

			turns, err := driver.WindowTurns(ctx, "k1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(4))
		})
	})
}
