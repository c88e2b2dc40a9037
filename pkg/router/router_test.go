package router_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/tokens"
	"github.com/papercomputeco/parley/pkg/logger"
	"github.com/papercomputeco/parley/pkg/router"
	testutils "github.com/papercomputeco/parley/pkg/utils/test"
)

func turns(pairs ...string) []*conversation.Turn {
	out := make([]*conversation.Turn, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, &conversation.Turn{ID: int64(i/2 + 1), Question: pairs[i], Response: pairs[i+1]})
	}
	return out
}

func roles(history []llm.Message) []string {
	out := make([]string, 0, len(history))
	for _, m := range history {
		out = append(out, m.Role)
	}
	return out
}

var _ = Describe("Reconstruct", func() {
	It("maps the handshake to a system entry and its acknowledgment", func() {
		history := router.Reconstruct(turns("instructions", "ack"), false)
		Expect(history).To(Equal([]llm.Message{
			{Role: llm.RoleSystem, Content: "instructions"},
			{Role: llm.RoleAssistant, Content: "ack"},
		}))
	})

	It("pairs every later turn", func() {
		history := router.Reconstruct(turns("instructions", "ack", "q1", "r1", "q2", "r2"), false)
		Expect(roles(history)).To(Equal([]string{"system", "assistant", "user", "assistant", "user", "assistant"}))
		Expect(history[4].Content).To(Equal("q2"))
		Expect(history[5].Content).To(Equal("r2"))
	})

	It("omits intermediate assistant entries when asked", func() {
		history := router.Reconstruct(turns("instructions", "ack", "q1", "r1", "q2", "r2"), true)
		Expect(roles(history)).To(Equal([]string{"system", "assistant", "user", "user"}))
	})

	It("returns an empty history for no turns", func() {
		Expect(router.Reconstruct(nil, false)).To(BeEmpty())
	})
})

var _ = Describe("Router", func() {
	var (
		r    *router.Router
		mock *testutils.MockProvider
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = testutils.NewMockProvider()
		r = router.New(logger.Nop(), router.WithTokenCounter(tokens.ApproxCounter{}))
		r.Register("grok", router.Route{Provider: mock, UpstreamModel: "grok-2-latest"})
	})

	It("lists registered models", func() {
		r.Register("deepseek", router.Route{Provider: mock})
		Expect(r.Models()).To(Equal([]string{"deepseek", "grok"}))
		Expect(r.Has("grok")).To(BeTrue())
		Expect(r.Has("gpt")).To(BeFalse())
	})

	It("rejects unrouted models without calling any adapter", func() {
		_, err := r.Dispatch(ctx, "gpt", turns("i", "a"), "q")
		Expect(err).To(MatchError(router.ErrUnsupportedModel))
		Expect(mock.Calls()).To(BeEmpty())
	})

	It("replays the reconstructed history and appends the exchange", func() {
		mock.Reply = `{"success":true}`

		d, err := r.Dispatch(ctx, "grok", turns("instructions", "ack", "q1", "r1"), "q2")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.RawResponse).To(Equal(`{"success":true}`))
		Expect(d.Kind).To(Equal("mock"))
		Expect(d.UpstreamModel).To(Equal("grok-2-latest"))
		Expect(d.PromptTokens).To(BeNumerically(">", 0))

		calls := mock.Calls()
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].NewMessage).To(Equal("q2"))
		Expect(roles(calls[0].History)).To(Equal([]string{"system", "assistant", "user", "assistant"}))

		Expect(roles(d.History)).To(Equal([]string{"system", "assistant", "user", "assistant", "user", "assistant"}))
		Expect(d.History[5].Content).To(Equal(`{"success":true}`))
	})

	It("wraps adapter failures", func() {
		mock.Err = testutils.ErrMockProvider

		_, err := r.Dispatch(ctx, "grok", turns("i", "a"), "q")
		var perr *router.ProviderError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(perr.Model).To(Equal("grok"))
		Expect(perr.Kind).To(Equal("mock"))
		Expect(err).To(MatchError(testutils.ErrMockProvider))
	})
})
