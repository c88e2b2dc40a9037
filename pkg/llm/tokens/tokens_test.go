package tokens_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/tokens"
)

var _ = Describe("ApproxCounter", func() {
	var counter tokens.Counter

	BeforeEach(func() {
		counter = tokens.ApproxCounter{}
	})

	It("counts only the reply priming for an empty history", func() {
		Expect(counter.Count(nil)).To(Equal(3))
	})

	It("grows with the replayed content", func() {
		short := counter.Count([]llm.Message{llm.NewTextMessage(llm.RoleUser, "hi")})
		long := counter.Count([]llm.Message{
			llm.NewTextMessage(llm.RoleUser, "hi"),
			llm.NewTextMessage(llm.RoleAssistant, "a considerably longer answer than the question"),
		})
		Expect(long).To(BeNumerically(">", short))
	})
})
