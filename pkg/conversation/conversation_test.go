package conversation_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/conversation"
)

var _ = Describe("NewKey", func() {
	It("returns a 64 character hex key", func() {
		key, err := conversation.NewKey("user-1", "grok", "json_generator")
		Expect(err).NotTo(HaveOccurred())
		Expect(key).To(MatchRegexp(`^[0-9a-f]{64}$`))
	})

	It("never repeats for the same binding", func() {
		seen := make(map[string]struct{})
		for range 100 {
			key, err := conversation.NewKey("user-1", "grok", "json_generator")
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).NotTo(HaveKey(key))
			seen[key] = struct{}{}
		}
	})
})

var _ = Describe("DefaultTitle", func() {
	It("numbers from one", func() {
		Expect(conversation.DefaultTitle(0)).To(Equal("Unnamed 1"))
		Expect(conversation.DefaultTitle(4)).To(Equal("Unnamed 5"))
	})
})

var _ = Describe("Turn", func() {
	It("is answered once it has a response", func() {
		turn := &conversation.Turn{Question: "q"}
		Expect(turn.Answered()).To(BeFalse())
		turn.Response = "r"
		Expect(turn.Answered()).To(BeTrue())
	})
})

var _ = Describe("SerializeQuestion", func() {
	It("keeps text verbatim", func() {
		s, err := conversation.SerializeQuestion("  hello ")
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal("  hello "))
	})

	It("encodes structured payloads as compact json", func() {
		s, err := conversation.SerializeQuestion(map[string]any{"message": "a greeting message"})
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(`{"message":"a greeting message"}`))
	})

	It("compacts raw json", func() {
		s, err := conversation.SerializeQuestion(json.RawMessage(`{ "a" : [1, 2] }`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(`{"a":[1,2]}`))
	})

	It("unwraps a raw json string", func() {
		s, err := conversation.SerializeQuestion(json.RawMessage(`"hi"`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal("hi"))
	})

	It("keeps markup and large numbers intact", func() {
		s, err := conversation.SerializeQuestion(json.RawMessage(`{"html":"<p>a & b</p>","id":12345678901234567890}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(Equal(`{"html":"<p>a & b</p>","id":12345678901234567890}`))
	})

	It("serializes nil as empty", func() {
		s, err := conversation.SerializeQuestion(nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(s).To(BeEmpty())
	})
})

var _ = Describe("IsEmpty", func() {
	DescribeTable("empty payloads",
		func(serialized string, expected bool) {
			Expect(conversation.IsEmpty(serialized)).To(Equal(expected))
		},
		Entry("blank", "", true),
		Entry("whitespace", " \n\t", true),
		Entry("empty json string", `""`, true),
		Entry("null", "null", true),
		Entry("empty object", "{}", true),
		Entry("empty object with spaces", "{ }", true),
		Entry("empty array", "[]", true),
		Entry("blank json string", `"   "`, true),
		Entry("text", "hello", false),
		Entry("object", `{"a":1}`, false),
		Entry("zero", "0", false),
		Entry("false", "false", false),
	)
})
