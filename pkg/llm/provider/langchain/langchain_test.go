package langchain_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/provider/langchain"
)

var _ = Describe("LangChain Provider", func() {
	var (
		server   *httptest.Server
		captured map[string]any
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/chat/completions"))
			Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"id": "chatcmpl-1",
				"object": "chat.completion",
				"created": 1700000000,
				"model": "grok-2-latest",
				"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"success\":true}"}, "finish_reason": "stop"}],
				"usage": {"prompt_tokens": 5, "completion_tokens": 3, "total_tokens": 8}
			}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns 'langchain' as its name", func() {
		p, err := langchain.New("grok-2-latest", server.URL+"/v1", "test", llm.Sampling{})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Name()).To(Equal("langchain"))
	})

	It("replays history to an OpenAI-compatible endpoint", func() {
		maxTokens := 150
		p, err := langchain.New("grok-2-latest", server.URL+"/v1", "test", llm.Sampling{MaxTokens: &maxTokens})
		Expect(err).NotTo(HaveOccurred())

		out, err := p.SendMessage(context.Background(), []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "instructions"),
			llm.NewTextMessage(llm.RoleAssistant, "ack"),
		}, `{"message":"a greeting"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`{"success":true}`))

		Expect(captured["model"]).To(Equal("grok-2-latest"))
		messages := captured["messages"].([]any)
		Expect(messages).To(HaveLen(3))
		Expect(messages[0].(map[string]any)["role"]).To(Equal("system"))
		Expect(messages[1].(map[string]any)["role"]).To(Equal("assistant"))
		Expect(messages[2].(map[string]any)["role"]).To(Equal("user"))
	})
})
