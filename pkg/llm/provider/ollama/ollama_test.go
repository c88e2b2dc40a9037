package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/provider/ollama"
)

var _ = Describe("Ollama Provider", func() {
	var (
		server   *httptest.Server
		captured map[string]any
		reply    string
	)

	BeforeEach(func() {
		captured = nil
		reply = `{"model":"llama3.2","message":{"role":"assistant","content":"hello back"},"done":true}`

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/api/chat"))
			Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())
			_, _ = w.Write([]byte(reply))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns 'ollama' as its name", func() {
		Expect(ollama.New("llama3.2", server.URL, llm.Sampling{}).Name()).To(Equal("ollama"))
	})

	It("sends history, the new message and sampling options", func() {
		s, err := llm.SamplingProfile(llm.ProfileCodingAndMath)
		Expect(err).NotTo(HaveOccurred())

		p := ollama.New("llama3.2", server.URL, s)
		out, err := p.SendMessage(context.Background(), []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "be brief"),
			llm.NewTextMessage(llm.RoleAssistant, "ok"),
		}, "hello")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hello back"))

		Expect(captured["model"]).To(Equal("llama3.2"))
		Expect(captured["stream"]).To(BeFalse())

		messages := captured["messages"].([]any)
		Expect(messages).To(HaveLen(3))
		last := messages[2].(map[string]any)
		Expect(last["role"]).To(Equal("user"))
		Expect(last["content"]).To(Equal("hello"))

		options := captured["options"].(map[string]any)
		Expect(options["num_predict"]).To(BeNumerically("==", 200))
		Expect(options["temperature"]).To(BeNumerically("==", 0))
	})

	It("omits options when no sampling is configured", func() {
		_, err := ollama.New("llama3.2", server.URL, llm.Sampling{}).SendMessage(context.Background(), nil, "hi")
		Expect(err).NotTo(HaveOccurred())
		Expect(captured).NotTo(HaveKey("options"))
	})

	It("surfaces upstream errors", func() {
		reply = `{"error":"model not found"}`
		_, err := ollama.New("missing", server.URL, llm.Sampling{}).SendMessage(context.Background(), nil, "hi")
		Expect(err).To(MatchError(ContainSubstring("model not found")))
	})

	It("rejects empty replies", func() {
		reply = `{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true}`
		_, err := ollama.New("llama3.2", server.URL, llm.Sampling{}).SendMessage(context.Background(), nil, "hi")
		Expect(err).To(MatchError(llm.ErrEmptyReply))
	})
})
