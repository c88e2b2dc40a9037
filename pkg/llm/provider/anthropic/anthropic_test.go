package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/llm/provider/anthropic"
)

type capturedRequest struct {
	Model       string   `json:"model"`
	System      string   `json:"system"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

var _ = Describe("Anthropic Provider", func() {
	var (
		server   *httptest.Server
		captured capturedRequest
		headers  http.Header
		status   int
		reply    string
	)

	BeforeEach(func() {
		status = http.StatusOK
		reply = `{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"{\"success\":true}"}],"model":"claude","stop_reason":"end_turn"}`

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/v1/messages"))
			headers = r.Header.Clone()

			body, err := io.ReadAll(r.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(json.Unmarshal(body, &captured)).To(Succeed())

			w.WriteHeader(status)
			_, _ = w.Write([]byte(reply))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns 'anthropic' as its name", func() {
		Expect(anthropic.New("claude", server.URL, "key", llm.Sampling{}).Name()).To(Equal("anthropic"))
	})

	It("sends the replayed history in Anthropic's shape", func() {
		temperature := 1.3
		p := anthropic.New("claude-haiku", server.URL, "secret", llm.Sampling{Temperature: &temperature})

		history := []llm.Message{
			llm.NewTextMessage(llm.RoleSystem, "instructions"),
			llm.NewTextMessage(llm.RoleAssistant, "ack"),
			llm.NewTextMessage(llm.RoleUser, "q1"),
			llm.NewTextMessage(llm.RoleAssistant, "r1"),
			llm.NewTextMessage(llm.RoleUser, "q2"),
		}

		out, err := p.SendMessage(context.Background(), history, "q3")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(`{"success":true}`))

		Expect(headers.Get("x-api-key")).To(Equal("secret"))
		Expect(headers.Get("anthropic-version")).To(Equal("2023-06-01"))

		Expect(captured.Model).To(Equal("claude-haiku"))
		Expect(captured.System).To(Equal("instructions"))
		Expect(captured.MaxTokens).To(Equal(1024))
		Expect(*captured.Temperature).To(Equal(1.0))

		Expect(captured.Messages).To(HaveLen(3))
		Expect(captured.Messages[0].Role).To(Equal("user"))
		Expect(captured.Messages[0].Content).To(Equal("q1"))
		Expect(captured.Messages[1].Content).To(Equal("r1"))
		Expect(captured.Messages[2].Role).To(Equal("user"))
		Expect(captured.Messages[2].Content).To(Equal("q2\n\nq3"))
	})

	It("returns an error on a non-200 status", func() {
		status = http.StatusTooManyRequests
		reply = `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`

		_, err := anthropic.New("claude", server.URL, "key", llm.Sampling{}).
			SendMessage(context.Background(), nil, "hi")
		Expect(err).To(MatchError(ContainSubstring("status 429")))
	})

	It("returns an error when the reply has no text", func() {
		reply = `{"id":"msg_1","type":"message","role":"assistant","content":[]}`

		_, err := anthropic.New("claude", server.URL, "key", llm.Sampling{}).
			SendMessage(context.Background(), nil, "hi")
		Expect(err).To(HaveOccurred())
	})
})
