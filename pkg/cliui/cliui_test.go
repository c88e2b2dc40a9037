package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/cliui"
)

var _ = Describe("cliui", func() {
	Describe("FormatDuration", func() {
		It("uses milliseconds below a second", func() {
			Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
		})

		It("uses seconds with one decimal above", func() {
			Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
		})
	})

	Describe("Mark", func() {
		It("distinguishes success and failure", func() {
			Expect(cliui.Mark(nil)).To(Equal(cliui.SuccessMark))
			Expect(cliui.Mark(errors.New("boom"))).To(Equal(cliui.FailMark))
		})
	})

	Describe("Step", func() {
		It("returns the step error and prints the message", func() {
			var buf bytes.Buffer
			boom := errors.New("boom")

			err := cliui.Step(&buf, "asking", func() error { return boom })
			Expect(err).To(MatchError(boom))
			Expect(buf.String()).To(ContainSubstring("asking"))
		})
	})

	Describe("ConversationKey", func() {
		It("shortens long keys", func() {
			out := cliui.ConversationKey("0f8e2c3a-1111-2222-3333-444455556666")
			Expect(out).To(ContainSubstring("0f8e2c3a…"))
			Expect(out).NotTo(ContainSubstring("1111"))
		})

		It("keeps short keys whole", func() {
			Expect(cliui.ConversationKey("abc")).To(ContainSubstring("abc"))
		})
	})

	Describe("RenderReply", func() {
		It("indents structured replies", func() {
			out, err := cliui.RenderReply(`{"answer":"yes","score":2}`, true, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("answer"))
			Expect(out).To(ContainSubstring("score"))
			Expect(out).NotTo(ContainSubstring(`{"answer"`))
		})

		It("renders raw replies as markdown", func() {
			out, err := cliui.RenderReply("plain **text**", false, 60)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("plain"))
			Expect(out).To(ContainSubstring("text"))
		})
	})

	Describe("RenderMarkdown", func() {
		It("keeps the text of the content", func() {
			out, err := cliui.RenderMarkdown("hello **world**", 40)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(ContainSubstring("hello"))
			Expect(out).To(ContainSubstring("world"))
		})
	})
})
