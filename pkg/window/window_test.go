package window_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/parley/pkg/window"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

var _ = Describe("Window", func() {
	It("returns short sequences unchanged", func() {
		for n := 0; n <= 4; n++ {
			Expect(window.Window(seq(n), 2)).To(Equal(seq(n)))
		}
	})

	It("keeps the first and last two turns of a long conversation", func() {
		Expect(window.Window(seq(5), 2)).To(Equal([]int{0, 1, 3, 4}))
		Expect(window.Window(seq(10), 2)).To(Equal([]int{0, 1, 8, 9}))
	})

	It("never returns more than 2*keep turns", func() {
		for n := 0; n < 50; n++ {
			Expect(len(window.Window(seq(n), 3))).To(BeNumerically("<=", 6))
		}
	})

	It("preserves the original relative order", func() {
		got := window.Window(seq(37), 4)
		for i := 1; i < len(got); i++ {
			Expect(got[i]).To(BeNumerically(">", got[i-1]))
		}
		Expect(got[0]).To(Equal(0))
		Expect(got[len(got)-1]).To(Equal(36))
	})

	It("falls back to the default keep for non-positive values", func() {
		Expect(window.Window(seq(9), 0)).To(Equal(window.Window(seq(9), window.DefaultKeep)))
		Expect(window.Window(seq(9), -3)).To(Equal([]int{0, 1, 7, 8}))
	})

	It("is deterministic", func() {
		Expect(window.Window(seq(20), 2)).To(Equal(window.Window(seq(20), 2)))
	})
})

var _ = Describe("InWindow", func() {
	DescribeTable("ranked selection",
		func(rank, total, keep int, expected bool) {
			Expect(window.InWindow(rank, total, keep)).To(Equal(expected))
		},
		Entry("first rank", 1, 10, 2, true),
		Entry("second rank", 2, 10, 2, true),
		Entry("middle rank", 5, 10, 2, false),
		Entry("second to last rank", 9, 10, 2, true),
		Entry("last rank", 10, 10, 2, true),
		Entry("short conversation", 3, 4, 2, true),
	)
})
