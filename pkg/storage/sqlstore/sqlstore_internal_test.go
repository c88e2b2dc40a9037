package sqlstore

import (
	"time"

	"entgo.io/ent/dialect"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("windowQuery", func() {
	It("uses positional placeholders for SQLite", func() {
		s := &Store{dialect: dialect.SQLite}
		q := s.windowQuery()
		Expect(q).To(ContainSubstring("conversation_key = ?"))
		Expect(q).To(ContainSubstring("turn_rank <= ? OR turn_rank > turn_total - ?"))
		Expect(q).To(ContainSubstring("response <> ''"))
	})

	It("uses numbered placeholders for PostgreSQL", func() {
		s := &Store{dialect: dialect.Postgres}
		q := s.windowQuery()
		Expect(q).To(ContainSubstring("conversation_key = $1"))
		Expect(q).To(ContainSubstring("turn_rank <= $2 OR turn_rank > turn_total - $3"))
	})
})

var _ = Describe("parseTime", func() {
	It("passes time values through in UTC", func() {
		in := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
		out, err := parseTime(in)
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Equal(in)).To(BeTrue())
		Expect(out.Location()).To(Equal(time.UTC))
	})

	It("parses go-sqlite3 text timestamps", func() {
		out, err := parseTime("2024-05-01 12:00:00.5+00:00")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(time.Date(2024, 5, 1, 12, 0, 0, 500000000, time.UTC)))
	})

	It("rejects garbage", func() {
		_, err := parseTime("yesterday")
		Expect(err).To(HaveOccurred())
	})
})
