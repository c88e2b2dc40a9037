package parleycmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	parleycmder "github.com/papercomputeco/parley/cmd/parley"
)

func subcommand(root *cobra.Command, name string) *cobra.Command {
	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

var _ = Describe("NewParleyCmd", func() {
	It("registers every subcommand", func() {
		cmd := parleycmder.NewParleyCmd()
		for _, name := range []string{"serve", "mcp", "chat", "config", "version"} {
			Expect(subcommand(cmd, name)).NotTo(BeNil(), name)
		}
	})

	It("has the global flags", func() {
		cmd := parleycmder.NewParleyCmd()
		debug := cmd.PersistentFlags().Lookup("debug")
		Expect(debug).NotTo(BeNil())
		Expect(debug.Shorthand).To(Equal("d"))
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})
})

var _ = Describe("parley serve", func() {
	It("takes flag defaults from the default config", func() {
		serve := subcommand(parleycmder.NewParleyCmd(), "serve")

		listen := serve.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.Shorthand).To(Equal("l"))
		Expect(listen.DefValue).To(Equal(":8090"))

		Expect(serve.Flags().Lookup("storage").DefValue).To(Equal("memory"))
		Expect(serve.Flags().Lookup("window-size").DefValue).To(Equal("2"))
		Expect(serve.Flags().Lookup("provider-timeout").DefValue).To(Equal("60s"))
		Expect(serve.Flags().Lookup("kafka-topic").DefValue).To(Equal("parley.turns"))
		Expect(serve.Flags().Lookup("no-mcp").DefValue).To(Equal("false"))
	})

	Context("with an invalid configuration", func() {
		var (
			configDir string
			out       bytes.Buffer
		)

		BeforeEach(func() {
			configDir = GinkgoT().TempDir()
			out.Reset()
		})

		run := func(args ...string) error {
			cmd := parleycmder.NewParleyCmd()
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(append([]string{"serve", "--config-dir", configDir}, args...))
			return cmd.Execute()
		}

		It("rejects sqlite storage without a path", func() {
			err := run("--storage", "sqlite")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("storage.sqlite_path is required"))
		})

		It("rejects an unknown storage driver from config.toml", func() {
			Expect(os.WriteFile(filepath.Join(configDir, "config.toml"),
				[]byte("[storage]\ndriver = \"mongo\"\n"), 0o600)).To(Succeed())

			err := run()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(`unknown storage.driver "mongo"`))
		})

		It("lets flags win over config.toml", func() {
			Expect(os.WriteFile(filepath.Join(configDir, "config.toml"),
				[]byte("[storage]\ndriver = \"memory\"\n"), 0o600)).To(Succeed())

			err := run("--storage", "postgres")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("storage.postgres_dsn is required"))
		})

		It("rejects an unsupported config version", func() {
			Expect(os.WriteFile(filepath.Join(configDir, "config.toml"),
				[]byte("version = 7\n"), 0o600)).To(Succeed())

			err := run()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version 7"))
		})
	})
})

var _ = Describe("parley mcp", func() {
	It("requires a bearer token", func() {
		GinkgoT().Setenv("PARLEY_CLIENT_TOKEN", "")

		cmd := parleycmder.NewParleyCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"mcp", "--config-dir", GinkgoT().TempDir()})

		err := cmd.Execute()
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("bearer token is required"))
	})

	It("shares the storage flags with serve", func() {
		mcp := subcommand(parleycmder.NewParleyCmd(), "mcp")
		Expect(mcp.Flags().Lookup("token")).NotTo(BeNil())
		Expect(mcp.Flags().Lookup("storage").DefValue).To(Equal("memory"))
		Expect(mcp.Flags().Lookup("sqlite")).NotTo(BeNil())
	})
})

var _ = Describe("parley version", func() {
	It("prints the build version", func() {
		cmd := parleycmder.NewParleyCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"version"})

		Expect(cmd.Execute()).To(Succeed())
		Expect(out.String()).To(HavePrefix("parley dev\n"))
	})
})
