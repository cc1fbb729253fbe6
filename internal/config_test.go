package internal_test

import (
	"os"
	"path/filepath"
	"time"

	"github.com/frahmantamala/leave-management/internal"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func validConfig() *internal.Config {
	cfg := &internal.Config{
		Server:   internal.ServerConfig{Port: 8080, ReadTimeout: 10 * time.Second, ReadHeaderTimeout: 5 * time.Second},
		Database: internal.DatabaseConfig{MaxOpenConns: 10, MaxIdleConns: 2, Source: "postgres://localhost/leave"},
		Security: internal.SecurityConfig{
			AccessTokenSecret:  "0123456789abcdef",
			RefreshTokenSecret: "fedcba9876543210",
			BCryptCost:         10,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

var _ = Describe("Config", func() {
	Describe("Validate", func() {
		It("accepts a complete configuration", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		It("reports struct tag and cross field failures together", func() {
			cfg := validConfig()
			cfg.Database.Source = ""
			cfg.Database.MaxIdleConns = 50
			err := cfg.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("Source"))
			Expect(err.Error()).To(ContainSubstring("max_idle_conns"))
		})

		It("requires a redis address for the redis lock backend", func() {
			cfg := validConfig()
			cfg.Scheduler.LockBackend = "redis"
			Expect(cfg.Validate()).NotTo(Succeed())
			cfg.Scheduler.RedisAddr = "localhost:6379"
			Expect(cfg.Validate()).To(Succeed())
		})

		It("rejects malformed scheduler clocks", func() {
			cfg := validConfig()
			cfg.Scheduler.ReactivateAt = "1am"
			Expect(cfg.Validate()).NotTo(Succeed())
		})
	})

	Describe("ApplyDefaults", func() {
		It("fills the leave policy defaults", func() {
			cfg := &internal.Config{}
			cfg.ApplyDefaults()
			Expect(cfg.Leave.AnnualDays).To(Equal(24))
			Expect(cfg.Leave.MaxCarryover).To(BeZero())
			Expect(cfg.Leave.ShortAbsenceMaxDays).To(Equal(2))
			Expect(cfg.Scheduler.DeactivateAt).To(Equal("00:00"))
			Expect(cfg.Scheduler.ReactivateAt).To(Equal("01:00"))
			Expect(cfg.Storage.AllowedExtensions).To(ContainElement("pdf"))
		})
	})

	Describe("LoadConfigFromEnv", func() {
		It("reads prefixed variables and .env files", func() {
			dir := GinkgoT().TempDir()
			envFile := filepath.Join(dir, ".env")
			Expect(os.WriteFile(envFile, []byte("DB_SOURCE=postgres://env/leave\n"), 0o600)).To(Succeed())
			GinkgoT().Setenv("LEAVE_ANNUAL_DAYS", "30")
			GinkgoT().Setenv("SCHEDULER_LOCK_BACKEND", "memory")

			cfg, err := internal.LoadConfigFromEnv(envFile, filepath.Join(dir, "missing.env"))
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Database.Source).To(Equal("postgres://env/leave"))
			Expect(cfg.Leave.AnnualDays).To(Equal(30))
			Expect(cfg.Leave.MaxCarryover).To(BeZero())
			Expect(cfg.Storage.AllowedExtensions).To(ConsistOf("pdf", "jpg", "jpeg", "png", "doc", "docx"))
			os.Unsetenv("DB_SOURCE")
		})
	})

	Describe("ParseClock", func() {
		It("parses HH:MM", func() {
			h, m, err := internal.ParseClock("01:30")
			Expect(err).NotTo(HaveOccurred())
			Expect(h).To(Equal(1))
			Expect(m).To(Equal(30))
		})
	})
})
