package kernel

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	It("should have a valid default", func() {
		c := DefaultConfig()

		Expect(c.Validate()).To(Succeed())
		Expect(c.TotalProcesses).To(Equal(100))
		Expect(c.MaxConcurrent).To(Equal(18))
		Expect(c.LaunchInterval).To(Equal(uint64(1_000_000_000)))
		Expect(c.NumFrames).To(Equal(128))
		Expect(c.PagesPerProcess).To(Equal(32))
		Expect(c.PageSize).To(Equal(uint32(1024)))
	})

	DescribeTable("invalid configs",
		func(mutate func(c *Config)) {
			c := DefaultConfig()
			mutate(&c)

			err := c.Validate()

			Expect(errors.Is(err, ErrInvalidConfig)).To(BeTrue())
		},
		Entry("no process", func(c *Config) { c.TotalProcesses = 0 }),
		Entry("no concurrency", func(c *Config) { c.MaxConcurrent = 0 }),
		Entry("too much concurrency", func(c *Config) { c.MaxConcurrent = 19 }),
		Entry("no launch interval", func(c *Config) { c.LaunchInterval = 0 }),
		Entry("no frame", func(c *Config) { c.NumFrames = 0 }),
		Entry("no page", func(c *Config) { c.PagesPerProcess = 0 }),
		Entry("no page size", func(c *Config) { c.PageSize = 0 }),
		Entry("no tick", func(c *Config) { c.TickQuantum = 0 }),
		Entry("negative limit", func(c *Config) { c.WallClockLimit = -1 }),
		Entry("no channel capacity", func(c *Config) { c.ChannelCapacity = 0 }),
		Entry("address space too large", func(c *Config) {
			c.PagesPerProcess = 1 << 20
			c.PageSize = 1 << 13
		}),
	)
})
