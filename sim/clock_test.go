package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Clock", func() {
	var clock *Clock

	BeforeEach(func() {
		clock = NewClock()
	})

	It("should start at zero", func() {
		Expect(clock.CurrentTime().IsZero()).To(BeTrue())
	})

	It("should keep nanoseconds below one second after every advance", func() {
		for i := 0; i < 2500; i++ {
			now := clock.Advance(1_000_000)
			Expect(now.Nanoseconds).To(BeNumerically("<", NanosPerSecond))
		}

		Expect(clock.CurrentTime()).
			To(Equal(Time{Seconds: 2, Nanoseconds: 500_000_000}))
	})

	It("should be monotonic", func() {
		prev := clock.CurrentTime()

		for _, ns := range []uint64{100, 14_000_000, 0, 1000, 10_000_000} {
			now := clock.Advance(ns)
			Expect(prev.Before(now) || prev == now).To(BeTrue())
			prev = now
		}
	})
})
