package workload

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RandomGenerator", func() {
	It("should stay within the pages of the process", func() {
		g := NewRandomGenerator(rand.New(rand.NewSource(1)), 32, 1024)

		writes := 0
		for i := 0; i < 10000; i++ {
			address, isWrite := g.Next()
			Expect(address).To(BeNumerically("<", 32*1024))
			if isWrite {
				writes++
			}
		}

		Expect(writes).To(BeNumerically("~", 3000, 300))
	})

	It("should be reproducible with the same seed", func() {
		factory := RandomGeneratorFactory(42, 32, 1024)
		a := factory(0, 3)
		b := factory(5, 3)
		c := factory(0, 4)

		sameAsC := true
		for i := 0; i < 100; i++ {
			addrA, writeA := a.Next()
			addrB, writeB := b.Next()
			addrC, _ := c.Next()
			Expect(addrA).To(Equal(addrB))
			Expect(writeA).To(Equal(writeB))
			if addrA != addrC {
				sameAsC = false
			}
		}

		Expect(sameAsC).To(BeFalse())
	})

	It("should not terminate before the first check", func() {
		g := NewRandomGenerator(rand.New(rand.NewSource(1)), 32, 1024)

		for refs := 0; refs < MinTerminationPeriod; refs++ {
			Expect(g.ShouldTerminate(refs)).To(BeFalse())
		}
	})

	It("should eventually terminate", func() {
		g := NewRandomGenerator(rand.New(rand.NewSource(9)), 32, 1024)

		refs := 0
		for !g.ShouldTerminate(refs) {
			refs++
			Expect(refs).To(BeNumerically("<", 1_000_000))
		}

		Expect(refs).To(BeNumerically(">=", MinTerminationPeriod))
	})
})

var _ = Describe("ScriptedGenerator", func() {
	It("should replay the accesses", func() {
		g := NewScriptedGenerator(
			Access{Address: 10},
			Access{Address: 2048, IsWrite: true},
		)

		Expect(g.ShouldTerminate(0)).To(BeFalse())
		address, isWrite := g.Next()
		Expect(address).To(Equal(uint32(10)))
		Expect(isWrite).To(BeFalse())

		Expect(g.ShouldTerminate(1)).To(BeFalse())
		address, isWrite = g.Next()
		Expect(address).To(Equal(uint32(2048)))
		Expect(isWrite).To(BeTrue())

		Expect(g.ShouldTerminate(2)).To(BeTrue())
	})

	It("should terminate at once with an empty script", func() {
		Expect(NewScriptedGenerator().ShouldTerminate(0)).To(BeTrue())
	})
})
