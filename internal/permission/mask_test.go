package permission_test

import (
	"math/rand"

	"github.com/frahmantamala/access-control/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Mask", func() {
	It("agrees with shifting the raw value for every bit", func() {
		rng := rand.New(rand.NewSource(42))
		values := []uint64{0, 1, 0b0011, 0b1111, 1 << 63, ^uint64(0)}
		for i := 0; i < 200; i++ {
			values = append(values, rng.Uint64())
		}

		for _, v := range values {
			m := permission.Mask(v)
			for bit := 0; bit <= permission.MaxBitPosition; bit++ {
				Expect(m.Has(bit)).To(Equal((v>>uint(bit))&1 == 1), "value %b bit %d", v, bit)
			}
		}
	})

	It("builds values by OR-ing granted bits", func() {
		m := permission.Mask(0)
		var err error
		m, err = m.With(0)
		Expect(err).NotTo(HaveOccurred())
		m, err = m.With(1)
		Expect(err).NotTo(HaveOccurred())

		Expect(uint64(m)).To(Equal(uint64(0b0011)))
		Expect(m.Bits()).To(Equal([]int{0, 1}))
	})

	It("is idempotent when the same bit is granted twice", func() {
		m, _ := permission.Mask(0).With(3)
		again, _ := m.With(3)
		Expect(again).To(Equal(m))
	})

	DescribeTable("rejects bits outside 0..63 instead of wrapping",
		func(bit int) {
			m, err := permission.Mask(0b1).With(bit)
			Expect(err).To(MatchError(permission.ErrBitOutOfRange))
			Expect(m).To(Equal(permission.Mask(0b1)))
			Expect(m.Has(bit)).To(BeFalse())
		},
		Entry("negative", -1),
		Entry("just above width", 64),
		Entry("far above width", 65),
	)

	It("grants nothing when the value is zero", func() {
		m := permission.Mask(0)
		Expect(m.IsZero()).To(BeTrue())
		Expect(m.Bits()).To(BeEmpty())
		for bit := 0; bit <= permission.MaxBitPosition; bit++ {
			Expect(m.Has(bit)).To(BeFalse())
		}
	})

	It("round trips the high bit through signed storage", func() {
		m, err := permission.Mask(0).With(63)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Int64()).To(BeNumerically("<", 0))
		Expect(permission.FromInt64(m.Int64())).To(Equal(m))
	})

	It("clears a bit with Without", func() {
		m := permission.Mask(0b1011).Without(1)
		Expect(m.Bits()).To(Equal([]int{0, 3}))
	})
})
