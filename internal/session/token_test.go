package session_test

import (
	"github.com/frahmantamala/access-control/internal/session"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("tokens", func() {
	It("generates 64 hex chars of refresh token, never twice the same", func() {
		a, err := session.NewRefreshToken()
		Expect(err).NotTo(HaveOccurred())
		b, err := session.NewRefreshToken()
		Expect(err).NotTo(HaveOccurred())

		Expect(a).To(MatchRegexp(`^[0-9a-f]{64}$`))
		Expect(a).NotTo(Equal(b))
	})

	It("hashes deterministically with sha256", func() {
		Expect(session.HashRefreshToken("abc")).To(Equal("ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"))
	})

	It("generates numeric codes of the requested length", func() {
		for _, n := range []int{4, 6, 8} {
			code, err := session.GenerateOTP(n)
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(MatchRegexp(`^\d+$`))
			Expect(code).To(HaveLen(n))
		}
	})
})
