package permission_test

import (
	"encoding/json"

	"github.com/frahmantamala/access-control/internal/permission"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Map", func() {
	var rank func(string) int

	BeforeEach(func() {
		order := map[string]int{"Create": 0, "Read": 1, "Update": 2, "Delete": 3}
		rank = func(a string) int {
			if r, ok := order[a]; ok {
				return r
			}
			return 1 << 10
		}
	})

	It("deduplicates actions added twice", func() {
		m := permission.Map{}
		m.Add("Events", "EventMgmt", "Read")
		m.Add("Events", "EventMgmt", "Read")
		m.Add("Events", "EventMgmt", "Create")

		Expect(m["Events"]["EventMgmt"]).To(ConsistOf("Read", "Create"))
		Expect(m.Has("Events", "EventMgmt", "Create")).To(BeTrue())
		Expect(m.Has("Events", "EventMgmt", "Delete")).To(BeFalse())
		Expect(m.Has("Docs", "EventMgmt", "Create")).To(BeFalse())
	})

	It("encodes identically regardless of insertion order", func() {
		a := permission.Map{}
		a.Add("Events", "EventMgmt", "Delete")
		a.Add("Docs", "Files", "Read")
		a.Add("Events", "EventMgmt", "Create")
		a.Sort(rank)

		b := permission.Map{}
		b.Add("Events", "EventMgmt", "Create")
		b.Add("Events", "EventMgmt", "Delete")
		b.Add("Docs", "Files", "Read")
		b.Sort(rank)

		ja, err := json.Marshal(a)
		Expect(err).NotTo(HaveOccurred())
		jb, err := json.Marshal(b)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(ja)).To(Equal(string(jb)))
		Expect(string(ja)).To(Equal(`{"Docs":{"Files":["Read"]},"Events":{"EventMgmt":["Create","Delete"]}}`))
	})

	It("decodes what it encodes", func() {
		m := permission.Map{}
		m.Add("Events", "EventMgmt", "Create")
		m.Add("Events", "Tasks", "Read")
		raw, _ := json.Marshal(m)

		parsed, err := permission.ParseMap(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Triples()).To(Equal(m.Triples()))
	})

	It("flattens to sorted triples", func() {
		m := permission.Map{}
		m.Add("B", "f", "Read")
		m.Add("A", "g", "Create")
		m.Add("A", "e", "Read")

		Expect(m.Triples()).To(Equal([]permission.Triple{
			{Module: "A", Feature: "e", Action: "Read"},
			{Module: "A", Feature: "g", Action: "Create"},
			{Module: "B", Feature: "f", Action: "Read"},
		}))
		Expect(m.Triples()[0].String()).To(Equal("A.e.Read"))
	})

	It("encodes nil as an empty object", func() {
		var m permission.Map
		raw, err := json.Marshal(m)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal("{}"))
	})

	DescribeTable("rejects claims that do not have the nested shape",
		func(raw string) {
			m, err := permission.ParseMap([]byte(raw))
			Expect(err).To(MatchError(permission.ErrMalformedMap))
			Expect(m).To(BeNil())
		},
		Entry("empty", ``),
		Entry("null", `null`),
		Entry("array at top", `["Events"]`),
		Entry("string at top", `"Events"`),
		Entry("feature not an object", `{"Events": ["Create"]}`),
		Entry("actions not an array", `{"Events": {"EventMgmt": "Create"}}`),
		Entry("null actions", `{"Events": {"EventMgmt": null}}`),
		Entry("numeric action", `{"Events": {"EventMgmt": [1]}}`),
		Entry("nested object action", `{"Events": {"EventMgmt": [{"a": "b"}]}}`),
		Entry("trailing data", `{"Events": {}} {}`),
		Entry("truncated", `{"Events": {"EventMgmt": ["Create"]`),
	)

	It("accepts an empty object", func() {
		m, err := permission.ParseMap([]byte(`{}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(m).To(BeEmpty())
	})
})
