package datastore_test

import (
	"context"
	"errors"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/service"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func s2Entry(name string) common.DataSetMetaInfo {
	return common.DataSetMetaInfo{
		StartTime:  "2017-03-04T10:40:21",
		EndTime:    "2017-03-04T10:40:21",
		DataType:   datatype.S2L1C,
		Identifier: "/store/" + name,
	}
}

var _ = Describe("DataStore", func() {
	var (
		types    *datatype.Registry
		provider *MokeProvider
		fs       *MokeFileSystem
		ds       *datastore.DataStore
		a, b, c  common.DataSetMetaInfo
		other    common.DataSetMetaInfo
	)

	BeforeEach(func() {
		types = datatype.Default()
		a = s2Entry("S2A_MSIL1C_20170304T104021_N0204_R008_T31TCJ_20170304T104245.SAFE")
		b = s2Entry("S2A_MSIL1C_20170304T104021_N0204_R008_T31TCK_20170304T104245.SAFE")
		c = s2Entry("S2A_MSIL1C_20170304T104021_N0204_R008_T31TCL_20170304T104245.SAFE")
		other = common.DataSetMetaInfo{DataType: "MODIS", Identifier: "/store/MOD09GA.hdf"}
		provider = &MokeProvider{dataTypes: []string{datatype.S2L1C}}
		fs = &MokeFileSystem{}
		ds = datastore.New("test", fs, provider, types)
	})

	Describe("reconciliation", func() {
		BeforeEach(func() {
			fs.files = []common.DataSetMetaInfo{a, b, other}
			provider.entries = []common.DataSetMetaInfo{c, a}
		})

		It("should register the new files and remove the stale entries", func() {
			Expect(ds.Update(ctx)).To(Succeed())
			Expect(provider.entries).To(ConsistOf(a, b))
			Expect(provider.updated).To(Equal([]common.DataSetMetaInfo{b}))
			Expect(provider.removed).To(Equal([]common.DataSetMetaInfo{c}))
		})

		It("should be idempotent", func() {
			Expect(ds.Update(ctx)).To(Succeed())
			entries := append([]common.DataSetMetaInfo(nil), provider.entries...)
			Expect(ds.Update(ctx)).To(Succeed())
			Expect(provider.entries).To(Equal(entries))
			Expect(provider.updated).To(HaveLen(1))
			Expect(provider.removed).To(HaveLen(1))
		})

		It("should register the encapsulated data types", func() {
			provider.encapsulated = []string{"MODIS"}
			Expect(ds.Update(ctx)).To(Succeed())
			Expect(provider.entries).To(ConsistOf(a, b, other))
		})

		It("should compare on the relative path of the data types differing by name", func() {
			moved := a
			moved.Identifier = "/old/location/" + a.BaseName()
			provider.entries = []common.DataSetMetaInfo{moved}
			Expect(ds.Update(ctx)).To(Succeed())
			Expect(provider.updated).To(Equal([]common.DataSetMetaInfo{b}))
			Expect(provider.removed).To(BeEmpty())
		})

		It("should clear the cache then reconcile", func() {
			Expect(ds.ClearCache(ctx)).To(Succeed())
			Expect(fs.cleared).To(BeTrue())
			Expect(provider.entries).To(ConsistOf(a, b))
		})
	})

	Describe("put", func() {
		source := "/inbox/S2A_MSIL1C_20170304T104021_N0204_R008_T31TCJ_20170304T104245.SAFE"

		It("should extract, store and register the source", func() {
			entry, err := ds.Put(ctx, source)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry.Identifier).To(Equal("/store/S2A_MSIL1C_20170304T104021_N0204_R008_T31TCJ_20170304T104245.SAFE"))
			Expect(entry.DataType).To(Equal(datatype.S2L1C))
			Expect(entry.StartTime).To(Equal("2017-03-04T10:40:21"))
			Expect(provider.updated).To(Equal([]common.DataSetMetaInfo{entry}))
		})

		It("should reject a read-only file system", func() {
			fs.readOnly = true
			_, err := ds.Put(ctx, source)
			Expect(service.IsRejected(err)).To(BeTrue())
			Expect(provider.entries).To(BeEmpty())
			Expect(provider.updated).To(BeEmpty())
		})

		It("should reject a file system without Put", func() {
			ds = datastore.New("test", ReadOnlyFileSystem{fs}, provider, types)
			_, err := ds.Put(ctx, source)
			Expect(service.IsRejected(err)).To(BeTrue())
			Expect(provider.updated).To(BeEmpty())
		})

		It("should reject an unrecognized source", func() {
			_, err := ds.Put(ctx, "/inbox/random.nc")
			Expect(service.IsRejected(err)).To(BeTrue())
			Expect(fs.files).To(BeEmpty())
		})

		It("should reject an unsupported data type", func() {
			_, err := ds.Put(ctx, "/inbox/S2B_MSIL2A_20170304T104021_N0204_R008_T31TCJ_20170304T104245.SAFE")
			Expect(service.IsRejected(err)).To(BeTrue())
			Expect(fs.files).To(BeEmpty())
		})
	})

	Describe("get", func() {
		BeforeEach(func() {
			fs.files = []common.DataSetMetaInfo{a, other}
		})

		It("should return the files and notify the provider", func() {
			refs, err := ds.Get(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			Expect(refs).To(HaveLen(1))
			Expect(refs[0].URL).To(Equal(a.Identifier))
			Expect(provider.retrieved).To(Equal([]common.DataSetMetaInfo{a}))
		})

		It("should not notify the provider when nothing is retrieved", func() {
			refs, err := ds.Get(ctx, b)
			Expect(err).NotTo(HaveOccurred())
			Expect(refs).To(BeEmpty())
			Expect(provider.retrieved).To(BeEmpty())
		})

		It("should reject an unsupported data type", func() {
			refs, err := ds.Get(ctx, other)
			Expect(err).NotTo(HaveOccurred())
			Expect(refs).To(BeEmpty())
		})
	})

	Describe("query", func() {
		BeforeEach(func() {
			provider.entries = []common.DataSetMetaInfo{a, other}
		})

		It("should parse the query and delegate to the provider", func() {
			entries, err := ds.Query(ctx, ";;;"+datatype.S2L1C)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(Equal([]common.DataSetMetaInfo{a}))

			entries, err = ds.QueryNonLocal(ctx, ";;;"+datatype.S2L1C)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("should fail on a malformed query", func() {
			_, err := ds.QueryLocal(ctx, ";;")
			var e service.ErrMalformedQuery
			Expect(errors.As(err, &e)).To(BeTrue())
		})
	})

	Describe("construction", func() {
		It("should check the capabilities of a writable store", func() {
			_, err := datastore.NewWritable("test", fs, provider, types)
			Expect(err).NotTo(HaveOccurred())
			_, err = datastore.NewWritable("test", ReadOnlyFileSystem{fs}, provider, types)
			Expect(err).To(HaveOccurred())
		})

		It("should create a store from its descriptor", func() {
			r := datastore.NewRegistry(types)
			r.RegisterFileSystem("MokeFileSystem", func(ctx context.Context, params map[string]string, types *datatype.Registry) (datastore.FileSystem, error) {
				return fs, nil
			})
			r.RegisterProvider("MokeProvider", func(ctx context.Context, params map[string]string, types *datatype.Registry) (datastore.MetaInfoProvider, error) {
				return provider, nil
			})
			s, err := r.NewDataStore(ctx, ds.Descriptor())
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ID()).To(Equal("test"))
			Expect(s.Descriptor()).To(Equal(ds.Descriptor()))

			_, err = r.NewDataStore(ctx, datastore.StoreDescriptor{ID: "x", FileSystem: common.Descriptor{Type: "Unknown"}})
			var e service.ErrUnknownType
			Expect(errors.As(err, &e)).To(BeTrue())
			Expect(e.Type).To(Equal("Unknown"))
		})
	})
})

var _ = Describe("Federation", func() {
	It("should query all the stores", func() {
		types := datatype.Default()
		e1 := s2Entry("S2A_MSIL1C_20170304T104021_N0204_R008_T31TCJ_20170304T104245.SAFE")
		e2 := s2Entry("S2A_MSIL1C_20170304T104021_N0204_R008_T31TCK_20170304T104245.SAFE")
		p1 := &MokeProvider{dataTypes: []string{datatype.S2L1C}, entries: []common.DataSetMetaInfo{e1}}
		p2 := &MokeProvider{dataTypes: []string{datatype.S2L1C}, entries: []common.DataSetMetaInfo{e2}}
		f, err := datastore.NewFederation(
			datastore.New("one", &MokeFileSystem{files: []common.DataSetMetaInfo{e1}}, p1, types),
			datastore.New("two", &MokeFileSystem{}, p2, types),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(f.IDs()).To(Equal([]string{"one", "two"}))

		res, err := f.Query(ctx, ";;;"+datatype.S2L1C)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(map[string][]common.DataSetMetaInfo{"one": {e1}, "two": {e2}}))

		refs, err := f.Get(ctx, e1, e2)
		Expect(err).NotTo(HaveOccurred())
		Expect(refs).To(HaveKey("one"))
		Expect(refs).NotTo(HaveKey("two"))

		_, err = f.Query(ctx, "")
		Expect(err).To(HaveOccurred())

		Expect(f.Add(datastore.New("three", &FailingFileSystem{}, p2, types))).To(Succeed())
		refs, err = f.Get(ctx, e1, e2)
		Expect(err).NotTo(HaveOccurred())
		Expect(refs).To(HaveKey("one"))
		Expect(refs).NotTo(HaveKey("three"))

		failing, err := datastore.NewFederation(datastore.New("three", &FailingFileSystem{}, p2, types))
		Expect(err).NotTo(HaveOccurred())
		_, err = failing.Get(ctx, e1)
		Expect(err).To(HaveOccurred())

		_, err = datastore.NewFederation(datastore.New("one", &MokeFileSystem{}, p1, types), datastore.New("one", &MokeFileSystem{}, p2, types))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("NonLocal", func() {
	It("should compute the set difference by identity", func() {
		a := common.DataSetMetaInfo{DataType: "t", Identifier: "a"}
		b := common.DataSetMetaInfo{DataType: "t", Identifier: "b"}
		b2 := common.DataSetMetaInfo{DataType: "u", Identifier: "b"}
		Expect(datastore.NonLocal([]common.DataSetMetaInfo{a, b, b2}, []common.DataSetMetaInfo{b})).To(Equal([]common.DataSetMetaInfo{a, b2}))
	})
})
