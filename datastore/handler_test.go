package datastore_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datastore"
	"github.com/airbusgeo/geocube-datastore/datatype"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		server   *httptest.Server
		p1, p2   *MokeProvider
		fs1, fs2 *MokeFileSystem
		e1, e2   common.DataSetMetaInfo
	)

	BeforeEach(func() {
		types := datatype.Default()
		e1 = s2Entry("S2A_MSIL1C_20170304T104021_N0204_R008_T31TCJ_20170304T104245.SAFE")
		e2 = s2Entry("S2A_MSIL1C_20170304T104021_N0204_R008_T31TCK_20170304T104245.SAFE")
		p1 = &MokeProvider{dataTypes: []string{datatype.S2L1C}, entries: []common.DataSetMetaInfo{e1}}
		p2 = &MokeProvider{dataTypes: []string{datatype.S2L1C}, entries: []common.DataSetMetaInfo{e2}}
		fs1 = &MokeFileSystem{files: []common.DataSetMetaInfo{e1}}
		fs2 = &MokeFileSystem{readOnly: true}
		f, err := datastore.NewFederation(datastore.New("one", fs1, p1, types), datastore.New("two", fs2, p2, types))
		Expect(err).NotTo(HaveOccurred())
		server = httptest.NewServer(f.NewHandler())
	})

	AfterEach(func() {
		server.Close()
	})

	get := func(path string, v interface{}) int {
		resp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK && v != nil {
			Expect(json.NewDecoder(resp.Body).Decode(v)).To(Succeed())
		}
		return resp.StatusCode
	}

	do := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, server.URL+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("should list the stores", func() {
		var ids []string
		Expect(get("/stores", &ids)).To(Equal(http.StatusOK))
		Expect(ids).To(Equal([]string{"one", "two"}))

		var types []string
		Expect(get("/datatypes", &types)).To(Equal(http.StatusOK))
		Expect(types).To(Equal([]string{datatype.S2L1C}))

		Expect(get("/datatypes?constellation=sentinel-2", &types)).To(Equal(http.StatusOK))
		Expect(types).To(Equal([]string{datatype.S2L1C}))
		Expect(get("/datatypes?constellation=pleiades", &types)).To(Equal(http.StatusOK))
		Expect(types).To(BeEmpty())
	})

	It("should query the federation", func() {
		var res map[string][]common.DataSetMetaInfo
		Expect(get("/query?types="+datatype.S2L1C, &res)).To(Equal(http.StatusOK))
		Expect(res).To(Equal(map[string][]common.DataSetMetaInfo{"one": {e1}, "two": {e2}}))

		Expect(get("/query?q="+url.QueryEscape(";;;"+datatype.S2L1C), &res)).To(Equal(http.StatusOK))
		Expect(res).To(HaveLen(2))
	})

	It("should query a store", func() {
		var res []common.DataSetMetaInfo
		Expect(get("/stores/two/query/local?types="+datatype.S2L1C, &res)).To(Equal(http.StatusOK))
		Expect(res).To(Equal([]common.DataSetMetaInfo{e2}))

		Expect(get("/stores/two/query/nonlocal?types="+datatype.S2L1C, &res)).To(Equal(http.StatusOK))
		Expect(res).To(BeEmpty())

		Expect(get("/stores/three/query?types="+datatype.S2L1C, nil)).To(Equal(http.StatusNotFound))
	})

	It("should accept a GeoJSON region of interest", func() {
		roi := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1],[0,0]]]}`
		var res []common.DataSetMetaInfo
		Expect(get("/stores/one/query?types="+datatype.S2L1C+"&roi="+url.QueryEscape(roi), &res)).To(Equal(http.StatusOK))
		Expect(res).To(Equal([]common.DataSetMetaInfo{e1}))

		Expect(get("/stores/one/query?roi="+url.QueryEscape(`{"type":"Point","coordinates":[0,0]}`), nil)).To(Equal(http.StatusBadRequest))
	})

	It("should reject a malformed query", func() {
		Expect(get("/query?q="+url.QueryEscape(";;"), nil)).To(Equal(http.StatusBadRequest))
		Expect(get("/query?roi=POINT(0+0)", nil)).To(Equal(http.StatusBadRequest))
	})

	It("should get the files of the entries", func() {
		body, err := json.Marshal([]common.DataSetMetaInfo{e1, e2})
		Expect(err).NotTo(HaveOccurred())
		resp := do("POST", "/get", string(body))
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var refs map[string][]common.FileRef
		Expect(json.NewDecoder(resp.Body).Decode(&refs)).To(Succeed())
		Expect(refs).To(HaveKey("one"))
		Expect(refs["one"][0].URL).To(Equal(e1.Identifier))
		Expect(p1.retrieved).To(Equal([]common.DataSetMetaInfo{e1}))

		resp2 := do("POST", "/stores/two/get", "not json")
		resp2.Body.Close()
		Expect(resp2.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("should put a file in a writable store", func() {
		source := "/inbox/S2A_MSIL1C_20170304T104021_N0204_R008_T31TCL_20170304T104245.SAFE"
		resp := do("POST", "/stores/one/put?url="+url.QueryEscape(source), "")
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))
		var entry common.DataSetMetaInfo
		Expect(json.NewDecoder(resp.Body).Decode(&entry)).To(Succeed())
		Expect(entry.DataType).To(Equal(datatype.S2L1C))
		Expect(p1.updated).To(Equal([]common.DataSetMetaInfo{entry}))

		resp2 := do("POST", "/stores/two/put?url="+url.QueryEscape(source), "")
		resp2.Body.Close()
		Expect(resp2.StatusCode).To(Equal(http.StatusForbidden))

		resp3 := do("POST", "/stores/one/put", "")
		resp3.Body.Close()
		Expect(resp3.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("should reconcile and clear the cache", func() {
		resp := do("PUT", "/update", "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		Expect(p2.removed).To(Equal([]common.DataSetMetaInfo{e2}))

		resp = do("PUT", "/stores/one/clearcache", "")
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		Expect(fs1.cleared).To(BeTrue())
	})

	It("should return the descriptor of a store", func() {
		var d datastore.StoreDescriptor
		Expect(get("/stores/one", &d)).To(Equal(http.StatusOK))
		Expect(d.ID).To(Equal("one"))
		Expect(d.FileSystem.Type).To(Equal("MokeFileSystem"))
		Expect(d.MetaInfoProvider.Type).To(Equal("MokeProvider"))
	})
})
