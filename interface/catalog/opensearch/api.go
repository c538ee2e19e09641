package opensearch

// Opensearch specificiations https://github.com/dewitt/opensearch/blob/master/opensearch-1-1-draft-6.md

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/query"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
)

const dateLayout = "2006-01-02T15:04:05.999Z"

type Hits struct {
	Uuid       string           `json:"id"`
	Footprint  geojson.Geometry `json:"geometry"`
	Properties struct {
		Identifier     string `json:"title"`
		BeginPosition  string `json:"startDate"`
		EndPosition    string `json:"completionDate"`
		IngestionDate  string `json:"published"`
		ProductType    string `json:"productType"`
		OrbitDirection string `json:"orbitDirection"`
	} `json:"properties"`
}

// ConstructQuery returns the parameters of the search request (without the paging)
func ConstructQuery(q query.Query, extra string) string {
	parameters := []string{fmt.Sprintf("geometry=%s", neturl.QueryEscape(q.ROIWKT()))}
	if !q.Start.Equal(query.MinTime) {
		parameters = append(parameters, "startDate="+neturl.QueryEscape(q.Start.Format(dateLayout)))
	}
	if !q.End.Equal(query.MaxTime) {
		parameters = append(parameters, "completionDate="+neturl.QueryEscape(q.End.Format(dateLayout)))
	}
	if extra != "" {
		parameters = append(parameters, extra)
	}
	return strings.Join(parameters, "&")
}

// Auth are the credentials of the catalog: basic auth if Username is set, bearer token if Token is set
type Auth struct {
	Username string
	Password string
	Token    string
}

// Query requests the pages of the catalog to retrieve at most limit hits
func Query(ctx context.Context, baseURL, query string, limit, catalogLimit int, auth Auth) ([]Hits, error) {
	var rawscenes []Hits
	totalPages := "?"

	sep := "?"
	if strings.Contains(baseURL, "?") {
		sep = "&"
	}

	for _, queryParams := range service.ComputePagesToQuery(0, limit, catalogLimit) {
		log.Logger(ctx).Sugar().Debugf("[OpenSearch] Search page %d/%s", queryParams.Page+1, totalPages)

		// Load results
		url := baseURL + sep + query + fmt.Sprintf("&maxRecords=%d&page=%d", queryParams.Limit, queryParams.Page+1)
		req, err := service.NewRequestWithAuth(ctx, url, auth.Username, auth.Password, auth.Token)
		if err != nil {
			return nil, fmt.Errorf("Query.%w", err)
		}
		jsonResults, err := service.GetBodyRetryReq(http.DefaultClient, req, 3)
		if err != nil {
			return nil, fmt.Errorf("Query.GetBodyRetry: %w", err)
		}

		results := struct {
			Status     int `json:"status"`
			Properties struct {
				TotalResults int `json:"totalResults"`
				Links        []struct {
					Rel  string `json:"rel"`
					Href string `json:"href"`
				} `json:"links"`
			} `json:"properties"`
			Hits []Hits `json:"features"`
		}{}

		if err := json.Unmarshal(jsonResults, &results); err != nil {
			return nil, fmt.Errorf("Query.Unmarshal : %w (response: %s)", err, jsonResults)
		}

		if results.Status != 0 && results.Status != 200 {
			return nil, fmt.Errorf("Query : http status %d (response: %s)", results.Status, jsonResults)
		}

		rawscenes = append(rawscenes, service.QueryGetResult(&queryParams, results.Hits)...)

		// Is there a next page ?
		nextPage := false
		for _, link := range results.Properties.Links {
			if strings.ToLower(link.Rel) == "next" && link.Href != "" {
				nextPage = true
			}
		}
		if !nextPage || len(rawscenes) >= limit {
			break
		}
		totalPages = strconv.Itoa(results.Properties.TotalResults/queryParams.Limit + 1)
	}

	return rawscenes, nil
}

// Parse converts the hits into catalog entries of the given data type.
// Hits that cannot be converted are logged and skipped.
func Parse(ctx context.Context, dataType string, hits []Hits) []common.DataSetMetaInfo {
	entries := make([]common.DataSetMetaInfo, 0, len(hits))
	for _, hit := range hits {
		e, err := parseHit(dataType, hit)
		if err != nil {
			log.Logger(ctx).Sugar().Warnf("[OpenSearch] skipping %s: %v", hit.Properties.Identifier, err)
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

func parseHit(dataType string, hit Hits) (common.DataSetMetaInfo, error) {
	if hit.Properties.Identifier == "" {
		return common.DataSetMetaInfo{}, fmt.Errorf("parseHit: missing title")
	}
	start, err := time.Parse(time.RFC3339Nano, hit.Properties.BeginPosition)
	if err != nil {
		return common.DataSetMetaInfo{}, fmt.Errorf("parseHit.TimeParse: %w", err)
	}
	end := start
	if hit.Properties.EndPosition != "" {
		if end, err = time.Parse(time.RFC3339Nano, hit.Properties.EndPosition); err != nil {
			return common.DataSetMetaInfo{}, fmt.Errorf("parseHit.TimeParse: %w", err)
		}
	}
	var coverage string
	if hit.Footprint.Geometry != nil {
		if coverage, err = wkt.EncodeString(hit.Footprint.Geometry); err != nil {
			return common.DataSetMetaInfo{}, fmt.Errorf("parseHit.EncodeString: %w", err)
		}
	}
	return common.DataSetMetaInfo{
		Coverage:   coverage,
		StartTime:  start.UTC().Format(query.TimeLayout),
		EndTime:    end.UTC().Format(query.TimeLayout),
		DataType:   dataType,
		Identifier: strings.TrimSuffix(hit.Properties.Identifier, ".SAFE"),
	}, nil
}
