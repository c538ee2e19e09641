package service

import (
	"context"
	"fmt"
	"net/http"
)

// NewRequestWithAuth creates a GET request with basic auth (if authName is set) or a bearer token (if authToken is set)
func NewRequestWithAuth(ctx context.Context, url, authName, authPswd, authToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequestWithAuth: %w", err)
	}
	if authName != "" {
		req.SetBasicAuth(authName, authPswd)
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	return req, nil
}

// PageQueryParam is a page to request from a paginated catalog and the rows to keep from this page
type PageQueryParam struct {
	Limit            int
	Page             int
	FirstRowToSelect int
	LastRowToSelect  int
}

// ComputePagesToQuery returns the catalog pages (of size catalogLimit) to request in order to retrieve
// the results of the page <clientPage> of size <clientLimit> (pages start at 0)
func ComputePagesToQuery(clientPage, clientLimit, catalogLimit int) []PageQueryParam {
	if clientLimit <= 0 {
		return nil
	}
	if catalogLimit <= 0 || clientLimit <= catalogLimit {
		return []PageQueryParam{{Limit: clientLimit, Page: clientPage, FirstRowToSelect: 0, LastRowToSelect: clientLimit - 1}}
	}
	first := clientPage * clientLimit
	last := first + clientLimit - 1
	var pages []PageQueryParam
	for p := first / catalogLimit; p <= last/catalogLimit; p++ {
		pageFirst := p * catalogLimit
		pages = append(pages, PageQueryParam{
			Limit:            catalogLimit,
			Page:             p,
			FirstRowToSelect: max(first, pageFirst) - pageFirst,
			LastRowToSelect:  min(last, pageFirst+catalogLimit-1) - pageFirst,
		})
	}
	return pages
}

// QueryGetResult returns the rows of the page that have to be selected
func QueryGetResult[T any](params *PageQueryParam, hits []T) []T {
	if params.FirstRowToSelect >= len(hits) {
		return nil
	}
	return hits[params.FirstRowToSelect:min(params.LastRowToSelect+1, len(hits))]
}
