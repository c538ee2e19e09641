package service

import (
	"context"
	"fmt"
	"reflect"
	"testing"
)

func checkPageQueryParams(t *testing.T, clientPage int, clientLimit int, catalogLimit int, pageQueryParams []PageQueryParam, pageQueryParamsRef []PageQueryParam) {
	if reflect.DeepEqual(pageQueryParams, pageQueryParamsRef) == false {
		fmt.Printf("---- PageQueryParams ----- clientPage=%d clientLimit=%d catalogLimit=%d\n", clientPage, clientLimit, catalogLimit)
		for _, pageQueryParam := range pageQueryParams {
			fmt.Printf("  Limit: %d Page %d firstRowToSelect: %d lastRowToSelect: %d\n", pageQueryParam.Limit, pageQueryParam.Page, pageQueryParam.FirstRowToSelect, pageQueryParam.LastRowToSelect)
		}
		t.Errorf("ComputePagesToQuery(%d, %d, %d)", clientPage, clientLimit, catalogLimit)
	}
}

func TestComputePagesToQuery(t *testing.T) {

	clientPage := 1
	clientLimit := 10
	catalogLimit := 10
	pageQueryParams := ComputePagesToQuery(clientPage, clientLimit, catalogLimit)
	pageQueryParamsRef := []PageQueryParam{
		{Limit: 10, Page: 1, FirstRowToSelect: 0, LastRowToSelect: 9},
	}
	checkPageQueryParams(t, clientPage, clientLimit, catalogLimit, pageQueryParams, pageQueryParamsRef)

	clientPage = 2
	clientLimit = 3
	catalogLimit = 2
	pageQueryParams = ComputePagesToQuery(clientPage, clientLimit, catalogLimit)
	pageQueryParamsRef = []PageQueryParam{
		{Limit: 2, Page: 3, FirstRowToSelect: 0, LastRowToSelect: 1},
		{Limit: 2, Page: 4, FirstRowToSelect: 0, LastRowToSelect: 0},
	}
	checkPageQueryParams(t, clientPage, clientLimit, catalogLimit, pageQueryParams, pageQueryParamsRef)

	clientPage = 1
	clientLimit = 3
	catalogLimit = 2
	pageQueryParams = ComputePagesToQuery(clientPage, clientLimit, catalogLimit)
	pageQueryParamsRef = []PageQueryParam{
		{Limit: 2, Page: 1, FirstRowToSelect: 1, LastRowToSelect: 1},
		{Limit: 2, Page: 2, FirstRowToSelect: 0, LastRowToSelect: 1},
	}
	checkPageQueryParams(t, clientPage, clientLimit, catalogLimit, pageQueryParams, pageQueryParamsRef)

	clientPage = 1
	clientLimit = 7
	catalogLimit = 2
	pageQueryParams = ComputePagesToQuery(clientPage, clientLimit, catalogLimit)
	pageQueryParamsRef = []PageQueryParam{
		{Limit: 2, Page: 3, FirstRowToSelect: 1, LastRowToSelect: 1},
		{Limit: 2, Page: 4, FirstRowToSelect: 0, LastRowToSelect: 1},
		{Limit: 2, Page: 5, FirstRowToSelect: 0, LastRowToSelect: 1},
		{Limit: 2, Page: 6, FirstRowToSelect: 0, LastRowToSelect: 1},
	}
	checkPageQueryParams(t, clientPage, clientLimit, catalogLimit, pageQueryParams, pageQueryParamsRef)

	//t.Errorf("not implemented")
}

func TestQueryGetResult(t *testing.T) {
	hits := []string{"a", "b", "c"}
	if r := QueryGetResult(&PageQueryParam{FirstRowToSelect: 1, LastRowToSelect: 5}, hits); !reflect.DeepEqual(r, []string{"b", "c"}) {
		t.Errorf("expect [b c] found %v", r)
	}
	if r := QueryGetResult(&PageQueryParam{FirstRowToSelect: 4, LastRowToSelect: 5}, hits); len(r) != 0 {
		t.Errorf("expect [] found %v", r)
	}
}

func TestNewRequestWithAuth(t *testing.T) {
	req, err := NewRequestWithAuth(context.Background(), "https://catalog.example.org/search", "", "", "token")
	if err != nil {
		t.Fatal(err)
	}
	if h := req.Header.Get("Authorization"); h != "Bearer token" {
		t.Errorf("expect 'Bearer token' found '%s'", h)
	}
	req, err = NewRequestWithAuth(context.Background(), "https://catalog.example.org/search", "user", "pswd", "")
	if err != nil {
		t.Fatal(err)
	}
	if u, p, ok := req.BasicAuth(); !ok || u != "user" || p != "pswd" {
		t.Errorf("expect basic auth user:pswd found %s:%s", u, p)
	}
}
