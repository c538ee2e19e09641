package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"sort"
	"strings"
	"time"
)

// StringSet is a set of strings (all elements are unique)
type StringSet map[string]struct{}

// NewStringSet creates a set from a list of strings
func NewStringSet(s ...string) StringSet {
	ss := StringSet{}
	for _, v := range s {
		ss.Push(v)
	}
	return ss
}

// Push adds the string to the set if not already exists
func (ss StringSet) Push(s string) {
	ss[s] = struct{}{}
}

// Pop removes the string from the set
func (ss StringSet) Pop(s string) {
	delete(ss, s)
}

// Slice returns a sorted slice from the set
func (ss StringSet) Slice() []string {
	sl := make([]string, 0, len(ss))
	for k := range ss {
		sl = append(sl, k)
	}
	sort.Strings(sl)
	return sl
}

// Exists returns true if the string already exists in the Set
func (ss StringSet) Exists(s string) bool {
	_, ok := ss[s]
	return ok
}

// SplitList splits a comma-separated list, trimming the elements and dropping the empty ones
func SplitList(s string) []string {
	var list []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list
}

// GetBodyRetryReq: GET with N retries in case of temporary errors, using the given client
func GetBodyRetryReq(client *http.Client, req *http.Request, nbRetries int) ([]byte, error) {
	var e *neturl.Error
	var body []byte
	var err error

	for i := range nbRetries + 1 {
		time.Sleep(time.Duration((1<<i)-1) * time.Second) // Exponential backoff, starting at 0
		body, err = func() ([]byte, error) {
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode != 200 {
				body, _ := io.ReadAll(resp.Body)
				err = fmt.Errorf("%s: %s", resp.Status, body)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
					return nil, err
				}
				return nil, MakeTemporary(err)
			}
			return io.ReadAll(resp.Body)
		}()
		if err == nil {
			return body, nil
		}
		if errors.As(err, &e) && !e.Temporary() && !errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if !errors.As(err, &e) && !Temporary(err) {
			return nil, err
		}
	}
	return nil, err
}
