package provider

import (
	"context"
	"fmt"
	neturl "net/url"
	"path"
	"path/filepath"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/wrapped"
	"github.com/cavaliercoder/grab"
	"golang.org/x/oauth2"
)

const (
	URLTypeName = "HttpFileSystem"

	ParamURLPattern = "url_pattern"
	// ParamToken is a bearer token
	ParamToken  = "token"
	ParamCookie = "cookie"
	// ParamCopyAuthOnRedirect copies the basic auth header when the server redirects the request
	ParamCopyAuthOnRedirect = "copy_auth_on_redirect"
)

// URLStorage downloads the products from an http(s) url.
// The archives are unarchived unless the parameter unarchive is false.
type URLStorage struct {
	remote
	types     *datatype.Registry
	url       func(entry common.DataSetMetaInfo) (string, error)
	cookie    string
	unarchive bool
	client    *grab.Client
}

// NewURLStorage creates a storage that must be initialized with Init
func NewURLStorage(types *datatype.Registry) *URLStorage {
	return &URLStorage{types: types}
}

// NewURLRemote is a constructor for wrapped.FileSystemConstructor
func NewURLRemote(types *datatype.Registry) wrapped.RemoteStorage {
	return NewURLStorage(types)
}

func (s *URLStorage) Init(ctx context.Context, params map[string]string) error {
	if err := s.remote.init(URLTypeName, params, ParamURLPattern); err != nil {
		return err
	}
	pattern := params[ParamURLPattern]
	s.cookie = params[ParamCookie]
	s.url = func(entry common.DataSetMetaInfo) (string, error) {
		return common.FormatBrackets(pattern, PatternInfo(s.types, entry)), nil
	}
	return s.configure()
}

func (s *URLStorage) configure() error {
	var err error
	if s.unarchive, err = boolParam(s.name, s.params, ParamUnarchive, true); err != nil {
		return err
	}
	copyAuth, err := boolParam(s.name, s.params, ParamCopyAuthOnRedirect, false)
	if err != nil {
		return err
	}
	s.client = grab.NewClient()
	if token := s.params[ParamToken]; token != "" {
		s.client.HTTPClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	if copyAuth {
		s.client.HTTPClient.CheckRedirect = checkRedirectAndCopyAuth
	}
	return nil
}

// FetchRemote downloads the file of the entry in localDir
func (s *URLStorage) FetchRemote(ctx context.Context, entry common.DataSetMetaInfo, localDir string) ([]common.FileRef, error) {
	url, err := s.url(entry)
	if err != nil {
		return nil, fmt.Errorf("FetchRemote.%w", err)
	}
	u, err := neturl.Parse(url)
	if err != nil {
		return nil, fmt.Errorf("FetchRemote.Parse: %w", err)
	}

	localFile := filepath.Join(localDir, path.Base(u.Path))
	req, err := grab.NewRequest(localFile, url)
	if err != nil {
		return nil, fmt.Errorf("FetchRemote.NewRequest: %w", err)
	}
	if s.params[ParamUsername] != "" {
		req.HTTPRequest.SetBasicAuth(s.params[ParamUsername], s.params[ParamPassword])
	}
	if s.cookie != "" {
		req.HTTPRequest.Header.Add("Cookie", s.cookie)
	}
	if err := download(ctx, s.client, req, s.name+":"+entry.BaseName()); err != nil {
		return nil, fmt.Errorf("FetchRemote.%w", err)
	}

	refs, err := fileRefs(ctx, []string{localFile}, entry, s.unarchive, localDir)
	if err != nil {
		return nil, fmt.Errorf("FetchRemote.%w", err)
	}
	return refs, nil
}
