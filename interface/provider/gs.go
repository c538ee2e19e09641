package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/airbusgeo/geocube-datastore/wrapped"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const (
	GSTypeName = "GoogleStorageFileSystem"

	// ParamBucketPattern is a comma-separated list of patterns (gs://bucket/path/{SCENE}.SAFE) tried in order.
	// A pattern ending with .zip is unarchived. A pattern may contain "*" and "?" wildcards.
	ParamBucketPattern = "bucket_pattern"
)

// GSStorage downloads the products from Google Storage buckets (e.g. public Sentinel2 and Landsat buckets)
type GSStorage struct {
	remote
	types    *datatype.Registry
	patterns []string
	options  []option.ClientOption

	mu     sync.Mutex
	client *storage.Client
}

// NewGSRemote is a constructor for wrapped.FileSystemConstructor
func NewGSRemote(types *datatype.Registry) wrapped.RemoteStorage {
	return &GSStorage{types: types}
}

func (s *GSStorage) Init(ctx context.Context, params map[string]string) error {
	if err := s.remote.init(GSTypeName, params, ParamBucketPattern); err != nil {
		return err
	}
	s.patterns = service.SplitList(params[ParamBucketPattern])
	for _, p := range s.patterns {
		if _, _, err := parseGsURL(p); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	anonymous, err := boolParam(s.name, params, ParamAnonymous, false)
	if err != nil {
		return err
	}
	s.options = nil
	if anonymous {
		s.options = append(s.options, option.WithoutAuthentication())
	}
	if endpoint := params[ParamEndpoint]; endpoint != "" {
		s.options = append(s.options, option.WithEndpoint(endpoint))
	}
	return nil
}

// storageClient returns the client, creating it on first use
func (s *GSStorage) storageClient(ctx context.Context) (*storage.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		client, err := storage.NewClient(context.Background(), s.options...)
		if err != nil {
			return nil, fmt.Errorf("storage.NewClient: %w", err)
		}
		s.client = client
	}
	return s.client, nil
}

// parseGsURL splits gs://bucket/object
func parseGsURL(url string) (bucket, object string, err error) {
	if !strings.HasPrefix(url, "gs://") {
		return "", "", fmt.Errorf("invalid gs url: %s", url)
	}
	bucket, object, _ = strings.Cut(strings.TrimPrefix(url, "gs://"), "/")
	if bucket == "" {
		return "", "", fmt.Errorf("missing bucket: %s", url)
	}
	return bucket, object, nil
}

// URLs returns the urls of the entry, one per pattern
func (s *GSStorage) URLs(entry common.DataSetMetaInfo) []string {
	info := PatternInfo(s.types, entry)
	urls := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		urls[i] = common.FormatBrackets(p, info)
	}
	return urls
}

// FetchRemote downloads the product from the first bucket providing it
func (s *GSStorage) FetchRemote(ctx context.Context, entry common.DataSetMetaInfo, localDir string) ([]common.FileRef, error) {
	client, err := s.storageClient(ctx)
	if err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("FetchRemote.%w", err))
	}
	err = nil
	for _, url := range s.URLs(entry) {
		refs, e := s.fetch(ctx, client, url, entry, localDir)
		if e == nil {
			return refs, nil
		}
		log.Logger(ctx).Sugar().Debugf("[%s] %s: %v", s.name, url, e)
		err = service.MergeErrors(false, err, fmt.Errorf("FetchRemote[%s].%w", url, e))
	}
	return nil, err
}

func (s *GSStorage) fetch(ctx context.Context, client *storage.Client, url string, entry common.DataSetMetaInfo, localDir string) ([]common.FileRef, error) {
	var err error
	if strings.ContainsAny(url, "*?") {
		if url, err = findBlob(ctx, client, url); err != nil {
			return nil, err
		}
	}
	bucket, object, err := parseGsURL(url)
	if err != nil {
		return nil, err
	}
	if isArchive(object) {
		localZip := filepath.Join(localDir, filepath.Base(object))
		if err := downloadToFile(ctx, client, bucket, object, localZip); err != nil {
			return nil, fmt.Errorf("downloadZip.%w", err)
		}
		return fileRefs(ctx, []string{localZip}, entry, true, localDir)
	}
	dstDir := filepath.Join(localDir, filepath.Base(strings.TrimRight(object, "/")))
	files, err := downloadDirectory(ctx, client, bucket, object, dstDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, service.ErrProductNotFound{Product: url}
	}
	return []common.FileRef{common.NewFileRef(dstDir, entry)}, nil
}

// findBlob returns the first blob that matches the url pattern
func findBlob(ctx context.Context, client *storage.Client, url string) (string, error) {
	bucket, blob, err := parseGsURL(url)
	if err != nil {
		return "", err
	}
	// Create a regexp from blob, replacing "*" by ".*" and "?" by "."
	blobRe := strings.ReplaceAll(strings.ReplaceAll(regexp.QuoteMeta(blob), "\\*", ".*"), "\\?", ".")
	re, err := regexp.Compile(blobRe)
	if err != nil {
		return "", fmt.Errorf("compile[%s]: %w", blobRe, err)
	}
	// Extract the prefix
	if i := strings.IndexAny(blob, "*?"); i != -1 {
		blob = blob[:i]
	}
	// Find all the blobs that match the prefix
	it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: blob})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return "", service.MakeTemporary(fmt.Errorf("list[%s/%s*]: %w", bucket, blob, err))
		}
		if idx := re.FindStringIndex(attrs.Name); idx != nil && idx[0] == 0 {
			return "gs://" + bucket + "/" + attrs.Name[:idx[1]], nil
		}
	}
	return url, service.ErrProductNotFound{Product: url}
}

func downloadToFile(ctx context.Context, client *storage.Client, bucket, object, localFile string) error {
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return service.ErrProductNotFound{Product: "gs://" + bucket + "/" + object}
		}
		return service.MakeTemporary(fmt.Errorf("downloadToFile.NewReader: %w", err))
	}
	defer r.Close()
	f, err := os.Create(localFile)
	if err != nil {
		return fmt.Errorf("downloadToFile.Create: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return service.MakeTemporary(fmt.Errorf("downloadToFile.Copy: %w", err))
	}
	return nil
}

// downloadDirectory fetches all objects prefixed by prefix to dstDir
// It returns the list of absolute filenames that were created (i.e with the destination prefix)
func downloadDirectory(ctx context.Context, client *storage.Client, bucket, prefix, dstDir string) ([]string, error) {
	prefix = strings.TrimRight(prefix, "/")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5)

	var files []string
	filemu := sync.Mutex{}

	q := &storage.Query{Prefix: prefix, Versions: false}
	if err := q.SetAttrSelection([]string{"Name"}); err != nil {
		return nil, fmt.Errorf("downloadDirectory: %w", err)
	}
	it := client.Bucket(bucket).Objects(gctx, q)
	for {
		objectAttrs, iterr := it.Next()
		if iterr == iterator.Done {
			break
		}
		if iterr != nil {
			g.Wait()
			return nil, service.MakeTemporary(fmt.Errorf("bucket iterate: %w", iterr))
		}
		filename := strings.TrimPrefix(objectAttrs.Name, prefix)
		if filename == "" || strings.HasSuffix(filename, "/") {
			continue
		}
		filename = filepath.Join(dstDir, filepath.FromSlash(filename))
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			g.Wait()
			return nil, fmt.Errorf("mkdirall %s: %w", filepath.Dir(filename), err)
		}
		object := objectAttrs.Name
		g.Go(func() error {
			if err := downloadToFile(gctx, client, bucket, object, filename); err != nil {
				return err
			}
			filemu.Lock()
			files = append(files, filename)
			filemu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("downloadDirectory.%w", err)
	}
	return files, nil
}
