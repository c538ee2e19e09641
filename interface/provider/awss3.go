package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/airbusgeo/geocube-datastore/wrapped"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	AwsS3TypeName = "AwsS3FileSystem"

	ParamBucket          = "bucket"
	ParamRegion          = "region"
	ParamPrefixPattern   = "prefix_pattern"
	ParamAccessKeyID     = "access_key_id"
	ParamSecretAccessKey = "secret_access_key"
	ParamRequestPayer    = "request_payer"
	ParamAnonymous       = "anonymous"
	// ParamEndpoint overrides the endpoint of the service
	ParamEndpoint = "endpoint"

	// Default configuration: Landsat 8/9 collection 2 of the USGS
	landsatAwsBucket         = "usgs-landsat"
	landsatAwsPrefixTemplate = "collection02/level-1/standard/{COLLECTION}/{YEAR}/{PATH}/{ROW}/{NAME}/"
	landsatAwsRegion         = "us-west-2"
)

// AwsS3Storage downloads all the objects of the prefix of the product from an AWS S3 bucket
type AwsS3Storage struct {
	remote
	types         *datatype.Registry
	bucket        string
	prefixPattern string
	requestPayer  s3types.RequestPayer
	client        *s3.Client
	downloader    *manager.Downloader
}

// NewAwsS3Remote is a constructor for wrapped.FileSystemConstructor
func NewAwsS3Remote(types *datatype.Registry) wrapped.RemoteStorage {
	return &AwsS3Storage{types: types}
}

// Init configures the storage. Without parameters, the storage downloads the Landsat 8/9 products
// from the requester-pays bucket of the USGS.
func (s *AwsS3Storage) Init(ctx context.Context, params map[string]string) error {
	if err := s.remote.init(AwsS3TypeName, params); err != nil {
		return err
	}
	s.bucket = s.param(ParamBucket, landsatAwsBucket)
	s.prefixPattern = s.param(ParamPrefixPattern, landsatAwsPrefixTemplate)
	s.requestPayer = s3types.RequestPayer(s.param(ParamRequestPayer, "requester"))
	if s.requestPayer == "none" {
		s.requestPayer = ""
	}

	anonymous, err := boolParam(s.name, params, ParamAnonymous, false)
	if err != nil {
		return err
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(s.param(ParamRegion, landsatAwsRegion))}
	switch {
	case anonymous:
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	case params[ParamAccessKeyID] != "":
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(params[ParamAccessKeyID], params[ParamSecretAccessKey], "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("%s config.LoadDefaultConfig: %w", s.name, err)
	}

	// Create an Amazon S3 service client
	s.client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint := params[ParamEndpoint]; endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	s.downloader = manager.NewDownloader(s.client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})
	return nil
}

// Prefix returns the prefix of the objects of the entry
func (s *AwsS3Storage) Prefix(entry common.DataSetMetaInfo) string {
	return common.FormatBrackets(s.prefixPattern, PatternInfo(s.types, entry))
}

// FetchRemote downloads the objects of the prefix of the entry in a directory of localDir
func (s *AwsS3Storage) FetchRemote(ctx context.Context, entry common.DataSetMetaInfo, localDir string) ([]common.FileRef, error) {
	prefix := s.Prefix(entry)
	productDir := filepath.Join(localDir, datatype.ProductName(entry.Identifier))

	paginator := s3.NewListObjectsV2Paginator(s.client,
		&s3.ListObjectsV2Input{
			Bucket:       aws.String(s.bucket),
			Prefix:       aws.String(prefix),
			RequestPayer: s.requestPayer,
		},
		func(o *s3.ListObjectsV2PaginatorOptions) {
			o.Limit = 200 // much more than the the typical number of files in a product (i.e. the pagination mechanism exists but is expected to process only one page)
		},
	)

	nbFiles := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, service.MakeTemporary(fmt.Errorf("FetchRemote.NextPage: %w", err))
		}

		for _, object := range page.Contents {
			objectKey := aws.ToString(object.Key)
			relPath := strings.TrimPrefix(strings.TrimPrefix(objectKey, prefix), "/")
			if relPath == "" || strings.HasSuffix(relPath, "/") {
				continue
			}
			log.Logger(ctx).Sugar().Debugf("[%s] download s3://%s/%s", s.name, s.bucket, objectKey)
			if err := s.downloadSingleObjectToFile(ctx, objectKey, filepath.Join(productDir, filepath.FromSlash(relPath))); err != nil {
				return nil, fmt.Errorf("FetchRemote.%w", err)
			}
			nbFiles++
		}
	}
	if nbFiles == 0 {
		return nil, service.ErrProductNotFound{Product: fmt.Sprintf("s3://%s/%s", s.bucket, prefix)}
	}
	return []common.FileRef{common.NewFileRef(productDir, entry)}, nil
}

func (s *AwsS3Storage) downloadSingleObjectToFile(ctx context.Context, objectKey string, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: %w", err)
	}
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadSingleObjectToFile: failed to create file %s: %w", localPath, err)
	}
	defer file.Close()

	_, err = s.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(objectKey),
		RequestPayer: s.requestPayer,
	})
	if err != nil {
		err = fmt.Errorf("downloadSingleObjectToFile: failed to download object %s:%s: %w", s.bucket, objectKey, err)
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return err
		}
		return service.MakeTemporary(err)
	}

	return nil
}
