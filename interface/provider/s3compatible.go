package provider

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/airbusgeo/geocube-datastore/wrapped"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	S3CompatibleTypeName = "S3CompatibleFileSystem"

	ParamAccessKey = "access_key"
	ParamSecretKey = "secret_key"
	ParamUseSSL    = "use_ssl"
)

// S3CompatibleStorage downloads the products from an object storage implementing the S3 API
// (e.g. the EO data of CreoDias or Mundi)
type S3CompatibleStorage struct {
	remote
	types         *datatype.Registry
	bucket        string
	prefixPattern string
	unarchive     bool
	client        *minio.Client
}

// NewS3CompatibleRemote is a constructor for wrapped.FileSystemConstructor
func NewS3CompatibleRemote(types *datatype.Registry) wrapped.RemoteStorage {
	return &S3CompatibleStorage{types: types}
}

func (s *S3CompatibleStorage) Init(ctx context.Context, params map[string]string) error {
	if err := s.remote.init(S3CompatibleTypeName, params, ParamEndpoint, ParamBucket, ParamPrefixPattern); err != nil {
		return err
	}
	useSSL, err := boolParam(s.name, params, ParamUseSSL, true)
	if err != nil {
		return err
	}
	if s.unarchive, err = boolParam(s.name, params, ParamUnarchive, true); err != nil {
		return err
	}
	s.bucket, s.prefixPattern = params[ParamBucket], params[ParamPrefixPattern]
	s.client, err = minio.New(params[ParamEndpoint], &minio.Options{
		Creds:  credentials.NewStaticV4(params[ParamAccessKey], params[ParamSecretKey], ""),
		Secure: useSSL,
		Region: params[ParamRegion],
	})
	if err != nil {
		return fmt.Errorf("%s.New: %w", s.name, err)
	}
	return nil
}

// Prefix returns the prefix of the objects of the entry
func (s *S3CompatibleStorage) Prefix(entry common.DataSetMetaInfo) string {
	return common.FormatBrackets(s.prefixPattern, PatternInfo(s.types, entry))
}

// FetchRemote downloads the objects of the prefix of the entry, relatively to the parent of the prefix.
// If the product is a single archive, it is unarchived.
func (s *S3CompatibleStorage) FetchRemote(ctx context.Context, entry common.DataSetMetaInfo, localDir string) ([]common.FileRef, error) {
	prefix := s.Prefix(entry)
	trimmed := strings.TrimRight(prefix, "/")
	base := trimmed[:strings.LastIndex(trimmed, "/")+1]

	// Cancelling the context stops the lister when returning before the end of the listing
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tops []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, service.MakeTemporary(fmt.Errorf("FetchRemote.ListObjects: %w", obj.Err))
		}
		relPath := strings.TrimPrefix(obj.Key, base)
		if relPath == "" || strings.HasSuffix(relPath, "/") {
			continue
		}
		log.Logger(ctx).Sugar().Debugf("[%s] download %s/%s", s.name, s.bucket, obj.Key)
		if err := s.client.FGetObject(ctx, s.bucket, obj.Key, filepath.Join(localDir, filepath.FromSlash(relPath)), minio.GetObjectOptions{}); err != nil {
			notFound := minio.ToErrorResponse(err).Code == "NoSuchKey"
			err = fmt.Errorf("FetchRemote.FGetObject[%s]: %w", obj.Key, err)
			if notFound {
				return nil, err
			}
			return nil, service.MakeTemporary(err)
		}
		top := filepath.Join(localDir, strings.SplitN(relPath, "/", 2)[0])
		if len(tops) == 0 || tops[len(tops)-1] != top {
			tops = append(tops, top)
		}
	}
	if len(tops) == 0 {
		return nil, service.ErrProductNotFound{Product: s.bucket + "/" + prefix}
	}
	refs, err := fileRefs(ctx, tops, entry, s.unarchive, localDir)
	if err != nil {
		return nil, fmt.Errorf("FetchRemote.%w", err)
	}
	return refs, nil
}
