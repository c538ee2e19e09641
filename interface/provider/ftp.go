package provider

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/wrapped"
	"github.com/jlaffaye/ftp"
)

const FTPTypeName = "FtpFileSystem"

// FTPStorage downloads the products from a FTP server
type FTPStorage struct {
	remote
	types       *datatype.Registry
	hote        string
	pathPattern string
	tls         bool
	unarchive   bool
}

// NewFTPRemote is a constructor for wrapped.FileSystemConstructor
func NewFTPRemote(types *datatype.Registry) wrapped.RemoteStorage {
	return &FTPStorage{types: types}
}

// Init configures the storage with the parameter url_pattern: full ftp path, including hote, port and folder tree.
// i.e: ftp://ftp.example.org:21/Images/{SCENE}.zip (See common.FormatBrackets)
// The port 990 uses an implicit TLS connection.
func (s *FTPStorage) Init(ctx context.Context, params map[string]string) error {
	if err := s.remote.init(FTPTypeName, params, ParamURLPattern); err != nil {
		return err
	}
	s.hote, s.pathPattern, s.tls = parseFTPPattern(params[ParamURLPattern])
	var err error
	s.unarchive, err = boolParam(s.name, params, ParamUnarchive, true)
	return err
}

func parseFTPPattern(pathPattern string) (hote, p string, useTLS bool) {
	pathPattern = strings.TrimPrefix(pathPattern, "ftp://")
	splits := strings.SplitN(pathPattern, "/", 2)
	if len(splits) == 1 || splits[1] == "" {
		splits = append(splits[:1], "{SCENE}.zip")
	}
	hote = splits[0]
	splitHote := strings.SplitN(hote, ":", 2)
	if len(splitHote) == 1 {
		hote += ":21"
	}
	return hote, splits[1], len(splitHote) == 2 && splitHote[1] == "990"
}

// FetchRemote downloads the file of the entry in localDir
func (s *FTPStorage) FetchRemote(ctx context.Context, entry common.DataSetMetaInfo, localDir string) ([]common.FileRef, error) {
	p := common.FormatBrackets(s.pathPattern, PatternInfo(s.types, entry))

	// Connection to FTP
	ftpOption := []ftp.DialOption{ftp.DialWithTimeout(5 * time.Second), ftp.DialWithContext(ctx)}
	if s.tls {
		ftpOption = append(ftpOption, ftp.DialWithTLS(&tls.Config{InsecureSkipVerify: true}))
	}
	c, err := ftp.Dial(s.hote, ftpOption...)
	if err != nil {
		return nil, service.MakeTemporary(fmt.Errorf("FetchRemote.Dial: %w", err))
	}
	defer c.Quit()

	if err = c.Login(s.param(ParamUsername, "anonymous"), s.param(ParamPassword, "anonymous")); err != nil {
		return nil, fmt.Errorf("FetchRemote.Login: %w", err)
	}

	// Get file size
	size, _ := c.FileSize(p)

	// Get file stream
	r, err := c.Retr(p)
	if err != nil {
		return nil, fmt.Errorf("FetchRemote.Retr: %w: %w", service.ErrProductNotFound{Product: p}, err)
	}
	defer r.Close()

	// Download to local file
	localFile := filepath.Join(localDir, path.Base(p))
	if err := func() error {
		destFile, err := os.Create(localFile)
		if err != nil {
			return fmt.Errorf("Create: %w", err)
		}
		defer destFile.Close()
		if _, err = io.Copy(destFile, io.TeeReader(r, &WriteCounter{Progress: NewProgress(ctx, s.name+":"+entry.BaseName(), size, 5)})); err != nil {
			return service.MakeTemporary(fmt.Errorf("Copy: %w", err))
		}
		return nil
	}(); err != nil {
		return nil, fmt.Errorf("FetchRemote.%w", err)
	}

	refs, err := fileRefs(ctx, []string{localFile}, entry, s.unarchive, localDir)
	if err != nil {
		return nil, fmt.Errorf("FetchRemote.%w", err)
	}
	return refs, nil
}
