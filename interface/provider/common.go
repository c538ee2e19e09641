package provider

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/service"
	"github.com/airbusgeo/geocube-datastore/service/log"
	"github.com/cavaliercoder/grab"
	"github.com/mholt/archiver"
)

func fmtBytes(bytes int64) string {
	v := float64(bytes)
	switch {
	case v > 1<<30:
		return fmt.Sprintf("%.2fGo", v/(1<<30))
	case v > 1<<20:
		return fmt.Sprintf("%.2fMo", v/(1<<20))
	case v > 1<<10:
		return fmt.Sprintf("%.2fko", v/(1<<10))
	default:
		return fmt.Sprintf("%.2fo", v)
	}
}

// Progress logs the progress of a download every <period> percents
type Progress struct {
	ctx      context.Context
	prefix   string
	size     int64
	period   float64
	mu       sync.Mutex
	done     int64
	progress float64
	last     time.Time
	lastDone int64
}

// NewProgress creates a Progress for a download of size bytes (size <= 0 if unknown)
func NewProgress(ctx context.Context, prefix string, size int64, periodPercent int) *Progress {
	return &Progress{ctx: ctx, prefix: prefix, size: size, period: float64(periodPercent) / 100, last: time.Now()}
}

// UpdateDelta adds n downloaded bytes
func (p *Progress) UpdateDelta(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	if p.size <= 0 {
		return
	}
	if progress := float64(p.done) / float64(p.size); progress >= p.progress+p.period || p.done == p.size {
		elapsed := time.Since(p.last).Seconds()
		if elapsed <= 0 {
			elapsed = 1
		}
		log.Logger(p.ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", p.prefix, 100*progress, fmtBytes(p.done), fmtBytes(p.size), fmtBytes(int64(float64(p.done-p.lastDone)/elapsed)))
		p.progress, p.last, p.lastDone = progress, time.Now(), p.done
	}
}

// Done returns the number of downloaded bytes
func (p *Progress) Done() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// WriteCounter counts the number of bytes written to it. It implements to the io.Writer interface
// and we can pass this into io.TeeReader() which will report progress on each write cycle.
type WriteCounter struct {
	Progress *Progress
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Progress.UpdateDelta(int64(n))
	return n, nil
}

func displayProgress(ctx context.Context, prefix string, resp *grab.Response, progressPeriod float64) {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	progress, lastBytes, seconds := 0.0, int64(0), int64(0)
	for {
		select {
		case <-t.C:
			seconds++
			if resp.Progress() > progress {
				log.Logger(ctx).Sugar().Debugf("%s: %.2f%% %s/%s (%s/s)", prefix, 100*resp.Progress(), fmtBytes(resp.BytesComplete()), fmtBytes(resp.Size), fmtBytes((resp.BytesComplete()-lastBytes)/seconds))
				seconds = 0
				progress += progressPeriod
				lastBytes = resp.BytesComplete()
			}

		case <-resp.Done:
			return
		}
	}
}

func checkRedirectAndCopyAuth(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("stopped after 10 redirects")
	}
	if auth, ok := via[0].Header["Authorization"]; ok {
		req.Header.Add("Authorization", auth[0])
	}
	return nil
}

// download a file with display every 5%
func download(ctx context.Context, client *grab.Client, req *grab.Request, displayPrefix string) error {
	resp := client.Do(req.WithContext(ctx))

	displayProgress(ctx, displayPrefix, resp, 0.05)

	if err := resp.Err(); err != nil {
		err = fmt.Errorf("download[%s]: %w", req.URL(), err)
		if resp.HTTPResponse == nil {
			return service.MakeTemporary(err)
		}
		switch resp.HTTPResponse.StatusCode {
		case 404:
			return fmt.Errorf("%w: %w", service.ErrProductNotFound{Product: req.URL().String()}, err)
		case 401, 403:
			return service.MakeFatal(err)
		case 408, 429, 500, 501, 502, 503, 504:
			return service.MakeTemporary(err)
		default:
			return err
		}
	}
	return nil
}

// isArchive returns true if the file can be unarchived
func isArchive(file string) bool {
	file = strings.ToLower(file)
	for _, ext := range []string{".zip", ".tar", ".tar.gz", ".tgz"} {
		if strings.HasSuffix(file, ext) {
			return true
		}
	}
	return false
}

// unarchive file in a new directory of localDir with basic check and returns the top-level files.
// The archive is removed. All errors are temporary.
func unarchive(ctx context.Context, localZip, localDir string) ([]string, error) {
	defer os.Remove(localZip)
	tmpdir, err := os.MkdirTemp(localDir, filepath.Base(localZip))
	if err != nil {
		return nil, service.MakeTemporary(err)
	}
	log.Logger(ctx).Sugar().Debugf("unarchive %s", localZip)
	if err := archiver.Unarchive(localZip, tmpdir); err != nil {
		return nil, service.MakeTemporary(err)
	}
	files, err := os.ReadDir(tmpdir)
	if err != nil {
		return nil, service.MakeTemporary(err)
	}
	if len(files) == 0 {
		return nil, service.MakeTemporary(fmt.Errorf("empty archive"))
	}
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = filepath.Join(tmpdir, f.Name())
	}
	return paths, nil
}

// fileRefs returns the references of the files, unarchiving the single archive if requested
func fileRefs(ctx context.Context, files []string, entry common.DataSetMetaInfo, unarchiveFiles bool, localDir string) ([]common.FileRef, error) {
	if unarchiveFiles && len(files) == 1 && isArchive(files[0]) {
		var err error
		if files, err = unarchive(ctx, files[0], localDir); err != nil {
			return nil, fmt.Errorf("Unarchive: %w", err)
		}
	}
	refs := make([]common.FileRef, len(files))
	for i, f := range files {
		refs[i] = common.NewFileRef(f, entry)
	}
	return refs, nil
}

func boolParam(component string, params map[string]string, key string, def bool) (bool, error) {
	v, ok := params[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid %s: %s", component, key, v)
	}
	return b, nil
}
