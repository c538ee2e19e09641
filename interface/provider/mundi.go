package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/airbusgeo/geocube-datastore/common"
	"github.com/airbusgeo/geocube-datastore/datatype"
	"github.com/airbusgeo/geocube-datastore/wrapped"
)

const (
	MundiTypeName = "MundiFileSystem"

	ParamSeeedToken = "seeedtoken"
	// ParamBaseURL overrides the download service of Mundi
	ParamBaseURL = "base_url"

	MundiBaseURL           = "https://mundiwebservices.com/dp"
	MundiDownloadProductS1 = "%s/s1-l%s-%s-%04d-q%d/%04d/%02d/%02d/%s/%s/%s.zip"
	MundiDownloadProductS2 = "%s/s2-%s-%04d-q%d/%s/%s/%s/%04d/%02d/%02d/%s.zip"
)

// MundiStorage is a URLStorage downloading Sentinel1 and Sentinel2 products from Mundi
type MundiStorage struct {
	*URLStorage
}

// NewMundiRemote is a constructor for wrapped.FileSystemConstructor
func NewMundiRemote(types *datatype.Registry) wrapped.RemoteStorage {
	return &MundiStorage{NewURLStorage(types)}
}

func (s *MundiStorage) Init(ctx context.Context, params map[string]string) error {
	if err := s.remote.init(MundiTypeName, params, ParamSeeedToken); err != nil {
		return err
	}
	baseURL := strings.TrimRight(s.param(ParamBaseURL, MundiBaseURL), "/")
	s.url = func(entry common.DataSetMetaInfo) (string, error) {
		return MundiURL(baseURL, datatype.ProductName(entry.Identifier))
	}
	s.cookie = "seeedtoken=" + params[ParamSeeedToken]
	return s.configure()
}

// MundiURL returns the download url of the scene
func MundiURL(baseURL, sceneName string) (string, error) {
	sceneDate, err := common.GetDateFromProductId(sceneName)
	if err != nil {
		return "", fmt.Errorf("MundiURL: unable to parse date from scene name %s: %w", sceneName, err)
	}
	switch common.GetConstellationFromProductId(sceneName) {
	case common.Sentinel1:
		// MMM_BB_TTTR_LFPP_YYYYMMDDTHHMMSS_YYYMMDDTHHMMSS_OOOOOO_DDDDDD_CCCC.SAFE
		return fmt.Sprintf(MundiDownloadProductS1, baseURL,
			sceneName[12:13], strings.ToLower(sceneName[7:10]), sceneDate.Year(), (sceneDate.Month()+2)/3, sceneDate.Year(), sceneDate.Month(), sceneDate.Day(), sceneName[4:6], sceneName[14:16], sceneName), nil
	case common.Sentinel2:
		// MMM_MSIXXX_YYYYMMDDHHMMSS_Nxxyy_ROOO_Txxxxx_<Product Discriminator>.SAFE
		if len(sceneName) < 44 {
			return "", fmt.Errorf("MundiURL: invalid Sentinel2 scene name %s", sceneName)
		}
		return fmt.Sprintf(MundiDownloadProductS2, baseURL,
			strings.ToLower(sceneName[7:10]), sceneDate.Year(), (sceneDate.Month()+2)/3, sceneName[39:41], sceneName[41:42], sceneName[42:44], sceneDate.Year(), sceneDate.Month(), sceneDate.Day(), sceneName), nil
	}
	return "", fmt.Errorf("MundiURL: constellation not supported: %s", sceneName)
}
