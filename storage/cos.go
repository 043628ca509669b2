package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/tencentyun/cos-go-sdk-v5"
)

func init() {
	RegisterBuilder(TypeCOS, func(settings map[string]interface{}) (Provider, error) {
		var cfg COSConfig
		if err := decodeSettings(TypeCOS, settings, &cfg); err != nil {
			return nil, err
		}
		return newCOSStorage(cfg)
	})
}

// COSConfig 腾讯云 COS 兼容对象存储配置
type COSConfig struct {
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	// Bucket 桶名，按 COS 约定携带 APPID 后缀，如 assets-1250000000
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	// Domain 自定义访问域名，配置后请求与公共链接都走它，
	// 优先于按区域推导的默认模板
	Domain string `mapstructure:"domain"`
	// Prefix 实例级键前缀
	Prefix string `mapstructure:"prefix"`
}

// cosStorage 腾讯云 COS 存储实现
type cosStorage struct {
	client    *cos.Client
	cfg       COSConfig
	bucketURL *url.URL
}

// newCOSStorage 创建 COS 存储提供者
//
// 只做配置校验与客户端装配，不发起网络请求。
func newCOSStorage(cfg COSConfig) (*cosStorage, error) {
	for field, value := range map[string]string{
		"secret_id":  cfg.SecretID,
		"secret_key": cfg.SecretKey,
		"bucket":     cfg.Bucket,
		"region":     cfg.Region,
	} {
		if err := requireField(TypeCOS, field, value); err != nil {
			return nil, err
		}
	}

	rawURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Domain != "" {
		rawURL = cfg.Domain
		if !strings.Contains(rawURL, "://") {
			rawURL = "https://" + rawURL
		}
	}
	bucketURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, newConfigError(TypeCOS, "domain", fmt.Sprintf("invalid bucket URL '%s'", rawURL))
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	return &cosStorage{
		client:    client,
		cfg:       cfg,
		bucketURL: bucketURL,
	}, nil
}

// Name 返回存储类型名称
func (s *cosStorage) Name() string {
	return TypeCOS
}

// Upload 将文件上传到 COS
func (s *cosStorage) Upload(ctx context.Context, data []byte, fileName string, opts *Options) (*UploadResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	header := &cos.ObjectPutHeaderOptions{ContentType: opts.contentType()}
	if metadata := opts.metadata(); len(metadata) > 0 {
		meta := http.Header{}
		for k, v := range metadata {
			meta.Set("x-cos-meta-"+k, v)
		}
		header.XCosMetaXXX = &meta
	}

	resp, err := s.client.Object.Put(ctx, key, bytes.NewReader(data), &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: header,
	})
	if err != nil {
		return nil, s.backendError("upload", key, err)
	}
	defer closeResponse(resp)

	return &UploadResult{
		URL:      s.publicURL(key),
		Path:     key,
		ETag:     strings.Trim(resp.Header.Get("Etag"), `"`),
		Provider: TypeCOS,
	}, nil
}

// Download 从 COS 读取对象内容
func (s *cosStorage) Download(ctx context.Context, fileName string, opts *Options) ([]byte, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, &NotFoundError{Provider: TypeCOS, Key: key}
		}
		return nil, s.backendError("download", key, err)
	}
	defer closeResponse(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.backendError("download", key, err)
	}
	return data, nil
}

// Delete 从 COS 删除对象
//
// COS 删除不存在的键同样返回成功，天然幂等。
func (s *cosStorage) Delete(ctx context.Context, fileName string, opts *Options) (*DeleteResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Object.Delete(ctx, key)
	if err != nil {
		return nil, s.backendError("delete", key, err)
	}
	defer closeResponse(resp)

	return &DeleteResult{Success: true}, nil
}

// List 列出有效前缀下的对象键（单页）
func (s *cosStorage) List(ctx context.Context, opts *Options) ([]string, error) {
	prefix := joinListPrefix(s.cfg.Prefix, opts.directory())

	listOpts := &cos.BucketGetOptions{
		Prefix:  prefix,
		MaxKeys: opts.maxKeys(),
	}
	if marker := opts.marker(); marker != "" {
		listOpts.Marker = prefix + marker
	}

	result, resp, err := s.client.Bucket.Get(ctx, listOpts)
	if err != nil {
		return nil, s.backendError("list", prefix, err)
	}
	defer closeResponse(resp)

	names := make([]string, 0, len(result.Contents))
	for _, object := range result.Contents {
		name := strings.TrimPrefix(object.Key, prefix)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// GetURL 生成对象访问链接
//
// 请求过期时间走预签名链接，否则返回公共链接。
func (s *cosStorage) GetURL(ctx context.Context, fileName string, opts *Options) (string, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return "", err
	}

	if expiry := opts.urlExpiry(); expiry > 0 {
		signed, err := s.client.Object.GetPresignedURL(ctx, http.MethodGet, key, s.cfg.SecretID, s.cfg.SecretKey, expiry, nil)
		if err != nil {
			return "", s.backendError("get_url", key, err)
		}
		return signed.String(), nil
	}
	return s.publicURL(key), nil
}

// TestConnection 检查桶是否存在且可访问
func (s *cosStorage) TestConnection(ctx context.Context) *ConnectionResult {
	resp, err := s.client.Bucket.Head(ctx)
	if err != nil {
		return &ConnectionResult{Success: false, Message: fmt.Sprintf("failed to access bucket '%s': %v", s.cfg.Bucket, err)}
	}
	defer closeResponse(resp)

	return &ConnectionResult{Success: true, Message: "COS connection successful"}
}

// objectKey 派生对象键：prefix/directory/fileName
func (s *cosStorage) objectKey(fileName string, opts *Options) (string, error) {
	key := JoinKey(s.cfg.Prefix, opts.directory(), fileName)
	if fileName == "" || !ValidKey(key) {
		return "", fmt.Errorf("invalid storage path: '%s'", key)
	}
	return key, nil
}

// publicURL 生成公共链接
//
// 自定义域名场景下 bucketURL 已经指向该域名，模板与域名合一。
func (s *cosStorage) publicURL(key string) string {
	return JoinURL(s.bucketURL.String(), key)
}

// backendError 在适配器边界记录后端错误并原样向上抛出
func (s *cosStorage) backendError(op, key string, err error) error {
	log.Printf("COS storage %s failed for '%s': %v", op, key, err)
	return &BackendError{Provider: TypeCOS, Op: op, Err: err}
}

// closeResponse 关闭 SDK 响应体，复用底层连接
func closeResponse(resp *cos.Response) {
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
}
