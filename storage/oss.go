package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

func init() {
	RegisterBuilder(TypeOSS, func(settings map[string]interface{}) (Provider, error) {
		var cfg OSSConfig
		if err := decodeSettings(TypeOSS, settings, &cfg); err != nil {
			return nil, err
		}
		return newOSSStorage(cfg)
	})
}

// OSSConfig 阿里云 OSS 兼容对象存储配置
type OSSConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	// Endpoint 自定义接入点，留空按区域推导 oss-{region}.aliyuncs.com
	Endpoint string `mapstructure:"endpoint"`
	// Internal 走内网接入点（仅在按区域推导时生效）
	Internal bool `mapstructure:"internal"`
	// Secure 是否使用 HTTPS，默认开启
	Secure *bool `mapstructure:"secure"`
	// CName 把 Endpoint 当作自定义域名使用，要求 Endpoint 非空
	CName bool `mapstructure:"cname"`
	// Prefix 实例级键前缀
	Prefix string `mapstructure:"prefix"`
	// CDNDomain 配置后公共链接永远走 CDN
	CDNDomain string `mapstructure:"cdn_domain"`
}

// ossStorage 阿里云 OSS 存储实现
//
// SDK 不感知 context，所有调用通过 callWithContext 包装以支持取消。
type ossStorage struct {
	client *oss.Client
	bucket *oss.Bucket
	cfg    OSSConfig
	host   string
	secure bool
}

// newOSSStorage 创建 OSS 存储提供者
//
// 只做配置校验与客户端装配，不发起网络请求。
func newOSSStorage(cfg OSSConfig) (*ossStorage, error) {
	for field, value := range map[string]string{
		"access_key_id":     cfg.AccessKeyID,
		"access_key_secret": cfg.AccessKeySecret,
		"bucket":            cfg.Bucket,
		"region":            cfg.Region,
	} {
		if err := requireField(TypeOSS, field, value); err != nil {
			return nil, err
		}
	}
	if cfg.CName && cfg.Endpoint == "" {
		return nil, newConfigError(TypeOSS, "endpoint", "required when cname is enabled")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		suffix := ""
		if cfg.Internal {
			suffix = "-internal"
		}
		endpoint = fmt.Sprintf("oss-%s%s.aliyuncs.com", cfg.Region, suffix)
	}

	secure := cfg.Secure == nil || *cfg.Secure
	host := endpoint
	if strings.HasPrefix(host, "http://") {
		secure = false
		host = strings.TrimPrefix(host, "http://")
	} else if strings.HasPrefix(host, "https://") {
		secure = true
		host = strings.TrimPrefix(host, "https://")
	}
	host = strings.TrimRight(host, "/")

	scheme := "https"
	if !secure {
		scheme = "http"
	}

	client, err := oss.New(scheme+"://"+host, cfg.AccessKeyID, cfg.AccessKeySecret, oss.UseCname(cfg.CName))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OSS client: %w", err)
	}
	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open OSS bucket '%s': %w", cfg.Bucket, err)
	}

	return &ossStorage{
		client: client,
		bucket: bucket,
		cfg:    cfg,
		host:   host,
		secure: secure,
	}, nil
}

// Name 返回存储类型名称
func (s *ossStorage) Name() string {
	return TypeOSS
}

// Upload 将文件上传到 OSS
func (s *ossStorage) Upload(ctx context.Context, data []byte, fileName string, opts *Options) (*UploadResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	putOpts := []oss.Option{oss.ContentType(opts.contentType())}
	for k, v := range opts.metadata() {
		putOpts = append(putOpts, oss.Meta(k, v))
	}

	err = callWithContext(ctx, func() error {
		return s.bucket.PutObject(key, bytes.NewReader(data), putOpts...)
	})
	if err != nil {
		return nil, s.backendError("upload", key, err)
	}

	return &UploadResult{
		URL:      s.publicURL(key),
		Path:     key,
		Provider: TypeOSS,
	}, nil
}

// Download 从 OSS 读取对象内容
func (s *ossStorage) Download(ctx context.Context, fileName string, opts *Options) ([]byte, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = callWithContext(ctx, func() error {
		body, err := s.bucket.GetObject(key)
		if err != nil {
			return err
		}
		defer func() { _ = body.Close() }()
		b, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		return nil, s.mapBackendError("download", key, err)
	}
	return data, nil
}

// Delete 从 OSS 删除对象
//
// OSS 删除不存在的键同样返回成功，天然幂等。
func (s *ossStorage) Delete(ctx context.Context, fileName string, opts *Options) (*DeleteResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	err = callWithContext(ctx, func() error {
		return s.bucket.DeleteObject(key)
	})
	if err != nil {
		return nil, s.backendError("delete", key, err)
	}
	return &DeleteResult{Success: true}, nil
}

// List 列出有效前缀下的对象键（单页）
func (s *ossStorage) List(ctx context.Context, opts *Options) ([]string, error) {
	prefix := joinListPrefix(s.cfg.Prefix, opts.directory())

	listOpts := []oss.Option{oss.Prefix(prefix), oss.MaxKeys(opts.maxKeys())}
	if marker := opts.marker(); marker != "" {
		listOpts = append(listOpts, oss.Marker(prefix+marker))
	}

	var result oss.ListObjectsResult
	err := callWithContext(ctx, func() error {
		var err error
		result, err = s.bucket.ListObjects(listOpts...)
		return err
	})
	if err != nil {
		return nil, s.backendError("list", prefix, err)
	}

	names := make([]string, 0, len(result.Objects))
	for _, object := range result.Objects {
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
// 请求过期时间走签名链接，否则走 CDN 或后端默认模板的公共链接。
func (s *ossStorage) GetURL(ctx context.Context, fileName string, opts *Options) (string, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return "", err
	}

	if expiry := opts.urlExpiry(); expiry > 0 {
		var signed string
		err := callWithContext(ctx, func() error {
			var err error
			signed, err = s.bucket.SignURL(key, oss.HTTPGet, int64(expiry.Seconds()))
			return err
		})
		if err != nil {
			return "", s.backendError("get_url", key, err)
		}
		return signed, nil
	}
	return s.publicURL(key), nil
}

// TestConnection 检查桶是否存在且可访问
func (s *ossStorage) TestConnection(ctx context.Context) *ConnectionResult {
	var exists bool
	err := callWithContext(ctx, func() error {
		var err error
		exists, err = s.client.IsBucketExist(s.cfg.Bucket)
		return err
	})
	if err != nil {
		return &ConnectionResult{Success: false, Message: fmt.Sprintf("failed to check bucket '%s': %v", s.cfg.Bucket, err)}
	}
	if !exists {
		return &ConnectionResult{Success: false, Message: fmt.Sprintf("bucket '%s' does not exist", s.cfg.Bucket)}
	}
	return &ConnectionResult{Success: true, Message: "OSS connection successful"}
}

// objectKey 派生对象键：prefix/directory/fileName
func (s *ossStorage) objectKey(fileName string, opts *Options) (string, error) {
	key := JoinKey(s.cfg.Prefix, opts.directory(), fileName)
	if fileName == "" || !ValidKey(key) {
		return "", fmt.Errorf("invalid storage path: '%s'", key)
	}
	return key, nil
}

// publicURL 生成公共链接，CDN 域名优先于后端模板
//
// 自定义域名（cname）场景下接入点本身就是访问域名，不再拼桶名。
func (s *ossStorage) publicURL(key string) string {
	scheme := "https"
	if !s.secure {
		scheme = "http"
	}
	base := fmt.Sprintf("%s://%s.%s", scheme, s.cfg.Bucket, s.host)
	if s.cfg.CName {
		base = fmt.Sprintf("%s://%s", scheme, s.host)
	}
	return PublicURL(s.cfg.CDNDomain, base, key)
}

// mapBackendError 把 OSS 的 404 映射为 NotFoundError
func (s *ossStorage) mapBackendError(op, key string, err error) error {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) && (svcErr.StatusCode == http.StatusNotFound || svcErr.Code == "NoSuchKey") {
		return &NotFoundError{Provider: TypeOSS, Key: key}
	}
	return s.backendError(op, key, err)
}

// backendError 在适配器边界记录后端错误并原样向上抛出
func (s *ossStorage) backendError(op, key string, err error) error {
	log.Printf("OSS storage %s failed for '%s': %v", op, key, err)
	return &BackendError{Provider: TypeOSS, Op: op, Err: err}
}

// callWithContext 在独立 goroutine 中执行不感知上下文的 SDK 调用
//
// 上下文取消时立即返回，后台调用结果被丢弃。
func callWithContext(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
