package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func init() {
	RegisterBuilder(TypeS3, func(settings map[string]interface{}) (Provider, error) {
		var cfg S3Config
		if err := decodeSettings(TypeS3, settings, &cfg); err != nil {
			return nil, err
		}
		return newS3Storage(cfg)
	})
}

// S3Config S3 兼容对象存储配置
type S3Config struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	// Endpoint 自定义接入点，留空按区域推导 s3.{region}.amazonaws.com；
	// 可携带 http:// 或 https:// 前缀以指定协议
	Endpoint string `mapstructure:"endpoint"`
	// Prefix 实例级键前缀，所有对象键都在它之下派生
	Prefix string `mapstructure:"prefix"`
	// CDNDomain 配置后公共链接永远走 CDN，而不是后端默认模板
	CDNDomain string `mapstructure:"cdn_domain"`
	// PathStyle 使用路径寻址（MinIO 等自建服务），默认虚拟主机寻址
	PathStyle bool `mapstructure:"path_style"`
}

// s3Storage S3 兼容对象存储实现
type s3Storage struct {
	client   *minio.Client
	cfg      S3Config
	endpoint string
	secure   bool
}

// newS3Storage 创建 S3 存储提供者
//
// 只做配置校验与客户端装配，不发起网络请求；
// 连通性探测统一放在 TestConnection。
func newS3Storage(cfg S3Config) (*s3Storage, error) {
	for field, value := range map[string]string{
		"access_key_id":     cfg.AccessKeyID,
		"secret_access_key": cfg.SecretAccessKey,
		"region":            cfg.Region,
		"bucket":            cfg.Bucket,
	} {
		if err := requireField(TypeS3, field, value); err != nil {
			return nil, err
		}
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("s3.%s.amazonaws.com", cfg.Region)
	}
	secure := true
	if strings.HasPrefix(endpoint, "http://") {
		secure = false
		endpoint = strings.TrimPrefix(endpoint, "http://")
	} else {
		endpoint = strings.TrimPrefix(endpoint, "https://")
	}
	endpoint = strings.TrimRight(endpoint, "/")

	lookup := minio.BucketLookupDNS
	if cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: lookup,
		Transport:    newS3Transport(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	return &s3Storage{
		client:   client,
		cfg:      cfg,
		endpoint: endpoint,
		secure:   secure,
	}, nil
}

// newS3Transport 装配带连接池参数的 HTTP 传输层
func newS3Transport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       time.Minute,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 10 * time.Second,
		DisableCompression:    true,
	}
}

// Name 返回存储类型名称
func (s *s3Storage) Name() string {
	return TypeS3
}

// Upload 将文件上传到 S3
func (s *s3Storage) Upload(ctx context.Context, data []byte, fileName string, opts *Options) (*UploadResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	info, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  opts.contentType(),
		UserMetadata: opts.metadata(),
	})
	if err != nil {
		return nil, s.backendError("upload", key, err)
	}

	return &UploadResult{
		URL:      s.publicURL(key),
		Path:     key,
		ETag:     info.ETag,
		Provider: TypeS3,
	}, nil
}

// Download 从 S3 读取对象内容
func (s *s3Storage) Download(ctx context.Context, fileName string, opts *Options) ([]byte, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapBackendError("download", key, err)
	}
	defer func() { _ = obj.Close() }()

	// GetObject 是惰性的，对象不存在要到读取时才暴露
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapBackendError("download", key, err)
	}
	return data, nil
}

// Delete 从 S3 删除对象
//
// S3 删除不存在的键同样返回成功，天然幂等。
func (s *s3Storage) Delete(ctx context.Context, fileName string, opts *Options) (*DeleteResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	if err := s.client.RemoveObject(ctx, s.cfg.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return nil, s.backendError("delete", key, err)
	}
	return &DeleteResult{Success: true}, nil
}

// List 列出有效前缀下的对象键（单页）
//
// 返回名称去掉前缀，相对于列举目录；翻页由调用方带 Marker 续传。
func (s *s3Storage) List(ctx context.Context, opts *Options) ([]string, error) {
	prefix := joinListPrefix(s.cfg.Prefix, opts.directory())
	maxKeys := opts.maxKeys()

	listOpts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   maxKeys,
	}
	if marker := opts.marker(); marker != "" {
		listOpts.StartAfter = prefix + marker
	}

	names := make([]string, 0, maxKeys)
	for object := range s.client.ListObjects(ctx, s.cfg.Bucket, listOpts) {
		if object.Err != nil {
			return nil, s.backendError("list", prefix, object.Err)
		}
		name := strings.TrimPrefix(object.Key, prefix)
		if name == "" {
			continue
		}
		names = append(names, name)
		if len(names) >= maxKeys {
			break
		}
	}
	return names, nil
}

// GetURL 生成对象访问链接
//
// 请求过期时间走预签名链接，否则走 CDN 或后端默认模板的公共链接。
func (s *s3Storage) GetURL(ctx context.Context, fileName string, opts *Options) (string, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return "", err
	}

	if expiry := opts.urlExpiry(); expiry > 0 {
		signed, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, key, expiry, url.Values{})
		if err != nil {
			return "", s.backendError("get_url", key, err)
		}
		return signed.String(), nil
	}
	return s.publicURL(key), nil
}

// TestConnection 检查桶是否存在且可访问
func (s *s3Storage) TestConnection(ctx context.Context) *ConnectionResult {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return &ConnectionResult{Success: false, Message: fmt.Sprintf("failed to check bucket '%s': %v", s.cfg.Bucket, err)}
	}
	if !exists {
		return &ConnectionResult{Success: false, Message: fmt.Sprintf("bucket '%s' does not exist", s.cfg.Bucket)}
	}
	return &ConnectionResult{Success: true, Message: "S3 connection successful"}
}

// objectKey 派生对象键：prefix/directory/fileName
func (s *s3Storage) objectKey(fileName string, opts *Options) (string, error) {
	key := JoinKey(s.cfg.Prefix, opts.directory(), fileName)
	if fileName == "" || !ValidKey(key) {
		return "", fmt.Errorf("invalid storage path: '%s'", key)
	}
	return key, nil
}

// publicURL 生成公共链接，CDN 域名优先于寻址模板
func (s *s3Storage) publicURL(key string) string {
	scheme := "https"
	if !s.secure {
		scheme = "http"
	}
	base := fmt.Sprintf("%s://%s.%s", scheme, s.cfg.Bucket, s.endpoint)
	if s.cfg.PathStyle {
		base = fmt.Sprintf("%s://%s/%s", scheme, s.endpoint, s.cfg.Bucket)
	}
	return PublicURL(s.cfg.CDNDomain, base, key)
}

// mapBackendError 把 SDK 的 NoSuchKey 映射为 NotFoundError
func (s *s3Storage) mapBackendError(op, key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return &NotFoundError{Provider: TypeS3, Key: key}
	}
	return s.backendError(op, key, err)
}

// backendError 在适配器边界记录后端错误并原样向上抛出
func (s *s3Storage) backendError(op, key string, err error) error {
	log.Printf("S3 storage %s failed for '%s': %v", op, key, err)
	return &BackendError{Provider: TypeS3, Op: op, Err: err}
}

// joinListPrefix 列举用的有效前缀，非空时以 '/' 收尾
func joinListPrefix(parts ...string) string {
	prefix := JoinKey(parts...)
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}
