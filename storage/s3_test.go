package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validS3Config() S3Config {
	return S3Config{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		Region:          "us-east-1",
		Bucket:          "assets",
	}
}

// TestNewS3Storage_FailFast 测试任一必填凭证缺失时同步失败
func TestNewS3Storage_FailFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*S3Config)
	}{
		{"missing_access_key_id", func(c *S3Config) { c.AccessKeyID = "" }},
		{"missing_secret_access_key", func(c *S3Config) { c.SecretAccessKey = "" }},
		{"missing_region", func(c *S3Config) { c.Region = "" }},
		{"missing_bucket", func(c *S3Config) { c.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validS3Config()
			tt.mutate(&cfg)

			_, err := newS3Storage(cfg)
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, TypeS3, cfgErr.Provider)
		})
	}
}

// TestS3Storage_PublicURL 测试寻址模板与 CDN 优先级
func TestS3Storage_PublicURL(t *testing.T) {
	ctx := context.Background()

	t.Run("virtual_hosted_default_endpoint", func(t *testing.T) {
		storage, err := newS3Storage(validS3Config())
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", &Options{Directory: "media"})
		require.NoError(t, err)
		assert.Equal(t, "https://assets.s3.us-east-1.amazonaws.com/media/a.png", url)
	})

	t.Run("path_style_custom_endpoint", func(t *testing.T) {
		cfg := validS3Config()
		cfg.Endpoint = "http://minio.local:9000"
		cfg.PathStyle = true

		storage, err := newS3Storage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", nil)
		require.NoError(t, err)
		assert.Equal(t, "http://minio.local:9000/assets/a.png", url)
	})

	t.Run("prefix_participates_in_key", func(t *testing.T) {
		cfg := validS3Config()
		cfg.Prefix = "uploads"

		storage, err := newS3Storage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", &Options{Directory: "2024/05"})
		require.NoError(t, err)
		assert.Equal(t, "https://assets.s3.us-east-1.amazonaws.com/uploads/2024/05/a.png", url)
	})

	t.Run("cdn_takes_precedence", func(t *testing.T) {
		cfg := validS3Config()
		cfg.CDNDomain = "https://cdn.example.com"

		storage, err := newS3Storage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/a.png", url)
	})
}

// TestS3Storage_PresignedURL 测试签名链接本地生成
func TestS3Storage_PresignedURL(t *testing.T) {
	storage, err := newS3Storage(validS3Config())
	require.NoError(t, err)

	ctx := context.Background()

	// Signed 未带 Expires 时按默认 300 秒签名
	url, err := storage.GetURL(ctx, "a.png", &Options{Directory: "media", Signed: true})
	require.NoError(t, err)
	assert.Contains(t, url, "media/a.png")
	assert.Contains(t, url, "X-Amz-Signature=")
	assert.Contains(t, url, "X-Amz-Expires=300")
}

// TestS3Storage_InvalidKey 测试非法对象键在本地即被拒绝
func TestS3Storage_InvalidKey(t *testing.T) {
	storage, err := newS3Storage(validS3Config())
	require.NoError(t, err)

	ctx := context.Background()
	for _, fileName := range []string{"", "../evil.png"} {
		_, err := storage.GetURL(ctx, fileName, nil)
		assert.Error(t, err, "fileName=%q", fileName)
	}
}

// TestS3Storage_SettingsDecode 测试原始配置经 builder 解码
func TestS3Storage_SettingsDecode(t *testing.T) {
	provider, err := NewProvider(TypeS3, map[string]interface{}{
		"access_key_id":     "AKIAEXAMPLE",
		"secret_access_key": "secret",
		"region":            "us-east-1",
		"bucket":            "assets",
		"path_style":        "true",
		"cdn_domain":        "cdn.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, TypeS3, provider.Name())

	// 裸 CDN 域名默认补全 https
	url, err := provider.GetURL(context.Background(), "a.png", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.png", url)
}
