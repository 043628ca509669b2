package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOSSConfig() OSSConfig {
	return OSSConfig{
		AccessKeyID:     "LTAIEXAMPLE",
		AccessKeySecret: "secret",
		Bucket:          "assets",
		Region:          "cn-hangzhou",
	}
}

func boolPtr(b bool) *bool { return &b }

// TestNewOSSStorage_FailFast 测试必填凭证缺失与 cname 约束
func TestNewOSSStorage_FailFast(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*OSSConfig)
	}{
		{"missing_access_key_id", func(c *OSSConfig) { c.AccessKeyID = "" }},
		{"missing_access_key_secret", func(c *OSSConfig) { c.AccessKeySecret = "" }},
		{"missing_bucket", func(c *OSSConfig) { c.Bucket = "" }},
		{"missing_region", func(c *OSSConfig) { c.Region = "" }},
		{"cname_without_endpoint", func(c *OSSConfig) { c.CName = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validOSSConfig()
			tt.mutate(&cfg)

			_, err := newOSSStorage(cfg)
			require.Error(t, err)

			var cfgErr *ConfigError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, TypeOSS, cfgErr.Provider)
		})
	}
}

// TestOSSStorage_PublicURL 测试接入点推导与链接模板
func TestOSSStorage_PublicURL(t *testing.T) {
	ctx := context.Background()

	t.Run("derived_endpoint", func(t *testing.T) {
		storage, err := newOSSStorage(validOSSConfig())
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", &Options{Directory: "media"})
		require.NoError(t, err)
		assert.Equal(t, "https://assets.oss-cn-hangzhou.aliyuncs.com/media/a.png", url)
	})

	t.Run("internal_endpoint", func(t *testing.T) {
		cfg := validOSSConfig()
		cfg.Internal = true

		storage, err := newOSSStorage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://assets.oss-cn-hangzhou-internal.aliyuncs.com/a.png", url)
	})

	t.Run("insecure_http", func(t *testing.T) {
		cfg := validOSSConfig()
		cfg.Secure = boolPtr(false)

		storage, err := newOSSStorage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", nil)
		require.NoError(t, err)
		assert.Equal(t, "http://assets.oss-cn-hangzhou.aliyuncs.com/a.png", url)
	})

	t.Run("cname_uses_endpoint_verbatim", func(t *testing.T) {
		cfg := validOSSConfig()
		cfg.CName = true
		cfg.Endpoint = "https://img.example.com"

		storage, err := newOSSStorage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", &Options{Directory: "media"})
		require.NoError(t, err)
		// 自定义域名不再拼桶名子域
		assert.Equal(t, "https://img.example.com/media/a.png", url)
	})

	t.Run("cdn_takes_precedence_over_cname", func(t *testing.T) {
		cfg := validOSSConfig()
		cfg.CName = true
		cfg.Endpoint = "https://img.example.com"
		cfg.CDNDomain = "https://cdn.example.com"

		storage, err := newOSSStorage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/a.png", url)
	})

	t.Run("prefix_participates_in_key", func(t *testing.T) {
		cfg := validOSSConfig()
		cfg.Prefix = "uploads"

		storage, err := newOSSStorage(cfg)
		require.NoError(t, err)

		url, err := storage.GetURL(ctx, "a.png", nil)
		require.NoError(t, err)
		assert.Equal(t, "https://assets.oss-cn-hangzhou.aliyuncs.com/uploads/a.png", url)
	})
}

// TestOSSStorage_SignedURL 测试签名链接本地生成
func TestOSSStorage_SignedURL(t *testing.T) {
	storage, err := newOSSStorage(validOSSConfig())
	require.NoError(t, err)

	url, err := storage.GetURL(context.Background(), "a.png", &Options{Directory: "media", Signed: true})
	require.NoError(t, err)
	assert.Contains(t, url, "media/a.png")
	assert.Contains(t, url, "Expires=")
	assert.Contains(t, url, "Signature=")
}

// TestOSSStorage_InvalidKey 测试非法对象键在本地即被拒绝
func TestOSSStorage_InvalidKey(t *testing.T) {
	storage, err := newOSSStorage(validOSSConfig())
	require.NoError(t, err)

	ctx := context.Background()
	for _, fileName := range []string{"", "../evil.png"} {
		_, err := storage.GetURL(ctx, fileName, nil)
		assert.Error(t, err, "fileName=%q", fileName)
	}
}

// TestCallWithContext 测试不感知上下文的调用包装
func TestCallWithContext(t *testing.T) {
	t.Run("completed_call", func(t *testing.T) {
		err := callWithContext(context.Background(), func() error { return nil })
		assert.NoError(t, err)
	})

	t.Run("call_error_passes_through", func(t *testing.T) {
		boom := errors.New("boom")
		err := callWithContext(context.Background(), func() error { return boom })
		assert.Equal(t, boom, err)
	})

	t.Run("already_cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		err := callWithContext(ctx, func() error { called = true; return nil })
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("cancel_during_call", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		release := make(chan struct{})
		defer close(release)

		go cancel()
		err := callWithContext(ctx, func() error {
			<-release
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

// TestOSSStorage_SettingsDecode 测试原始配置经 builder 解码
func TestOSSStorage_SettingsDecode(t *testing.T) {
	provider, err := NewProvider(TypeOSS, map[string]interface{}{
		"access_key_id":     "LTAIEXAMPLE",
		"access_key_secret": "secret",
		"bucket":            "assets",
		"region":            "cn-hangzhou",
		"internal":          "true",
		"secure":            "false",
	})
	require.NoError(t, err)
	assert.Equal(t, TypeOSS, provider.Name())

	url, err := provider.GetURL(context.Background(), "a.png", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://assets.oss-cn-hangzhou-internal.aliyuncs.com/a.png", url)
}
