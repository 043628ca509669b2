package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/nuecms/storage-provider/storage"
)

var (
	globalConfig Config
	once         sync.Once
	configFile   = ".env"
)

// Config 扁平化配置结构体
//
// 所有键都可以来自 .env 文件或同名环境变量（大写），如
// STORAGE_DEFAULT_PROVIDER、S3_ACCESS_KEY_ID。
type Config struct {
	// 服务器配置
	ServerHost         string        `mapstructure:"server_host"`
	ServerPort         int           `mapstructure:"server_port"`
	ServerReadTimeout  time.Duration `mapstructure:"server_read_timeout"`
	ServerWriteTimeout time.Duration `mapstructure:"server_write_timeout"`
	ServerIdleTimeout  time.Duration `mapstructure:"server_idle_timeout"`

	// 限流配置
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// 跨域配置
	ServerCORSOrigin string `mapstructure:"server_cors_origin"`

	// 上传配置
	UploadMaxSizeMB int `mapstructure:"upload_max_size_mb"`

	// 存储配置
	StorageDefaultProvider string `mapstructure:"storage_default_provider"`
	// StoragePrefix 云后端未单独配置 prefix 时的公共对象键前缀
	StoragePrefix string `mapstructure:"storage_prefix"`

	// 本地存储配置
	LocalBaseDir string `mapstructure:"local_base_dir"`
	LocalBaseURL string `mapstructure:"local_base_url"`

	// S3 兼容存储配置
	S3AccessKeyID     string `mapstructure:"s3_access_key_id"`
	S3SecretAccessKey string `mapstructure:"s3_secret_access_key"`
	S3Region          string `mapstructure:"s3_region"`
	S3Bucket          string `mapstructure:"s3_bucket"`
	S3Endpoint        string `mapstructure:"s3_endpoint"`
	S3Prefix          string `mapstructure:"s3_prefix"`
	S3CDNDomain       string `mapstructure:"s3_cdn_domain"`
	S3PathStyle       bool   `mapstructure:"s3_path_style"`

	// 阿里云 OSS 配置
	OSSAccessKeyID     string `mapstructure:"oss_access_key_id"`
	OSSAccessKeySecret string `mapstructure:"oss_access_key_secret"`
	OSSBucket          string `mapstructure:"oss_bucket"`
	OSSRegion          string `mapstructure:"oss_region"`
	OSSEndpoint        string `mapstructure:"oss_endpoint"`
	OSSInternal        bool   `mapstructure:"oss_internal"`
	OSSSecure          bool   `mapstructure:"oss_secure"`
	OSSCName           bool   `mapstructure:"oss_cname"`
	OSSPrefix          string `mapstructure:"oss_prefix"`
	OSSCDNDomain       string `mapstructure:"oss_cdn_domain"`

	// 腾讯云 COS 配置
	COSSecretID  string `mapstructure:"cos_secret_id"`
	COSSecretKey string `mapstructure:"cos_secret_key"`
	COSBucket    string `mapstructure:"cos_bucket"`
	COSRegion    string `mapstructure:"cos_region"`
	COSDomain    string `mapstructure:"cos_domain"`
	COSPrefix    string `mapstructure:"cos_prefix"`

	// WebDAV 配置
	WebDAVEndpoint string `mapstructure:"webdav_endpoint"`
	WebDAVUsername string `mapstructure:"webdav_username"`
	WebDAVPassword string `mapstructure:"webdav_password"`
	WebDAVRoot     string `mapstructure:"webdav_root"`
	WebDAVBaseURL  string `mapstructure:"webdav_base_url"`
}

// InitConfig Initialize configuration
func InitConfig() {
	once.Do(func() {
		loadConfig()
	})
}

// SetConfigFile 覆盖默认的 .env 配置文件路径
// 必须在 InitConfig 之前调用，之后调用不生效。
func SetConfigFile(path string) {
	if path != "" {
		configFile = path
	}
}

func Get() *Config {
	return &globalConfig
}

// loadConfig Core configuration loading
func loadConfig() {
	setDefaults()

	viper.SetConfigFile(configFile)
	viper.SetConfigType("env")

	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Info: %s file not found, using defaults and environment variables\n", configFile)
	} else {
		fmt.Fprintf(os.Stderr, "Info: Loaded configuration from %s file\n", configFile)
	}

	viper.AutomaticEnv()
	for _, key := range viper.AllKeys() {
		viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&globalConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: Unable to unmarshal config, %v\n", err)
		os.Exit(1)
	}
}

// setDefaults 设置默认值
func setDefaults() {
	// 服务器配置默认值
	viper.SetDefault("server_host", "127.0.0.1")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("server_read_timeout", "15s")
	viper.SetDefault("server_write_timeout", "30s")
	viper.SetDefault("server_idle_timeout", "120s")

	// 限流配置默认值
	viper.SetDefault("rate_limit_rps", 30.0)
	viper.SetDefault("rate_limit_burst", 60)

	// 跨域配置默认值
	viper.SetDefault("server_cors_origin", "*")

	// 上传配置默认值
	viper.SetDefault("upload_max_size_mb", 50)

	// 存储配置默认值：开箱即用的本地存储
	viper.SetDefault("storage_default_provider", "local")
	viper.SetDefault("local_base_dir", "./data/storage")
	viper.SetDefault("local_base_url", "http://127.0.0.1:8080/api/files")

	viper.SetDefault("s3_path_style", false)
	viper.SetDefault("oss_internal", false)
	viper.SetDefault("oss_secure", true)
	viper.SetDefault("oss_cname", false)
}

// Addr 返回监听地址，格式为 "host:port"
func (c *Config) Addr() string {
	host := c.ServerHost
	if host == "" {
		host = "0.0.0.0"
	}
	port := c.ServerPort
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// ProviderSpecs 把扁平配置组装成待注册的存储实例列表
//
// 只有关键字段非空的后端才会被实例化：本地看 base_dir，云后端看
// bucket，WebDAV 看 endpoint。实例以类型名注册。
func (c *Config) ProviderSpecs() []storage.ProviderSpec {
	specs := make([]storage.ProviderSpec, 0, 5)

	prefixOr := func(prefix string) string {
		if prefix != "" {
			return prefix
		}
		return c.StoragePrefix
	}

	if c.LocalBaseDir != "" {
		specs = append(specs, storage.ProviderSpec{
			Name:    storage.TypeLocal,
			Type:    storage.TypeLocal,
			Default: c.StorageDefaultProvider == storage.TypeLocal,
			Settings: map[string]interface{}{
				"base_dir": c.LocalBaseDir,
				"base_url": c.LocalBaseURL,
			},
		})
	}

	if c.S3Bucket != "" {
		specs = append(specs, storage.ProviderSpec{
			Name:    storage.TypeS3,
			Type:    storage.TypeS3,
			Default: c.StorageDefaultProvider == storage.TypeS3,
			Settings: map[string]interface{}{
				"access_key_id":     c.S3AccessKeyID,
				"secret_access_key": c.S3SecretAccessKey,
				"region":            c.S3Region,
				"bucket":            c.S3Bucket,
				"endpoint":          c.S3Endpoint,
				"prefix":            prefixOr(c.S3Prefix),
				"cdn_domain":        c.S3CDNDomain,
				"path_style":        c.S3PathStyle,
			},
		})
	}

	if c.OSSBucket != "" {
		specs = append(specs, storage.ProviderSpec{
			Name:    storage.TypeOSS,
			Type:    storage.TypeOSS,
			Default: c.StorageDefaultProvider == storage.TypeOSS,
			Settings: map[string]interface{}{
				"access_key_id":     c.OSSAccessKeyID,
				"access_key_secret": c.OSSAccessKeySecret,
				"bucket":            c.OSSBucket,
				"region":            c.OSSRegion,
				"endpoint":          c.OSSEndpoint,
				"internal":          c.OSSInternal,
				"secure":            c.OSSSecure,
				"cname":             c.OSSCName,
				"prefix":            prefixOr(c.OSSPrefix),
				"cdn_domain":        c.OSSCDNDomain,
			},
		})
	}

	if c.COSBucket != "" {
		specs = append(specs, storage.ProviderSpec{
			Name:    storage.TypeCOS,
			Type:    storage.TypeCOS,
			Default: c.StorageDefaultProvider == storage.TypeCOS,
			Settings: map[string]interface{}{
				"secret_id":  c.COSSecretID,
				"secret_key": c.COSSecretKey,
				"bucket":     c.COSBucket,
				"region":     c.COSRegion,
				"domain":     c.COSDomain,
				"prefix":     prefixOr(c.COSPrefix),
			},
		})
	}

	if c.WebDAVEndpoint != "" {
		specs = append(specs, storage.ProviderSpec{
			Name:    storage.TypeWebDAV,
			Type:    storage.TypeWebDAV,
			Default: c.StorageDefaultProvider == storage.TypeWebDAV,
			Settings: map[string]interface{}{
				"endpoint": c.WebDAVEndpoint,
				"username": c.WebDAVUsername,
				"password": c.WebDAVPassword,
				"root":     c.WebDAVRoot,
				"base_url": c.WebDAVBaseURL,
			},
		})
	}

	return specs
}

// MaxUploadBytes 返回单次上传的字节上限
func (c *Config) MaxUploadBytes() int64 {
	size := c.UploadMaxSizeMB
	if size <= 0 {
		size = 50
	}
	return int64(size) << 20
}
