// Package storage 统一对象存储抽象层
//
// 对本地文件系统与多种对象存储后端（S3 兼容、阿里云 OSS、腾讯云 COS、WebDAV）
// 提供同一套能力接口：上传、下载、删除、列举、取访问链接、连通性探测。
// 业务代码通过 Driver 按名称选择后端，更换存储无需改动调用方。
package storage

import (
	"context"
	"time"
)

// 内置 provider 类型名，注册与配置均以此为键
const (
	TypeLocal  = "local"
	TypeS3     = "s3"
	TypeOSS    = "oss"
	TypeCOS    = "cos"
	TypeWebDAV = "webdav"
)

// DefaultURLExpiry 签名链接的默认有效期
const DefaultURLExpiry = 5 * time.Minute

// defaultMaxKeys 列举首页的默认条目上限，对齐对象存储后端的惯用值
const defaultMaxKeys = 1000

// defaultContentType 未指定内容类型时的上传默认值
const defaultContentType = "application/octet-stream"

// Provider 存储提供者接口 - 所有后端适配器必须实现
//
// 每个操作都是对后端的单次尽力调用，本层不做重试、缓存或跨后端复制。
type Provider interface {
	// Name 返回 provider 类型名（如 "s3"、"oss"）
	Name() string

	// Upload 上传字节内容到派生出的对象键，已存在时静默覆盖
	Upload(ctx context.Context, data []byte, fileName string, opts *Options) (*UploadResult, error)

	// Download 下载对象并完整读入内存；对象不存在返回 NotFoundError
	Download(ctx context.Context, fileName string, opts *Options) ([]byte, error)

	// Delete 删除对象；对不存在的键幂等，不返回错误
	Delete(ctx context.Context, fileName string, opts *Options) (*DeleteResult, error)

	// List 列举有效前缀下的对象名（相对名，仅首页，后端原生顺序）
	List(ctx context.Context, opts *Options) ([]string, error)

	// GetURL 返回公共访问链接；请求了有效期且后端支持签名时返回签名链接
	GetURL(ctx context.Context, fileName string, opts *Options) (string, error)

	// TestConnection 轻量探测后端连通性，永不返回 error
	TestConnection(ctx context.Context) *ConnectionResult
}

// Options 单次调用的可选参数
//
// 对应各后端请求的受控扩展点：仅下列字段会被透传，未知内容不会
// 进入后端请求，避免调用方覆盖 Bucket/Key 等原生字段。
type Options struct {
	// Directory provider 前缀下的相对子路径
	Directory string

	// Expires 大于零时请求签名链接并以此为有效期（仅 GetURL 使用）
	Expires time.Duration

	// Signed 为 true 且 Expires 为零时，按 DefaultURLExpiry 生成签名链接
	Signed bool

	// ContentType 上传时透传给后端的内容类型
	ContentType string

	// Metadata 上传时透传的用户元数据
	Metadata map[string]string

	// Marker 列举时透传的后端续传标记（仅取首页，翻页由调用方驱动）
	Marker string

	// MaxKeys 列举首页的最大条目数，0 表示默认 1000
	MaxKeys int
}

// directory 返回目录参数，接收者可为 nil
func (o *Options) directory() string {
	if o == nil {
		return ""
	}
	return o.Directory
}

// urlExpiry 计算签名链接有效期，0 表示公共链接
func (o *Options) urlExpiry() time.Duration {
	if o == nil {
		return 0
	}
	if o.Expires > 0 {
		return o.Expires
	}
	if o.Signed {
		return DefaultURLExpiry
	}
	return 0
}

func (o *Options) contentType() string {
	if o == nil || o.ContentType == "" {
		return defaultContentType
	}
	return o.ContentType
}

func (o *Options) metadata() map[string]string {
	if o == nil {
		return nil
	}
	return o.Metadata
}

func (o *Options) marker() string {
	if o == nil {
		return ""
	}
	return o.Marker
}

// maxKeys 列举首页条目上限，未设置时取后端惯用的默认值
func (o *Options) maxKeys() int {
	if o == nil || o.MaxKeys <= 0 {
		return defaultMaxKeys
	}
	return o.MaxKeys
}

// UploadResult 上传结果的统一封装
type UploadResult struct {
	// URL 对象的公共访问链接
	URL string `json:"url"`
	// Path 派生出的后端对象键
	Path string `json:"path"`
	// ETag 后端返回的实体标签，部分后端为空
	ETag string `json:"etag,omitempty"`
	// Provider 产生本结果的 provider 类型名
	Provider string `json:"provider"`
}

// DeleteResult 删除结果
//
// Success 为 false 且无 error 表示键本就不存在（幂等删除）。
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ConnectionResult 连通性探测结果
type ConnectionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
