package storage

import (
	"errors"
	"fmt"
)

// ConfigError 配置缺失或非法，构造 provider 时同步返回，不可重试
type ConfigError struct {
	Provider string // provider 类型名
	Field    string // 出问题的配置字段
	Reason   string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("storage %s: invalid config field %q: %s", e.Provider, e.Field, e.Reason)
	}
	return fmt.Sprintf("storage %s: invalid config: %s", e.Provider, e.Reason)
}

// newConfigError 构造必填字段缺失错误
func newConfigError(provider, field, reason string) *ConfigError {
	return &ConfigError{Provider: provider, Field: field, Reason: reason}
}

// requireField 必填字段为空时返回 ConfigError
func requireField(provider, field, value string) error {
	if value == "" {
		return newConfigError(provider, field, "required field is empty")
	}
	return nil
}

// NotFoundError 下载时对象不存在
type NotFoundError struct {
	Provider string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("storage %s: object %q not found", e.Provider, e.Key)
}

// IsNotFound 判断是否为对象不存在错误
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// BackendError 后端 SDK 或文件系统调用失败
//
// 保留原始错误以便调用方用 errors.As 匹配后端特有的错误类型。
type BackendError struct {
	Provider string
	Op       string // 失败的操作，如 "upload"
	Err      error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("storage %s: %s failed: %v", e.Provider, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ProviderNotFoundError 按名称引用了未注册的 provider
type ProviderNotFoundError struct {
	Name string
}

func (e *ProviderNotFoundError) Error() string {
	if e.Name == "" {
		return "storage: no default provider configured"
	}
	return fmt.Sprintf("storage: provider %q not registered", e.Name)
}

// IsProviderNotFound 判断是否为 provider 未注册错误
func IsProviderNotFound(err error) bool {
	var pnf *ProviderNotFoundError
	return errors.As(err, &pnf)
}
