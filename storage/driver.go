package storage

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
)

// Driver 存储驱动 - 持有多个命名提供者实例和一个默认指针
//
// 注册表是实例级状态而非进程级单例，便于在一个进程内并存多套注册表。
// 读多写少：注册、移除、设默认走写锁，其余操作只持读锁。
type Driver struct {
	mu              sync.RWMutex
	providers       map[string]Provider
	defaultProvider string
}

// NewDriver 创建空的存储驱动
func NewDriver() *Driver {
	return &Driver{
		providers: make(map[string]Provider),
	}
}

// RegisterProvider 注册提供者实例
//
// 同名注册直接覆盖旧实例，不报错。
func (d *Driver) RegisterProvider(name string, provider Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.providers[name]; ok {
		log.Printf("Storage provider '%s' replaced", name)
	}
	d.providers[name] = provider
}

// RemoveProvider 移除提供者实例，名称不存在时为空操作
//
// 移除当前默认提供者不受保护：默认指针保持原值，
// 后续针对默认提供者的调用以 ProviderNotFoundError 失败。
func (d *Driver) RemoveProvider(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.providers, name)
}

// SetDefaultProvider 设置默认提供者，名称未注册时返回 ProviderNotFoundError
func (d *Driver) SetDefaultProvider(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.providers[name]; !ok {
		return &ProviderNotFoundError{Name: name}
	}
	d.defaultProvider = name
	log.Printf("Default storage provider set to: '%s'", name)
	return nil
}

// Provider 获取指定名称的提供者，空名称返回默认提供者
func (d *Driver) Provider(name string) (Provider, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if name == "" {
		name = d.defaultProvider
	}
	provider, ok := d.providers[name]
	if !ok {
		return nil, &ProviderNotFoundError{Name: name}
	}
	return provider, nil
}

// DefaultProvider 获取默认提供者
func (d *Driver) DefaultProvider() (Provider, error) {
	return d.Provider("")
}

// DefaultProviderName 获取默认提供者名称
func (d *Driver) DefaultProviderName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.defaultProvider
}

// ProviderNames 列出所有已注册的提供者名称（字典序）
func (d *Driver) ProviderNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.providers))
	for name := range d.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UploadFile 按组合路径上传到默认提供者
//
// 组合路径只在这一层拆分，适配器永远分开接收 fileName 与 directory。
func (d *Driver) UploadFile(ctx context.Context, data []byte, path string, opts *Options) (*UploadResult, error) {
	provider, dir, file, err := d.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return provider.Upload(ctx, data, file, optionsWithDirectory(opts, dir))
}

// DownloadFile 按组合路径从默认提供者下载
func (d *Driver) DownloadFile(ctx context.Context, path string) ([]byte, error) {
	provider, dir, file, err := d.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return provider.Download(ctx, file, optionsWithDirectory(nil, dir))
}

// DeleteFile 按组合路径从默认提供者删除
func (d *Driver) DeleteFile(ctx context.Context, path string) (*DeleteResult, error) {
	provider, dir, file, err := d.resolvePath(path)
	if err != nil {
		return nil, err
	}
	return provider.Delete(ctx, file, optionsWithDirectory(nil, dir))
}

// GetFileURL 按组合路径获取默认提供者的访问链接
func (d *Driver) GetFileURL(ctx context.Context, path string, opts *Options) (string, error) {
	provider, dir, file, err := d.resolvePath(path)
	if err != nil {
		return "", err
	}
	return provider.GetURL(ctx, file, optionsWithDirectory(opts, dir))
}

// resolvePath 拆分组合路径并取默认提供者
func (d *Driver) resolvePath(path string) (Provider, string, string, error) {
	provider, err := d.DefaultProvider()
	if err != nil {
		return nil, "", "", err
	}
	dir, file := SplitPath(path)
	if file == "" {
		return nil, "", "", fmt.Errorf("invalid storage path: '%s'", path)
	}
	return provider, dir, file, nil
}

// optionsWithDirectory 克隆调用选项并覆盖目录字段
func optionsWithDirectory(opts *Options, dir string) *Options {
	merged := Options{}
	if opts != nil {
		merged = *opts
	}
	merged.Directory = dir
	return &merged
}
