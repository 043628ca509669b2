package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

func init() {
	RegisterBuilder(TypeLocal, func(settings map[string]interface{}) (Provider, error) {
		var cfg LocalConfig
		if err := decodeSettings(TypeLocal, settings, &cfg); err != nil {
			return nil, err
		}
		return NewLocalStorage(cfg)
	})
}

// LocalConfig 本地文件存储配置
type LocalConfig struct {
	// BaseDir 存储根目录，构造时创建并做可写探测
	BaseDir string `mapstructure:"base_dir"`
	// BaseURL 生成访问链接的基础地址，如 https://img.example.com/files
	BaseURL string `mapstructure:"base_url"`
}

// LocalStorage 本地文件存储实现
type LocalStorage struct {
	cfg        LocalConfig
	absBaseDir string
}

// NewLocalStorage 创建本地存储提供者
//
// 根目录不存在时自动创建，并写入临时文件探测可写性。
func NewLocalStorage(cfg LocalConfig) (*LocalStorage, error) {
	if err := requireField(TypeLocal, "base_dir", cfg.BaseDir); err != nil {
		return nil, err
	}
	if err := requireField(TypeLocal, "base_url", cfg.BaseURL); err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(cfg.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for '%s': %w", cfg.BaseDir, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create local storage directory '%s': %w", absPath, err)
	}

	testFile := filepath.Join(absPath, ".write_test_"+strconv.FormatInt(time.Now().UnixNano(), 10))
	f, err := os.Create(testFile)
	if err != nil {
		return nil, fmt.Errorf("local storage directory '%s' is not writable: %w", absPath, err)
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	return &LocalStorage{
		cfg:        cfg,
		absBaseDir: absPath + string(os.PathSeparator),
	}, nil
}

// Name 返回存储类型名称
func (s *LocalStorage) Name() string {
	return TypeLocal
}

// Upload 保存文件到本地存储
func (s *LocalStorage) Upload(ctx context.Context, data []byte, fileName string, opts *Options) (*UploadResult, error) {
	key := JoinKey(opts.directory(), fileName)
	dstPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return nil, s.backendError("upload", key, fmt.Errorf("failed to create directory for '%s': %w", key, err))
	}
	if err := os.WriteFile(dstPath, data, 0644); err != nil {
		return nil, s.backendError("upload", key, err)
	}

	return &UploadResult{
		URL:      JoinURL(s.cfg.BaseURL, key),
		Path:     key,
		Provider: TypeLocal,
	}, nil
}

// Download 从本地存储读取文件内容
func (s *LocalStorage) Download(ctx context.Context, fileName string, opts *Options) ([]byte, error) {
	key := JoinKey(opts.directory(), fileName)
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Provider: TypeLocal, Key: key}
		}
		return nil, s.backendError("download", key, err)
	}
	return data, nil
}

// Delete 从本地存储删除文件
//
// 文件不存在时返回 Success=false 的结构化结果而不是错误，
// 重复删除同一个键永远不会失败。
func (s *LocalStorage) Delete(ctx context.Context, fileName string, opts *Options) (*DeleteResult, error) {
	key := JoinKey(opts.directory(), fileName)
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return &DeleteResult{Success: false, Message: fmt.Sprintf("file not found: %s", key)}, nil
		}
		return nil, s.backendError("delete", key, err)
	}
	return &DeleteResult{Success: true}, nil
}

// List 列出目录下的文件名
//
// 只返回文件不返回子目录，目录不存在视作空结果。
func (s *LocalStorage) List(ctx context.Context, opts *Options) ([]string, error) {
	dir := JoinKey(opts.directory())
	fullPath := s.absBaseDir
	if dir != "" {
		resolved, err := s.resolve(dir)
		if err != nil {
			return nil, err
		}
		fullPath = resolved
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, s.backendError("list", dir, err)
	}

	marker := opts.marker()
	maxKeys := opts.maxKeys()
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if marker != "" && name <= marker {
			continue
		}
		names = append(names, name)
		if len(names) >= maxKeys {
			break
		}
	}
	return names, nil
}

// GetURL 生成文件的公共访问链接
//
// 本地存储不支持签名链接，过期参数被忽略。
func (s *LocalStorage) GetURL(ctx context.Context, fileName string, opts *Options) (string, error) {
	key := JoinKey(opts.directory(), fileName)
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid storage path: '%s'", key)
	}
	return JoinURL(s.cfg.BaseURL, key), nil
}

// TestConnection 检查存储根目录是否可读
func (s *LocalStorage) TestConnection(ctx context.Context) *ConnectionResult {
	if _, err := os.ReadDir(s.absBaseDir); err != nil {
		return &ConnectionResult{Success: false, Message: fmt.Sprintf("local storage directory is not readable: %v", err)}
	}
	return &ConnectionResult{Success: true, Message: "local storage connection successful"}
}

// BaseDir 返回存储根目录的绝对路径
func (s *LocalStorage) BaseDir() string {
	return s.absBaseDir
}

// resolve 把对象键映射为根目录内的绝对路径
func (s *LocalStorage) resolve(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid storage path: '%s'", key)
	}

	fullPath := filepath.Join(s.absBaseDir, filepath.FromSlash(key))

	// 防止目录遍历攻击
	if !strings.HasPrefix(fullPath, s.absBaseDir) {
		return "", fmt.Errorf("invalid file path, potential directory traversal: %s", key)
	}
	return fullPath, nil
}

// backendError 在适配器边界记录后端错误并原样向上抛出
func (s *LocalStorage) backendError(op, key string, err error) error {
	log.Printf("Local storage %s failed for '%s': %v", op, key, err)
	return &BackendError{Provider: TypeLocal, Op: op, Err: err}
}
