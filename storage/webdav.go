package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path"
	"strings"

	"github.com/studio-b12/gowebdav"
)

func init() {
	RegisterBuilder(TypeWebDAV, func(settings map[string]interface{}) (Provider, error) {
		var cfg WebDAVConfig
		if err := decodeSettings(TypeWebDAV, settings, &cfg); err != nil {
			return nil, err
		}
		return newWebDAVStorage(cfg)
	})
}

// WebDAVConfig WebDAV 存储配置
type WebDAVConfig struct {
	// Endpoint WebDAV 服务地址，如 https://dav.example.com/remote.php/dav
	Endpoint string `mapstructure:"endpoint"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// Root 远端根路径，所有对象都存放在它之下
	Root string `mapstructure:"root"`
	// BaseURL 生成访问链接的基础地址，留空退回 Endpoint+Root
	BaseURL string `mapstructure:"base_url"`
}

// webdavStorage WebDAV 存储实现
//
// 客户端不感知 context，所有调用通过 callWithContext 包装以支持取消。
type webdavStorage struct {
	client   *gowebdav.Client
	cfg      WebDAVConfig
	rootPath string
	baseURL  string
}

// newWebDAVStorage 创建 WebDAV 存储提供者
//
// 只做配置校验与客户端装配，不发起网络请求。
func newWebDAVStorage(cfg WebDAVConfig) (*webdavStorage, error) {
	if err := requireField(TypeWebDAV, "endpoint", cfg.Endpoint); err != nil {
		return nil, err
	}

	rootPath := strings.Trim(cfg.Root, "/")
	if rootPath != "" {
		rootPath = "/" + rootPath
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(cfg.Endpoint, "/") + rootPath
	}

	return &webdavStorage{
		client:   gowebdav.NewClient(cfg.Endpoint, cfg.Username, cfg.Password),
		cfg:      cfg,
		rootPath: rootPath,
		baseURL:  baseURL,
	}, nil
}

// Name 返回存储类型名称
func (s *webdavStorage) Name() string {
	return TypeWebDAV
}

// Upload 保存文件到 WebDAV
func (s *webdavStorage) Upload(ctx context.Context, data []byte, fileName string, opts *Options) (*UploadResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}
	fullPath := s.fullPath(key)

	// WebDAV 写入前必须逐级保证父目录存在
	if err := s.ensureParentDir(ctx, fullPath); err != nil {
		return nil, s.backendError("upload", key, err)
	}

	err = callWithContext(ctx, func() error {
		return s.client.Write(fullPath, data, 0644)
	})
	if err != nil {
		return nil, s.backendError("upload", key, err)
	}

	return &UploadResult{
		URL:      JoinURL(s.baseURL, key),
		Path:     key,
		Provider: TypeWebDAV,
	}, nil
}

// Download 从 WebDAV 读取文件内容
func (s *webdavStorage) Download(ctx context.Context, fileName string, opts *Options) ([]byte, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = callWithContext(ctx, func() error {
		b, err := s.client.Read(s.fullPath(key))
		if err != nil {
			return err
		}
		data = b
		return nil
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return nil, &NotFoundError{Provider: TypeWebDAV, Key: key}
		}
		return nil, s.backendError("download", key, err)
	}
	return data, nil
}

// Delete 从 WebDAV 删除文件
//
// 文件不存在时返回 Success=false 的结构化结果而不是错误。
// DELETE 对缺失路径的 404 会被客户端吞掉，先以 Stat 探测存在性。
func (s *webdavStorage) Delete(ctx context.Context, fileName string, opts *Options) (*DeleteResult, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return nil, err
	}
	fullPath := s.fullPath(key)

	err = callWithContext(ctx, func() error {
		_, err := s.client.Stat(fullPath)
		return err
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
			return &DeleteResult{Success: false, Message: fmt.Sprintf("file not found: %s", key)}, nil
		}
		return nil, s.backendError("delete", key, err)
	}

	err = callWithContext(ctx, func() error {
		return s.client.Remove(fullPath)
	})
	if err != nil {
		return nil, s.backendError("delete", key, err)
	}
	return &DeleteResult{Success: true}, nil
}

// List 列出目录下的文件名
//
// 只返回文件不返回子目录，目录不存在视作空结果。
func (s *webdavStorage) List(ctx context.Context, opts *Options) ([]string, error) {
	dir := JoinKey(opts.directory())
	dirPath := s.rootPath
	if dir != "" {
		dirPath = s.fullPath(dir)
	}
	if dirPath == "" {
		dirPath = "/"
	}

	var entries []os.FileInfo
	err := callWithContext(ctx, func() error {
		list, err := s.client.ReadDir(dirPath)
		if err != nil {
			return err
		}
		entries = list
		return nil
	})
	if err != nil {
		if gowebdav.IsErrNotFound(err) {
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
// WebDAV 不支持签名链接，过期参数被忽略。
func (s *webdavStorage) GetURL(ctx context.Context, fileName string, opts *Options) (string, error) {
	key, err := s.objectKey(fileName, opts)
	if err != nil {
		return "", err
	}
	return JoinURL(s.baseURL, key), nil
}

// TestConnection 检查远端根目录是否可读
func (s *webdavStorage) TestConnection(ctx context.Context) *ConnectionResult {
	err := callWithContext(ctx, func() error {
		dirPath := s.rootPath
		if dirPath == "" {
			dirPath = "/"
		}
		_, err := s.client.ReadDir(dirPath)
		return err
	})
	if err != nil {
		return &ConnectionResult{Success: false, Message: fmt.Sprintf("webdav connection failed: %v", err)}
	}
	return &ConnectionResult{Success: true, Message: "WebDAV connection successful"}
}

// objectKey 派生对象键：directory/fileName
func (s *webdavStorage) objectKey(fileName string, opts *Options) (string, error) {
	key := JoinKey(opts.directory(), fileName)
	if fileName == "" || !ValidKey(key) {
		return "", fmt.Errorf("invalid storage path: '%s'", key)
	}
	return key, nil
}

// fullPath 生成完整的远端路径
func (s *webdavStorage) fullPath(key string) string {
	return s.rootPath + "/" + key
}

// ensureParentDir 逐级创建父目录
func (s *webdavStorage) ensureParentDir(ctx context.Context, fullPath string) error {
	parentDir := path.Dir(fullPath)
	if parentDir == "/" || parentDir == "." {
		return nil
	}

	currentPath := ""
	for _, part := range strings.Split(strings.Trim(parentDir, "/"), "/") {
		if part == "" {
			continue
		}
		currentPath = currentPath + "/" + part

		p := currentPath
		err := callWithContext(ctx, func() error {
			return s.client.Mkdir(p, os.FileMode(0755))
		})
		if err != nil && !isCollectionExistsError(err) {
			return fmt.Errorf("failed to create directory %s: %w", currentPath, err)
		}
	}
	return nil
}

// isCollectionExistsError 判断是否为目录已存在的错误
//
// 各家 WebDAV 服务器对重复建目录的报错不统一，这里按常见文案匹配。
func isCollectionExistsError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	for _, s := range []string{
		"already exists",
		"conflict",
		"Conflict",
		"409",
		"Method Not Allowed",
		"405",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}
	return false
}

// backendError 在适配器边界记录后端错误并原样向上抛出
func (s *webdavStorage) backendError(op, key string, err error) error {
	log.Printf("WebDAV storage %s failed for '%s': %v", op, key, err)
	return &BackendError{Provider: TypeWebDAV, Op: op, Err: err}
}
