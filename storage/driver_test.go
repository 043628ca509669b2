package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 进程内存储实现，仅测试使用
type fakeProvider struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{objects: make(map[string][]byte)}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Upload(ctx context.Context, data []byte, fileName string, opts *Options) (*UploadResult, error) {
	key := JoinKey(opts.directory(), fileName)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return &UploadResult{URL: "https://fake.example.com/" + key, Path: key, Provider: "fake"}, nil
}

func (f *fakeProvider) Download(ctx context.Context, fileName string, opts *Options) ([]byte, error) {
	key := JoinKey(opts.directory(), fileName)
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, &NotFoundError{Provider: "fake", Key: key}
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeProvider) Delete(ctx context.Context, fileName string, opts *Options) (*DeleteResult, error) {
	key := JoinKey(opts.directory(), fileName)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[key]; !ok {
		return &DeleteResult{Success: false, Message: "file not found: " + key}, nil
	}
	delete(f.objects, key)
	return &DeleteResult{Success: true}, nil
}

func (f *fakeProvider) List(ctx context.Context, opts *Options) ([]string, error) {
	prefix := joinListPrefix(opts.directory())
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.objects))
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		names = append(names, strings.TrimPrefix(key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeProvider) GetURL(ctx context.Context, fileName string, opts *Options) (string, error) {
	return "https://fake.example.com/" + JoinKey(opts.directory(), fileName), nil
}

func (f *fakeProvider) TestConnection(ctx context.Context) *ConnectionResult {
	return &ConnectionResult{Success: true, Message: "ok"}
}

// TestDriver_RegisterAndDefault 测试注册后设为默认并按引用取回
func TestDriver_RegisterAndDefault(t *testing.T) {
	driver := NewDriver()
	provider := newFakeProvider()

	driver.RegisterProvider("main", provider)
	require.NoError(t, driver.SetDefaultProvider("main"))

	got, err := driver.DefaultProvider()
	require.NoError(t, err)
	assert.Same(t, Provider(provider), got)
	assert.Equal(t, "main", driver.DefaultProviderName())
}

// TestDriver_SetDefaultUnregistered 测试默认指针只能指向已注册名称
func TestDriver_SetDefaultUnregistered(t *testing.T) {
	driver := NewDriver()
	err := driver.SetDefaultProvider("missing")
	require.Error(t, err)
	assert.True(t, IsProviderNotFound(err))
}

// TestDriver_ProviderLookup 测试按名称与默认名称取 provider
func TestDriver_ProviderLookup(t *testing.T) {
	driver := NewDriver()
	provider := newFakeProvider()
	driver.RegisterProvider("main", provider)

	t.Run("by_name", func(t *testing.T) {
		got, err := driver.Provider("main")
		require.NoError(t, err)
		assert.Same(t, Provider(provider), got)
	})

	t.Run("unknown_name", func(t *testing.T) {
		_, err := driver.Provider("other")
		require.Error(t, err)
		assert.True(t, IsProviderNotFound(err))
	})

	t.Run("no_default_configured", func(t *testing.T) {
		_, err := driver.Provider("")
		require.Error(t, err)
		assert.True(t, IsProviderNotFound(err))
		assert.Contains(t, err.Error(), "no default provider")
	})
}

// TestDriver_RemoveProvider 测试移除行为
//
// 移除当前默认不受保护，之后针对默认的调用以 ProviderNotFoundError 失败。
func TestDriver_RemoveProvider(t *testing.T) {
	driver := NewDriver()
	driver.RegisterProvider("main", newFakeProvider())
	require.NoError(t, driver.SetDefaultProvider("main"))

	// 不存在的名称是空操作
	driver.RemoveProvider("missing")

	driver.RemoveProvider("main")
	_, err := driver.DefaultProvider()
	require.Error(t, err)
	assert.True(t, IsProviderNotFound(err))

	_, err = driver.DownloadFile(context.Background(), "a.png")
	require.Error(t, err)
	assert.True(t, IsProviderNotFound(err))
}

// TestDriver_ReplaceProvider 测试同名注册静默覆盖
func TestDriver_ReplaceProvider(t *testing.T) {
	driver := NewDriver()
	first := newFakeProvider()
	second := newFakeProvider()

	driver.RegisterProvider("main", first)
	driver.RegisterProvider("main", second)

	got, err := driver.Provider("main")
	require.NoError(t, err)
	assert.Same(t, Provider(second), got)
}

// TestDriver_ProviderNames 测试名称列举按字典序
func TestDriver_ProviderNames(t *testing.T) {
	driver := NewDriver()
	driver.RegisterProvider("b", newFakeProvider())
	driver.RegisterProvider("a", newFakeProvider())
	driver.RegisterProvider("c", newFakeProvider())

	assert.Equal(t, []string{"a", "b", "c"}, driver.ProviderNames())
}

// TestDriver_PathOps 测试组合路径便捷操作的拆分与委托
func TestDriver_PathOps(t *testing.T) {
	driver := NewDriver()
	provider := newFakeProvider()
	driver.RegisterProvider("main", provider)
	require.NoError(t, driver.SetDefaultProvider("main"))

	ctx := context.Background()
	content := []byte("hello storage")

	result, err := driver.UploadFile(ctx, content, "images/2024/05/a.png", nil)
	require.NoError(t, err)
	assert.Equal(t, "images/2024/05/a.png", result.Path)

	// 适配器收到的是拆分后的 directory 与 fileName
	provider.mu.Lock()
	_, stored := provider.objects["images/2024/05/a.png"]
	provider.mu.Unlock()
	assert.True(t, stored)

	data, err := driver.DownloadFile(ctx, "images/2024/05/a.png")
	require.NoError(t, err)
	assert.Equal(t, content, data)

	url, err := driver.GetFileURL(ctx, "images/2024/05/a.png", nil)
	require.NoError(t, err)
	assert.Equal(t, "https://fake.example.com/images/2024/05/a.png", url)

	deleted, err := driver.DeleteFile(ctx, "images/2024/05/a.png")
	require.NoError(t, err)
	assert.True(t, deleted.Success)

	_, err = driver.DownloadFile(ctx, "images/2024/05/a.png")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

// TestDriver_PathOps_Normalization 测试组合路径的规整
func TestDriver_PathOps_Normalization(t *testing.T) {
	driver := NewDriver()
	provider := newFakeProvider()
	driver.RegisterProvider("main", provider)
	require.NoError(t, driver.SetDefaultProvider("main"))

	ctx := context.Background()

	// 首部斜杠与重复分隔符不影响派生出的键
	_, err := driver.UploadFile(ctx, []byte("x"), "/images//2024//a.png", nil)
	require.NoError(t, err)

	data, err := driver.DownloadFile(ctx, "images/2024/a.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), data)
}

// TestDriver_PathOps_InvalidPath 测试无法拆出文件名的组合路径
func TestDriver_PathOps_InvalidPath(t *testing.T) {
	driver := NewDriver()
	driver.RegisterProvider("main", newFakeProvider())
	require.NoError(t, driver.SetDefaultProvider("main"))

	for _, path := range []string{"", "/", "//"} {
		_, err := driver.UploadFile(context.Background(), []byte("x"), path, nil)
		assert.Error(t, err, "path: %q", path)
	}
}

// TestDriver_ConcurrentAccess 测试注册表在并发读写下的安全性
func TestDriver_ConcurrentAccess(t *testing.T) {
	driver := NewDriver()
	driver.RegisterProvider("main", newFakeProvider())
	require.NoError(t, driver.SetDefaultProvider("main"))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			driver.RegisterProvider(fmt.Sprintf("worker-%d", n%10), newFakeProvider())
		}(i)
		go func() {
			defer wg.Done()
			_, _ = driver.DefaultProvider()
			_ = driver.ProviderNames()
		}()
	}
	wg.Wait()

	got, err := driver.DefaultProvider()
	require.NoError(t, err)
	assert.NotNil(t, got)
}
