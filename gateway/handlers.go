package gateway

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nuecms/storage-provider/namegen"
	"github.com/nuecms/storage-provider/storage"
)

// Handler 文件接口处理器
type Handler struct {
	driver         *storage.Driver
	gen            *namegen.Generator
	maxUploadBytes int64
}

// NewHandler 创建文件接口处理器
func NewHandler(driver *storage.Driver, maxUploadBytes int64) *Handler {
	return &Handler{
		driver:         driver,
		gen:            namegen.NewGenerator(),
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadFile 上传单个文件
// POST /api/files  multipart 字段: file（必填）、directory、provider、name
//
// 未指定 name 时由生成器分配 日期目录/随机名。
func (h *Handler) UploadFile(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "file is required")
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		RespondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds upload limit of %d bytes", h.maxUploadBytes))
		return
	}

	provider, err := h.driver.Provider(c.PostForm("provider"))
	if err != nil {
		respondStorageError(c, err)
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "failed to open uploaded file")
		return
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(src)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}

	directory := c.PostForm("directory")
	fileName := c.PostForm("name")
	if fileName == "" {
		// 原始文件名只用来保留扩展名，存储名由生成器决定
		name := h.gen.Generate(fileHeader.Filename, time.Now())
		fileName = name.FileName
		directory = storage.JoinKey(directory, name.Directory)
	}

	result, err := provider.Upload(c.Request.Context(), data, fileName, &storage.Options{
		Directory:   directory,
		ContentType: fileHeader.Header.Get("Content-Type"),
	})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	RespondSuccess(c, gin.H{
		"file":  result,
		"path":  storage.JoinKey(directory, fileName),
		"size":  fileHeader.Size,
		"name":  fileName,
		"title": fileHeader.Filename,
	})
}

// DownloadFile 下载文件内容
// GET /api/files/*path  查询参数: provider
func (h *Handler) DownloadFile(c *gin.Context) {
	provider, dir, file, ok := h.resolve(c, c.Param("path"))
	if !ok {
		return
	}

	data, err := provider.Download(c.Request.Context(), file, &storage.Options{Directory: dir})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	c.Data(http.StatusOK, contentTypeFor(file, data), data)
}

// DeleteFile 删除文件
// DELETE /api/files/*path  查询参数: provider
//
// 键不存在也返回 200，body 中的 success 标记区分两种情况。
func (h *Handler) DeleteFile(c *gin.Context) {
	provider, dir, file, ok := h.resolve(c, c.Param("path"))
	if !ok {
		return
	}

	result, err := provider.Delete(c.Request.Context(), file, &storage.Options{Directory: dir})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	RespondSuccess(c, result)
}

// ListFiles 列举目录下的文件
// GET /api/list  查询参数: directory、provider、marker、max_keys
func (h *Handler) ListFiles(c *gin.Context) {
	provider, err := h.driver.Provider(c.Query("provider"))
	if err != nil {
		respondStorageError(c, err)
		return
	}

	maxKeys := 0
	if raw := c.Query("max_keys"); raw != "" {
		maxKeys, err = strconv.Atoi(raw)
		if err != nil || maxKeys < 0 {
			RespondError(c, http.StatusBadRequest, "invalid max_keys")
			return
		}
	}

	names, err := provider.List(c.Request.Context(), &storage.Options{
		Directory: c.Query("directory"),
		Marker:    c.Query("marker"),
		MaxKeys:   maxKeys,
	})
	if err != nil {
		respondStorageError(c, err)
		return
	}

	RespondSuccess(c, gin.H{
		"files": names,
		"count": len(names),
	})
}

// GetFileURL 获取文件访问链接
// GET /api/url  查询参数: path（必填）、provider、expires（秒）、signed
func (h *Handler) GetFileURL(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		RespondError(c, http.StatusBadRequest, "path is required")
		return
	}

	provider, dir, file, ok := h.resolve(c, path)
	if !ok {
		return
	}

	opts := &storage.Options{
		Directory: dir,
		Signed:    c.Query("signed") == "true",
	}
	if raw := c.Query("expires"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			RespondError(c, http.StatusBadRequest, "invalid expires")
			return
		}
		opts.Expires = time.Duration(seconds) * time.Second
	}

	url, err := provider.GetURL(c.Request.Context(), file, opts)
	if err != nil {
		respondStorageError(c, err)
		return
	}

	RespondSuccess(c, gin.H{"url": url})
}

// resolve 解析 provider 查询参数与组合路径
func (h *Handler) resolve(c *gin.Context, combined string) (storage.Provider, string, string, bool) {
	provider, err := h.driver.Provider(c.Query("provider"))
	if err != nil {
		respondStorageError(c, err)
		return nil, "", "", false
	}

	dir, file := storage.SplitPath(combined)
	if file == "" {
		RespondError(c, http.StatusBadRequest, "invalid file path")
		return nil, "", "", false
	}
	return provider, dir, file, true
}

// respondStorageError 把存储层错误映射为 HTTP 状态
func respondStorageError(c *gin.Context, err error) {
	switch {
	case storage.IsNotFound(err):
		RespondError(c, http.StatusNotFound, err.Error())
	case storage.IsProviderNotFound(err):
		RespondError(c, http.StatusBadRequest, err.Error())
	default:
		RespondError(c, http.StatusInternalServerError, err.Error())
	}
}

// contentTypeFor 按扩展名推断内容类型，失败时嗅探内容
func contentTypeFor(name string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}
