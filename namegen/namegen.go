// Package namegen 生成按日期分层的唯一存储对象名
package namegen

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// 扩展名的最大长度（含点号），超出视作不可信并丢弃
const maxExtLen = 10

// Generator 对象名生成器
type Generator struct{}

// NewGenerator 创建对象名生成器
func NewGenerator() *Generator {
	return &Generator{}
}

// StorageName 生成的存储名对
type StorageName struct {
	// FileName 唯一文件名，如 a1b2c3d4e5f6.jpg
	FileName string
	// Directory 日期目录，如 2024/01/15
	Directory string
}

// Path 返回组合存储路径，如 2024/01/15/a1b2c3d4e5f6.jpg
func (n StorageName) Path() string {
	return n.Directory + "/" + n.FileName
}

// Generate 根据原始文件名与上传时间生成存储名
//
// 目录按上传日期分层，文件名是 12 位十六进制随机标识，
// 保留清洗后的原始扩展名。原始名称本身不进入结果，避免
// 用户可控内容污染对象键。
func (g *Generator) Generate(originalName string, uploadTime time.Time) StorageName {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]

	return StorageName{
		FileName:  id + sanitizeExt(originalName),
		Directory: uploadTime.Format("2006/01/02"),
	}
}

// sanitizeExt 提取并清洗扩展名，不可信时返回空
func sanitizeExt(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" || ext == "." || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
