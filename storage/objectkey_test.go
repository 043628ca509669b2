package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestJoinKey 测试对象键派生的确定性与折叠行为
func TestJoinKey(t *testing.T) {
	tests := []struct {
		name  string
		parts []string
		want  string
	}{
		{"canonical", []string{"media", "2024/05", "a.png"}, "media/2024/05/a.png"},
		{"redundant_separators", []string{"media//2024/05//", "a.png"}, "media/2024/05/a.png"},
		{"leading_separator", []string{"/media", "a.png"}, "media/a.png"},
		{"empty_parts", []string{"", "media", "", "a.png"}, "media/a.png"},
		{"dot_segments", []string{"./media", "./a.png"}, "media/a.png"},
		{"single_file", []string{"", "", "a.png"}, "a.png"},
		{"all_empty", []string{"", ""}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinKey(tt.parts...))
		})
	}
}

// TestJoinKey_Idempotent 测试同一输入重复派生得到同一个键
func TestJoinKey_Idempotent(t *testing.T) {
	first := JoinKey("media", "2024/05", "a.png")
	second := JoinKey("media", "2024/05", "a.png")
	assert.Equal(t, first, second)

	// 对规范形式再派生一次也不该变化
	assert.Equal(t, first, JoinKey(first))
}

// TestValidKey 测试对象键安全校验
func TestValidKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"simple", "file.txt", true},
		{"nested", "media/2024/file.txt", true},
		{"empty", "", false},
		{"absolute", "/etc/passwd", false},
		{"traversal", "../file.txt", false},
		{"nested_traversal", "media/../../etc/passwd", false},
		{"dotdot_only", "..", false},
		{"dot_in_name", "file..txt", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidKey(tt.key), "key: %q", tt.key)
		})
	}
}

// TestSplitPath 测试组合路径按最后一段拆分
func TestSplitPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantDir  string
		wantFile string
	}{
		{"nested", "images/2024/05/a.png", "images/2024/05", "a.png"},
		{"single", "a.png", "", "a.png"},
		{"leading_slash", "/images/a.png", "images", "a.png"},
		{"redundant_separators", "images//2024//a.png", "images/2024", "a.png"},
		{"backslashes", "images\\2024\\a.png", "images/2024", "a.png"},
		{"trailing_slash", "images/2024/", "images", "2024"},
		{"empty", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, file := SplitPath(tt.path)
			assert.Equal(t, tt.wantDir, dir)
			assert.Equal(t, tt.wantFile, file)
		})
	}
}

// TestJoinURL 测试链接拼接不产生重复斜杠
func TestJoinURL(t *testing.T) {
	tests := []struct {
		name string
		base string
		key  string
		want string
	}{
		{"plain", "https://img.example.com", "a.png", "https://img.example.com/a.png"},
		{"trailing_slash", "https://img.example.com/", "a.png", "https://img.example.com/a.png"},
		{"leading_slash_key", "https://img.example.com", "/a.png", "https://img.example.com/a.png"},
		{"nested_key", "https://img.example.com/files", "media/a.png", "https://img.example.com/files/media/a.png"},
		{"empty_key", "https://img.example.com", "", "https://img.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, JoinURL(tt.base, tt.key))
		})
	}
}

// TestPublicURL_CDNPrecedence 测试 CDN 域名永远优先于后端默认模板
func TestPublicURL_CDNPrecedence(t *testing.T) {
	backendBase := "https://bucket.s3.us-east-1.amazonaws.com"

	t.Run("cdn_set", func(t *testing.T) {
		got := PublicURL("https://cdn.example.com", backendBase, "a.png")
		assert.Equal(t, "https://cdn.example.com/a.png", got)
	})

	t.Run("cdn_bare_host", func(t *testing.T) {
		got := PublicURL("cdn.example.com", backendBase, "a.png")
		assert.Equal(t, "https://cdn.example.com/a.png", got)
	})

	t.Run("cdn_unset_falls_back", func(t *testing.T) {
		got := PublicURL("", backendBase, "a.png")
		assert.Equal(t, backendBase+"/a.png", got)
	})
}
