package storage

import (
	"strings"
)

// 对象键与 URL 派生的纯函数集合。
// 同一组 (prefix, directory, fileName) 输入永远派生出同一个键，
// 不依赖任何后端状态，可脱离网络单测。

// JoinKey 以 '/' 拼接路径片段并规整为后端对象键
//
// 连续分隔符折叠为一个，去掉首段斜杠与 "." 片段：
// JoinKey("media", "2024/05", "a.png") == "media/2024/05/a.png"。
func JoinKey(parts ...string) string {
	segments := make([]string, 0, len(parts)*2)
	for _, part := range parts {
		for _, seg := range strings.Split(part, "/") {
			if seg == "" || seg == "." {
				continue
			}
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "/")
}

// ValidKey 校验派生对象键是否可以安全提交给后端
//
// 空键、绝对路径以及包含 ".." 片段的键一律拒绝。
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// SplitPath 把组合路径拆成 (directory, fileName)
//
// 仅 Driver 的路径便捷操作使用；先规整再按最后一段切分，
// 反斜杠视作分隔符。
func SplitPath(p string) (dir, file string) {
	p = JoinKey(strings.ReplaceAll(p, "\\", "/"))
	idx := strings.LastIndex(p, "/")
	if idx < 0 {
		return "", p
	}
	return p[:idx], p[idx+1:]
}

// JoinURL 拼接基础地址与对象键，避免产生重复斜杠
func JoinURL(base, key string) string {
	base = strings.TrimRight(base, "/")
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return base
	}
	return base + "/" + key
}

// PublicURL 按全局约定生成公共访问链接
//
// cdnDomain 配置后永远优先于后端默认模板；裸域名默认补全 https。
func PublicURL(cdnDomain, backendBase, key string) string {
	if cdnDomain != "" {
		return JoinURL(ensureScheme(cdnDomain), key)
	}
	return JoinURL(backendBase, key)
}

// ensureScheme 为裸域名补全 https 前缀
func ensureScheme(domain string) string {
	if strings.Contains(domain, "://") {
		return domain
	}
	return "https://" + domain
}
