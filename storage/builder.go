package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Builder 根据原始配置构造一个存储提供者实例
//
// 构造阶段只做配置校验，不访问网络；缺失必填项时返回 *ConfigError。
type Builder func(settings map[string]interface{}) (Provider, error)

var (
	buildersMu sync.RWMutex
	builders   = make(map[string]Builder)
)

// RegisterBuilder 注册一种后端类型的构造函数
//
// 各适配器在 init 中自注册，重复注册同一类型会 panic。
func RegisterBuilder(typ string, builder Builder) {
	buildersMu.Lock()
	defer buildersMu.Unlock()
	if builder == nil {
		panic("storage: RegisterBuilder called with nil builder")
	}
	if _, dup := builders[typ]; dup {
		panic("storage: RegisterBuilder called twice for type " + typ)
	}
	builders[typ] = builder
}

// BuilderTypes 返回当前已注册的后端类型（字典序）
func BuilderTypes() []string {
	buildersMu.RLock()
	defer buildersMu.RUnlock()
	types := make([]string, 0, len(builders))
	for typ := range builders {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// NewProvider 按类型构造提供者实例
func NewProvider(typ string, settings map[string]interface{}) (Provider, error) {
	buildersMu.RLock()
	builder, ok := builders[typ]
	buildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage type: %s", typ)
	}
	return builder(settings)
}

// decodeSettings 把原始 map 解码进适配器各自的配置结构体
//
// 键名大小写不敏感，未知键直接忽略，便于同一份配置携带多个后端的字段。
func decodeSettings(typ string, settings map[string]interface{}, target interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return fmt.Errorf("failed to create %s settings decoder: %w", typ, err)
	}
	if err := decoder.Decode(settings); err != nil {
		return fmt.Errorf("failed to decode %s settings: %w", typ, err)
	}
	return nil
}

// ProviderSpec 描述一个待注册的提供者实例
type ProviderSpec struct {
	// Name 注册名，同名后注册的覆盖先注册的
	Name string
	// Type 后端类型，对应 RegisterBuilder 的注册键
	Type string
	// Settings 原始配置，解码规则由各适配器决定
	Settings map[string]interface{}
	// Default 是否作为默认提供者
	Default bool
}

// NewDriverFromSpecs 批量构造提供者并组装 Driver
//
// 任何一个实例配置非法都立刻失败，不返回半初始化的 Driver。
// 未显式指定默认时，第一个实例即默认。
func NewDriverFromSpecs(specs []ProviderSpec) (*Driver, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no storage providers configured")
	}

	driver := NewDriver()
	defaultName := ""
	for _, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("storage provider name is required")
		}
		provider, err := NewProvider(spec.Type, spec.Settings)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage provider %s: %w", spec.Name, err)
		}
		driver.RegisterProvider(spec.Name, provider)
		if spec.Default && defaultName == "" {
			defaultName = spec.Name
		}
	}
	if defaultName == "" {
		defaultName = specs[0].Name
	}
	if err := driver.SetDefaultProvider(defaultName); err != nil {
		return nil, err
	}
	return driver, nil
}
