package utils

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration 配置用时长，yaml里写 "500ms" / "3s" 这类字符串，
// 也兼容纯数字（按纳秒解释）。
type Duration time.Duration

// Std 转回标准库时长
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalYAML 以可读字符串输出
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML 接受时长字符串或纳秒整数
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Tag == "!!int" {
		var ns int64
		if err := value.Decode(&ns); err != nil {
			return fmt.Errorf("时长格式非法: %s", value.Value)
		}
		*d = Duration(ns)
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("时长格式非法: %s", value.Value)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("时长格式非法: %q", raw)
	}
	*d = Duration(parsed)
	return nil
}
