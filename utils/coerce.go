package utils

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// ToNumber 将松散类型的值转换为数值。
// 有限数值（包括数字字符串）原样返回，其余情况（nil、布尔、非数字字符串、NaN、Inf、对象）一律返回0。
func ToNumber(v interface{}) float64 {
	switch t := v.(type) {
	case nil, bool:
		return 0
	case string:
		if strings.TrimSpace(t) == "" {
			return 0
		}
		v = strings.TrimSpace(t)
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ToNumberOr 值缺失(nil)时返回默认值，其余情况同 ToNumber
func ToNumberOr(v interface{}, def float64) float64 {
	if v == nil {
		return def
	}
	return ToNumber(v)
}

// ToString 将松散类型的值转换为字符串，无法转换时返回空字符串
func ToString(v interface{}) string {
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return s
}

// ToMap 将值转换为对象，非对象返回nil
func ToMap(v interface{}) map[string]interface{} {
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil
	}
	return m
}

// ToSlice 将值转换为数组，非数组返回nil
func ToSlice(v interface{}) []interface{} {
	s, err := cast.ToSliceE(v)
	if err != nil {
		return nil
	}
	return s
}
