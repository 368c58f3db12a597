// Package version 比较插件版本号 (MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD])。
package version

import (
	"UpdateAegis/internal/core/port"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"
)

// Ordering 是两个版本的比较结果
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Greater:
		return "greater"
	default:
		return "equal"
	}
}

// ErrInvalidVersionFormat 表示版本字符串不是完整的三段式语义化版本
var ErrInvalidVersionFormat = fmt.Errorf("%w: 版本号格式无效", port.ErrValidation)

// x/mod/semver 接受 "v1" 和 "v1.2" 这样的简写，这里要求三段齐全
var strictCore = regexp.MustCompile(`^(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:[-+].*)?$`)

// Normalize 去掉首尾空白和一个前导的 "v"/"V"。GitHub 标签通常带 v，存储的版本号不带。
func Normalize(tag string) string {
	s := strings.TrimSpace(tag)
	if len(s) > 0 && (s[0] == 'v' || s[0] == 'V') {
		s = s[1:]
	}
	return s
}

// Validate 检查版本号是否合法，返回规范化后的字符串
func Validate(v string) (string, error) {
	n := Normalize(v)
	if !strictCore.MatchString(n) || !semver.IsValid("v"+n) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVersionFormat, v)
	}
	return n, nil
}

// Compare 按语义化版本优先级比较 a 与 b
func Compare(a, b string) (Ordering, error) {
	na, err := Validate(a)
	if err != nil {
		return Equal, err
	}
	nb, err := Validate(b)
	if err != nil {
		return Equal, err
	}
	return Ordering(semver.Compare("v"+na, "v"+nb)), nil
}

// IsNewer 报告 candidate 是否严格新于 baseline
func IsNewer(candidate, baseline string) (bool, error) {
	o, err := Compare(candidate, baseline)
	if err != nil {
		return false, err
	}
	return o == Greater, nil
}

// Max 返回 versions 中最大的合法版本及其下标，非法条目被跳过。没有合法版本时下标为 -1。
func Max(versions []string) (string, int) {
	best, idx := "", -1
	for i, v := range versions {
		n, err := Validate(v)
		if err != nil {
			continue
		}
		if idx < 0 || semver.Compare("v"+n, "v"+best) > 0 {
			best, idx = n, i
		}
	}
	return best, idx
}
