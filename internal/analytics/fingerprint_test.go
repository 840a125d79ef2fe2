package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestVisitorIDDeterministic 相同输入在任何时候都产生相同标识
func TestVisitorIDDeterministic(t *testing.T) {
	a := VisitorID("1.2.3.4", "Mozilla/5.0")
	b := VisitorID("1.2.3.4", "Mozilla/5.0")
	assert.Equal(t, a, b)
	assert.Equal(t, "kjv50r", a)
}

// TestVisitorIDEmptyInputs 缺失的输入回退为 unknown
func TestVisitorIDEmptyInputs(t *testing.T) {
	assert.Equal(t, "9fh0w7", VisitorID("", ""))
	assert.Equal(t, VisitorID("", ""), VisitorID("", ""))
	// 只缺一项时不等于全缺
	assert.NotEqual(t, VisitorID("1.2.3.4", ""), VisitorID("", ""))
}

// TestVisitorIDDistinguishesInputs 不同输入产生不同标识（不保证绝对，但常见组合应区分开）
func TestVisitorIDDistinguishesInputs(t *testing.T) {
	assert.NotEqual(t,
		VisitorID("1.2.3.4", "Mozilla/5.0"),
		VisitorID("5.6.7.8", "Mozilla/5.0"))
	assert.NotEqual(t,
		VisitorID("1.2.3.4", "Mozilla/5.0"),
		VisitorID("1.2.3.4", "curl/8.0"))
}

// TestVisitorIDBase36 输出只含 base36 字符
func TestVisitorIDBase36(t *testing.T) {
	id := VisitorID("203.0.113.7", "Mozilla/5.0 (X11; Linux x86_64)")
	assert.Regexp(t, "^[0-9a-z]+$", id)
}
