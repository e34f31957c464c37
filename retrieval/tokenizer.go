package retrieval

import (
	"fmt"
	"sync"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

// Tokenizer 为查询分析与新颖度启发式提供 token 计数。
type Tokenizer interface {
	CountTokens(text string) int
}

// TiktokenCounter 基于 tiktoken 的 token 计数器。
// 编码数据懒加载；加载失败时回退到字符估算并记录警告。
type TiktokenCounter struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
	logger   *zap.Logger
}

// 模型编码映射（与 OpenAI 模型族对应）。
var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// NewTiktokenCounter 创建指定模型的 token 计数器。
func NewTiktokenCounter(model string, logger *zap.Logger) *TiktokenCounter {
	if logger == nil {
		logger = zap.NewNop()
	}
	encoding, ok := modelEncodings[model]
	if !ok {
		// 未知模型默认 cl100k_base
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding, logger: logger}
}

func (t *TiktokenCounter) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens 返回文本的 token 数。
// 编码初始化失败时回退到 CJK 感知的字符估算。
func (t *TiktokenCounter) CountTokens(text string) int {
	if err := t.init(); err != nil {
		t.logger.Warn("tiktoken init failed, falling back to estimate", zap.Error(err))
		return estimateTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// estimateTokens CJK 感知的 token 估算：CJK 每字约 1 token，
// 其余按 4 字符 1 token。
func estimateTokens(text string) int {
	cjk := 0
	other := 0
	for _, r := range text {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			cjk++
		} else {
			other++
		}
	}
	return cjk + other/4
}
