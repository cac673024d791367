// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// maxSanitizePasses はエンティティで二重に隠されたマークアップを剥がすための上限回数。
const maxSanitizePasses = 3

// TextSanitizer はプラットフォーム名や顧客名などの自由記述テキストからマークアップを除去する。
// 出力はHTMLエスケープされていないプレーンテキストで、"AT&T" のような値はそのまま保持される。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer は全タグを拒否するbluemondayのStrictPolicyでTextSanitizerを生成する。
// script/styleは要素の中身ごと除去される。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去し、エンティティを元の文字に戻したテキストを返す。
// "&lt;b&gt;" のようにエスケープされたタグも、結果が変化しなくなるまで繰り返し除去する。
func (s *TextSanitizer) Sanitize(text string) string {
	current := text
	for i := 0; i < maxSanitizePasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(current))
		if next == current {
			break
		}
		current = next
	}
	return current
}
