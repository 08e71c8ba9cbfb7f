// Package match はエピソードとYouTube動画をタイトルの類似度で対応付ける。
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer はタイトルを比較用の正規形に変換する。
// 番組名などの定型の接頭辞・接尾辞は大文字小文字を区別せずに取り除く。
type Normalizer struct {
	prefixes []string
	suffixes []string
}

// NewNormalizer はNormalizerを生成する。
// 接頭辞・接尾辞はタイトルと同じ折り畳みを施してから保持する。
func NewNormalizer(prefixes, suffixes []string) *Normalizer {
	n := &Normalizer{}
	for _, p := range prefixes {
		if f := strings.TrimSpace(fold(p)); f != "" {
			n.prefixes = append(n.prefixes, f)
		}
	}
	for _, s := range suffixes {
		if f := strings.TrimSpace(fold(s)); f != "" {
			n.suffixes = append(n.suffixes, f)
		}
	}
	return n
}

// Normalize はタイトルを正規化する。
//  1. Unicodeの互換分解と結合文字の除去、小文字化
//  2. 最初に一致した接頭辞と接尾辞を1つずつ除去
//  3. 句読点を除去 ("Don't" は "dont" になる)
//  4. 残った英数字以外の連続を1つの空白に置換し、前後の空白を除去
func (n *Normalizer) Normalize(title string) string {
	s := strings.TrimSpace(fold(title))

	for _, p := range n.prefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	for _, suf := range n.suffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSpace(s[:len(s)-len(suf)])
			break
		}
	}

	return collapse(s)
}

// Tokens は正規化したタイトルを空白で分割した単語集合を返す。
func (n *Normalizer) Tokens(title string) map[string]struct{} {
	fields := strings.Fields(n.Normalize(title))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// fold は互換分解（NFKD）後に結合文字を除去し、NFCに戻して小文字化する。
// 全角英数字やアクセント付き文字を素の英数字として比較できるようにする。
// かなの濁点・半濁点は除去しない。
func fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.Predicate(isStrippableMark)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

func isStrippableMark(r rune) bool {
	return unicode.Is(unicode.Mn, r) && r != '\u3099' && r != '\u309a'
}

// collapse は句読点を取り除き、それ以外の文字・数字以外の連続を1つの空白にまとめる。
func collapse(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false

	for _, r := range s {
		if unicode.IsPunct(r) {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}

	return b.String()
}
