package biz

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/kart-io/tenant-kb/internal/model"
)

const (
	collectionPrefix = "Tenant"
	// 可读前缀的最大长度
	fingerprintLength = 16
	// 附加的 sha256 十六进制位数
	digestLength = 8
)

// Fingerprint 返回租户在集合名中的标识：规范化前缀加完整 ID 的摘要。
// 前缀只保留 ASCII 字母数字，小写，最多 16 位，为空时取 "0"；
// 摘要为原始 ID sha256 的前 8 位十六进制，区分前缀相同或仅大小写不同的租户。
func Fingerprint(tenantID string) string {
	var b strings.Builder
	for _, r := range tenantID {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
			if b.Len() == fingerprintLength {
				break
			}
		}
	}
	if b.Len() == 0 {
		b.WriteByte('0')
	}
	sum := sha256.Sum256([]byte(tenantID))
	b.WriteString(hex.EncodeToString(sum[:])[:digestLength])
	return b.String()
}

// NameFor 返回 (租户, 内容类型) 对应的集合名称，如 "Tenantabcba7816bfDocument"。
func NameFor(tenantID string, contentType model.ContentType) string {
	return collectionPrefix + Fingerprint(tenantID) + capitalize(string(contentType))
}

// ownedBy 判断集合是否属于该指纹：前缀之后紧跟大写字母开头的类型后缀。
// 指纹只含小写字母和数字，所以边界是唯一的。
func ownedBy(name, fingerprint string) bool {
	prefix := collectionPrefix + fingerprint
	if !strings.HasPrefix(name, prefix) || len(name) == len(prefix) {
		return false
	}
	c := name[len(prefix)]
	return c >= 'A' && c <= 'Z'
}

// contentTypeOf 从集合名称中解析已知内容类型。
func contentTypeOf(name, fingerprint string) (model.ContentType, bool) {
	suffix := strings.TrimPrefix(name, collectionPrefix+fingerprint)
	for _, t := range model.AllContentTypes {
		if suffix == capitalize(string(t)) {
			return t, true
		}
	}
	return "", false
}

func capitalize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if b.Len() == 0 {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
