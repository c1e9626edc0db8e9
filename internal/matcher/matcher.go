// Package matcher 识别携带凭据的本地重定向 URL。
//
// 识别形态：http://localhost 源（可带端口与路径），查询串中出现
// key=<值> 紧跟 &secret=<值>，两个值均非空。secret 一直取到字符串末尾，
// 其后的 &k=v 也归入 secret。key 不能以 & 开头。成功与失败两个重定向目标不做区分，
// 只要带有 key/secret 即视为可交换的凭据。
package matcher

import (
	"regexp"

	"cdpoauth/pkg/domain"
)

var credentialRe = regexp.MustCompile(`^http://localhost(?:[:/][^?#]*)?\?(?:.*&)?key=(?P<key>[^&].*?)&secret=(?P<secret>.+)$`)

var (
	keyIdx    = credentialRe.SubexpIndex("key")
	secretIdx = credentialRe.SubexpIndex("secret")
)

// Match 从导航目标 URL 中提取凭据，未匹配时返回 false
func Match(rawURL string) (domain.CredentialPair, bool) {
	if rawURL == "" {
		return domain.CredentialPair{}, false
	}
	m := credentialRe.FindStringSubmatch(rawURL)
	if m == nil {
		return domain.CredentialPair{}, false
	}
	return domain.CredentialPair{Key: m[keyIdx], Secret: m[secretIdx]}, true
}
