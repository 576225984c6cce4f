package util

import "strings"

const (
	SeeMorePadding = 500
	ZeroWidthSpace = "\u200b"
	// SeeMoreThreshold is the line count above which a reply gets folded.
	SeeMoreThreshold = 8
)

// 카카오톡 '전체보기' 접힘: header 뒤에 제로폭 문자를 채워 body를 접는다.
func SeeMore(header, body string) string {
	if strings.TrimSpace(body) == "" {
		return header
	}
	header = strings.TrimSpace(header)
	body = StripLeadingHeader(body, header)

	var b strings.Builder
	b.Grow(len(header) + len(body) + SeeMorePadding*len(ZeroWidthSpace) + 1)
	b.WriteString(header)
	b.WriteString(strings.Repeat(ZeroWidthSpace, SeeMorePadding))
	if !strings.HasPrefix(body, "\n") {
		b.WriteByte('\n')
	}
	b.WriteString(body)
	return b.String()
}

// FoldLines joins lines under header and folds them only when there are more
// than SeeMoreThreshold of them.
func FoldLines(header string, lines []string) string {
	body := strings.Join(lines, "\n")
	if len(lines) <= SeeMoreThreshold {
		if body == "" {
			return header
		}
		return strings.TrimSpace(header) + "\n" + body
	}
	return SeeMore(header, body)
}

// 첫 줄에 중복된 헤더가 있으면 제거한다.
func StripLeadingHeader(text, header string) string {
	if strings.TrimSpace(text) == "" || strings.TrimSpace(header) == "" {
		return text
	}
	for _, sep := range []string{"\r\n\r\n", "\n\n", "\r\n", "\n", ""} {
		if candidate := header + sep; strings.HasPrefix(text, candidate) {
			return strings.TrimPrefix(text, candidate)
		}
	}
	return text
}
