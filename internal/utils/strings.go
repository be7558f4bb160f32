package utils

import (
	"strconv"
	"strings"
)

// FormatControlChars makes control characters of raw protocol bytes visible. Known escapes are written as `\r`, `\n`
// etc. and other non-printable bytes as `\xNN`.
func FormatControlChars(s []byte) string {
	buf := strings.Builder{}
	for _, c := range s {
		switch c {
		case '\a':
			buf.WriteString(`\a`)
		case '\t':
			buf.WriteString(`\t`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			if c < 0x20 || c >= 0x7f {
				buf.WriteString(`\x`)
				if c < 0x10 {
					buf.WriteByte('0')
				}
				buf.WriteString(strconv.FormatUint(uint64(c), 16))
				continue
			}
			buf.WriteByte(c)
		}
	}
	return buf.String()
}
