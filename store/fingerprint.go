package store

import (
	"fmt"
	"strings"

	"flaremail/models"
)

// Fingerprint builds a cheap order- and content-sensitive digest of a mail
// list. Two lists with the same ids, read flags and timestamps in the same
// order always produce the same value; any difference in one of those
// fields changes it. It is an equality proxy, not a cryptographic digest.
func Fingerprint(mails []models.Mail) string {
	var b strings.Builder
	for i, m := range mails {
		if i > 0 {
			b.WriteByte('|')
		}
		read := 0
		if m.Read {
			read = 1
		}
		fmt.Fprintf(&b, "%s:%d:%d", m.ID, read, m.CreatedAt)
	}
	return b.String()
}
