package utils

import "strings"

// keyEscaper rewrites the characters the remote database forbids in path
// segments. '%' acts as the escape character and is escaped itself, so the
// mapping stays reversible and two distinct addresses can never collide.
var keyEscaper = strings.NewReplacer(
	"%", "%25",
	".", "%2E",
	"#", "%23",
	"$", "%24",
	"[", "%5B",
	"]", "%5D",
	"/", "%2F",
)

// EmailToKey maps an email address to a key that is safe to use as a path
// segment in the remote database. Pure and deterministic.
func EmailToKey(email string) string {
	return keyEscaper.Replace(email)
}

// ValidEmailShape is the minimal format check applied before an address is
// handed to the identity service or used to derive a key.
func ValidEmailShape(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}
