package dbtest

import (
	"strings"
	"testing"
	"unicode"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/log"
)

// containerOptions prepends a logger writing to tb to the given customizers.
func containerOptions(tb testing.TB, opts ...testcontainers.ContainerCustomizer) []testcontainers.ContainerCustomizer {
	customizers := make([]testcontainers.ContainerCustomizer, 0, len(opts)+1)
	customizers = append(customizers, testcontainers.WithLogger(log.TestLogger(tb)))
	return append(customizers, opts...)
}

// DatabaseName derives a Neo4j database name from the name of tb, so that
// tests sharing a container do not share a database.
//
// Database names allow ASCII letters, digits, dots and dashes, must start with
// a letter and hold between 3 and 63 characters. Every other character of the
// test name is replaced by a dash.
func DatabaseName(tb testing.TB) string {
	var b strings.Builder
	b.WriteString("t-")
	for _, r := range strings.ToLower(tb.Name()) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.') {
			b.WriteRune(r)
		} else {
			b.WriteByte('-')
		}
	}
	name := b.String()
	if len(name) > 63 {
		name = name[:63]
	}
	return strings.TrimRight(name, "-.")
}
