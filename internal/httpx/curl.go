package httpx

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// curlCommand renders req as a shell-safe, single-line curl invocation
// whose execution reproduces the request: the method is written as is, and
// the URL, headers, and body (if any) are each single-quoted with embedded
// single quotes escaped via the standard '"'"' technique.
func curlCommand(req *http.Request) (string, error) {
	var body []byte
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		if err != nil {
			return "", fmt.Errorf("reading request body for dry run: %w", err)
		}
		body = data
	}

	var b strings.Builder
	b.WriteString("curl -X ")
	b.WriteString(req.Method)
	b.WriteString(" ")
	b.WriteString(shellQuote(req.URL.String()))

	keys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range req.Header[k] {
			b.WriteString(" \\\n  -H ")
			b.WriteString(shellQuote(fmt.Sprintf("%s: %s", k, v)))
		}
	}

	if len(body) > 0 {
		b.WriteString(" \\\n  -d ")
		b.WriteString(shellQuote(string(body)))
	}

	return b.String(), nil
}

// shellQuote wraps s in single quotes, escaping any embedded single quote
// as '"'"' so the overall result stays a single shell token.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
