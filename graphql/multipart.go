package graphql

import (
	"regexp"
	"strings"
)

// boundaryPattern extracts the boundary token from a multipart/mixed
// Content-Type header, either quoted or bare.
var boundaryPattern = regexp.MustCompile(`(?i)boundary=(?:"([^"]+)"|([^;]+))`)

// fallbackBoundaryToken makes extractSeparator produce the spec's "---"
// fallback separator via the same "--"+token formula used for a real
// boundary, when the content-type carries none.
const fallbackBoundaryToken = "-"

// extractBoundary returns the boundary token declared in contentType, or
// fallbackBoundaryToken if none is present.
func extractBoundary(contentType string) string {
	m := boundaryPattern.FindStringSubmatch(contentType)
	if m == nil {
		return fallbackBoundaryToken
	}
	if m[1] != "" {
		return m[1]
	}
	return strings.TrimSpace(m[2])
}

// multipartFramer implements the buffered boundary-scan from SPEC_FULL.md
// §4.3: it accumulates decoded text and, whenever the buffer contains at
// least one boundary occurrence, splits everything up to the *last*
// occurrence into part bodies and retains only the remainder.
type multipartFramer struct {
	separator string
	buffer    strings.Builder
}

func newMultipartFramer(contentType string) *multipartFramer {
	return &multipartFramer{separator: "--" + extractBoundary(contentType)}
}

// feed appends chunk to the internal buffer and, if a boundary has been
// seen, returns the batch of part bodies ready to emit. terminated reports
// whether the terminating "--<boundary>--" sentinel has been observed. An
// empty tail right after the last boundary is the ordinary "awaiting the
// next part" state, not termination — only the producer's EOF handling
// (see newMultipartStream's acc.hasNext check) decides whether a stream
// that never reaches "--" ended early or simply hasn't sent more yet.
func (f *multipartFramer) feed(chunk string) (parts []string, terminated bool) {
	f.buffer.WriteString(chunk)
	current := f.buffer.String()

	idx := strings.LastIndex(current, f.separator)
	if idx < 0 {
		return nil, false
	}

	prefix := current[:idx]
	for _, segment := range strings.Split(prefix, f.separator) {
		if strings.TrimSpace(segment) == "" {
			continue
		}
		if body := extractPartBody(segment); body != "" {
			parts = append(parts, body)
		}
	}

	tail := current[idx+len(f.separator):]
	trimmedTail := strings.TrimSpace(tail)
	f.buffer.Reset()
	if trimmedTail == "--" {
		return parts, true
	}
	f.buffer.WriteString(tail)
	return parts, false
}

// extractPartBody strips a MIME part's header block (everything up to and
// including the first "\r\n\r\n") and returns the trimmed remainder, which
// is the JSON payload.
func extractPartBody(segment string) string {
	if i := strings.Index(segment, "\r\n\r\n"); i >= 0 {
		return strings.TrimSpace(segment[i+4:])
	}
	return strings.TrimSpace(segment)
}
