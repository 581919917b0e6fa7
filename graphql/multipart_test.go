package graphql

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractBoundaryQuoted(t *testing.T) {
	t.Parallel()
	require.Equal(t, "graphql", extractBoundary(`multipart/mixed; boundary="graphql"`))
}

func TestExtractBoundaryBare(t *testing.T) {
	t.Parallel()
	require.Equal(t, "graphql", extractBoundary(`multipart/mixed; boundary=graphql`))
}

func TestExtractBoundaryFallback(t *testing.T) {
	t.Parallel()
	require.Equal(t, "-", extractBoundary(`multipart/mixed`))
}

func part(body string) string {
	return "\r\nContent-Type: application/json\r\n\r\n" + body + "\r\n"
}

// s5Chunks returns the S5 multipart body as two wire chunks, split so each
// part's own delimiting boundary arrives in the same chunk as its body:
// the boundary between part 1 and part 2 plays a dual role (it closes
// part 1 and opens part 2), so it belongs at the end of chunk 1 — putting
// it at the start of chunk 2 instead would leave part 1 unflushed until
// chunk 2 is fed, merging both parts into a single batch.
func s5Chunks() (string, string) {
	chunk1 := "--graphql" + part(`{"data":{"shop":{"id":"gid://shopify/Shop/1"}},"extensions":{"context":{"country":"JP","language":"EN"}},"hasNext":true}`) + "--graphql"
	chunk2 := part(`{"path":["shop"],"data":{"name":"Shop 1","description":"Test shop description"},"hasNext":false}`) + "--graphql--"
	return chunk1, chunk2
}

// S5 — multipart incremental stream, complete in two chunks.
func buildS5Body() string {
	chunk1, chunk2 := s5Chunks()
	return chunk1 + chunk2
}

func TestMultipartFramerTwoChunks(t *testing.T) {
	t.Parallel()
	body := buildS5Body()
	mid := strings.Index(body, part("")[:10]) // split somewhere inside, doesn't need to be exact
	if mid <= 0 {
		mid = len(body) / 2
	}

	framer := newMultipartFramer(`multipart/mixed; boundary=graphql`)
	var allParts []string

	parts, terminated := framer.feed(body[:mid])
	allParts = append(allParts, parts...)
	require.False(t, terminated)

	parts, terminated = framer.feed(body[mid:])
	allParts = append(allParts, parts...)
	require.True(t, terminated)

	require.Len(t, allParts, 2)
	require.Contains(t, allParts[0], `"hasNext":true`)
	require.Contains(t, allParts[1], `"hasNext":false`)
}

// S6 — multipart with split framing: the same logical stream delivered as
// nine byte-chunks that split keys, values, and the boundary itself.
func TestMultipartFramerNineChunks(t *testing.T) {
	t.Parallel()
	body := buildS5Body()
	n := 9
	chunkSize := (len(body) + n - 1) / n

	framer := newMultipartFramer(`multipart/mixed; boundary=graphql`)
	var allParts []string
	var terminated bool
	for i := 0; i < len(body); i += chunkSize {
		end := i + chunkSize
		if end > len(body) {
			end = len(body)
		}
		parts, term := framer.feed(body[i:end])
		allParts = append(allParts, parts...)
		if term {
			terminated = true
		}
	}

	require.True(t, terminated)
	require.Len(t, allParts, 2)
	require.Contains(t, allParts[0], `"id":"gid://shopify/Shop/1"`)
	require.Contains(t, allParts[1], `"name":"Shop 1"`)
}

func newMultipartServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", `multipart/mixed; boundary="graphql"`)
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, body)
	}))
}

// chunkedBody is a deterministic io.ReadCloser that hands back each string
// passed to newChunkedBody on its own Read call. Driving the stream
// pipeline with it (instead of a real *http.Client round trip) lets a test
// assert on exact chunk boundaries without depending on how the HTTP
// transport happens to fragment — or not fragment — the wire bytes.
type chunkedBody struct {
	chunks [][]byte
	idx    int
}

func newChunkedBody(chunks ...string) *chunkedBody {
	b := &chunkedBody{}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	if b.idx >= len(b.chunks) {
		return 0, io.EOF
	}
	n := copy(p, b.chunks[b.idx])
	b.idx++
	return n, nil
}

func (b *chunkedBody) Close() error { return nil }

func drainStream(t *testing.T, stream *ResponseStream) []ClientStreamResponse {
	t.Helper()
	defer stream.Close()
	var out []ClientStreamResponse
	for stream.Next(context.Background()) {
		out = append(out, stream.Current())
	}
	return out
}

// TestRequestStreamTwoChunks drives the multipart pipeline with a body
// delivered as exactly two Reads, mirroring the wire shape of S5. It feeds
// resp.Body directly rather than going through a real *http.Client so the
// two-chunk split is exact, not an artifact of however the HTTP transport
// happens to fragment a small response.
func TestRequestStreamTwoChunks(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, "http://example.invalid", 0)

	chunk1, chunk2 := s5Chunks()
	resp := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{`multipart/mixed; boundary="graphql"`}},
		Body:       newChunkedBody(chunk1, chunk2),
	}
	ctx, span := client.startRequestSpan(context.Background(), "request_stream", "test-correlation")
	stream := client.newStreamFromResponse(ctx, span, resp)

	snapshots := drainStream(t, stream)
	require.Len(t, snapshots, 2)

	require.True(t, snapshots[0].HasNext)
	shop0 := snapshots[0].Data["shop"].(map[string]interface{})
	require.Equal(t, "gid://shopify/Shop/1", shop0["id"])
	require.Equal(t, "JP", snapshots[0].Extensions["context"].(map[string]interface{})["country"])

	require.False(t, snapshots[1].HasNext)
	shop1 := snapshots[1].Data["shop"].(map[string]interface{})
	require.Equal(t, "gid://shopify/Shop/1", shop1["id"])
	require.Equal(t, "Shop 1", shop1["name"])
	require.Equal(t, "Test shop description", shop1["description"])
}

// S7 — premature termination: only the initial part with hasNext:true,
// then EOF.
func TestRequestStreamPrematureTermination(t *testing.T) {
	t.Parallel()
	var b strings.Builder
	b.WriteString("--graphql")
	b.WriteString(part(`{"data":{"shop":{"id":"gid://shopify/Shop/1"}},"hasNext":true}`))
	b.WriteString("--graphql")
	// the part above is delimited by its trailing boundary so it is framed
	// and processed, but the stream stops here: no closing "--graphql--"
	// sentinel ever arrives, so EOF hits while acc.hasNext is still true.

	srv := newMultipartServer(t, b.String())
	defer srv.Close()

	client := newTestClient(t, srv.URL, 0)
	stream, err := client.RequestStream(context.Background(), "query { shop { name ... @defer { description } } }", nil)
	require.NoError(t, err)

	snapshots := drainStream(t, stream)
	require.Len(t, snapshots, 1)
	require.False(t, snapshots[0].HasNext)
	require.NotNil(t, snapshots[0].Errors)
	require.Equal(t, http.StatusOK, snapshots[0].Errors.NetworkStatusCode)
	require.Contains(t, snapshots[0].Errors.Message, "Response stream terminated unexpectedly")
	shop := snapshots[0].Data["shop"].(map[string]interface{})
	require.Equal(t, "gid://shopify/Shop/1", shop["id"])
}
