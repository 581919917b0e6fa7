package graphql

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// ResponseStream yields successive ClientStreamResponse snapshots for a
// @defer-bearing operation. Callers pull with Next/Current, the way a
// database/sql *Rows cursor works, rather than ranging over a native
// iterator, so that early termination (ctx cancellation, a `break`) has an
// explicit release point: Close.
type ResponseStream struct {
	snapshots chan ClientStreamResponse
	body      io.Closer
	closeOnce sync.Once
	current   ClientStreamResponse
}

// Next blocks until the next snapshot is available, ctx is done, or the
// stream has finished. It returns false at end of stream (and on every call
// after that) or on cancellation; callers should still call Close afterward.
func (s *ResponseStream) Next(ctx context.Context) bool {
	select {
	case snap, ok := <-s.snapshots:
		if !ok {
			return false
		}
		s.current = snap
		return true
	case <-ctx.Done():
		return false
	}
}

// Current returns the snapshot most recently returned by Next.
func (s *ResponseStream) Current() ClientStreamResponse {
	return s.current
}

// Close releases the underlying response body. It is safe to call multiple
// times and must be called even when the stream ran to completion, per
// SPEC_FULL.md §5's unconditional-release rule.
func (s *ResponseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.body != nil {
			err = s.body.Close()
		}
	})
	return err
}

// newSingleSnapshotStream builds a ResponseStream that yields exactly one
// snapshot and then ends, used for every non-multipart branch of
// RequestStream.
func newSingleSnapshotStream(snap ClientStreamResponse) *ResponseStream {
	ch := make(chan ClientStreamResponse, 1)
	ch <- snap
	close(ch)
	return &ResponseStream{snapshots: ch}
}

// newStreamFromResponse dispatches resp to the appropriate RequestStream
// branch: not-ok, unexpected content-type, single JSON snapshot, or the
// multipart pipeline.
func (c *Client) newStreamFromResponse(ctx context.Context, span trace.Span, resp *http.Response) *ResponseStream {
	if !isOK(resp) {
		defer span.End()
		defer resp.Body.Close()
		return newSingleSnapshotStream(ClientStreamResponse{
			Errors: &ClientError{
				NetworkStatusCode: resp.StatusCode,
				Message:           formatErrorMessage(http.StatusText(resp.StatusCode)),
				Response:          resp,
			},
		})
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case isMultipartContentType(contentType):
		return c.newMultipartStream(ctx, span, resp)
	case isJSONContentType(contentType):
		defer span.End()
		defer resp.Body.Close()
		single := classifySingleResponse(resp)
		return newSingleSnapshotStream(ClientStreamResponse{
			Data:       single.Data,
			Extensions: single.Extensions,
			Errors:     single.Errors,
			HasNext:    false,
		})
	default:
		defer span.End()
		defer resp.Body.Close()
		return newSingleSnapshotStream(ClientStreamResponse{
			Errors: &ClientError{
				NetworkStatusCode: resp.StatusCode,
				Message:           formatErrorMessage(fmt.Sprintf("Response returned unexpected Content-Type: %s", contentType)),
				Response:          resp,
			},
		})
	}
}

// readChunkSize is the byte-chunk size used to pull text off the multipart
// body; it has no effect on correctness (the framer buffers across
// arbitrary chunk boundaries), only on how eagerly batches are discovered.
const readChunkSize = 4096

// newMultipartStream starts the producer goroutine that reads resp.Body,
// frames it into parts via multipartFramer, folds each batch into an
// accumulator, and sends snapshots to the returned stream.
func (c *Client) newMultipartStream(ctx context.Context, span trace.Span, resp *http.Response) *ResponseStream {
	snapshots := make(chan ClientStreamResponse, 1)
	stream := &ResponseStream{snapshots: snapshots, body: resp.Body}

	go func() {
		defer span.End()
		defer resp.Body.Close()
		defer close(snapshots)

		framer := newMultipartFramer(resp.Header.Get("Content-Type"))
		acc := newAccumulator()
		buf := make([]byte, readChunkSize)
		partIndex := 0

		emitErr := func(status int, msg string, cause error) {
			clientErr := newClientError(msg, cause)
			clientErr.NetworkStatusCode = status
			if ge, ok := cause.(*graphQLBatchError); ok {
				clientErr.GraphQLErrors = ge.graphQLErrors
			}
			snap := acc.snapshot()
			snap.HasNext = false
			snap.Errors = clientErr
			select {
			case snapshots <- snap:
			case <-ctx.Done():
			}
		}

		for {
			if ctx.Err() != nil {
				return
			}

			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				parts, terminated := framer.feed(string(buf[:n]))
				if len(parts) > 0 {
					_, partSpan := c.startPartSpan(ctx, partIndex)
					partIndex++
					snap, err := acc.processBatch(parts)
					partSpan.End()
					if err != nil {
						emitErr(resp.StatusCode, multipartErrMessage(err), err)
						return
					}
					select {
					case snapshots <- snap:
					case <-ctx.Done():
						return
					}
				}
				if terminated {
					return
				}
			}

			if readErr != nil {
				if readErr == io.EOF {
					if acc.hasNext {
						emitErr(resp.StatusCode, "Response stream terminated unexpectedly", nil)
					}
					return
				}
				emitErr(resp.StatusCode, fmt.Sprintf("Error occured while processing stream payload — %s", readErr), readErr)
				return
			}
		}
	}()

	return stream
}

func multipartErrMessage(err error) string {
	return err.Error()
}
