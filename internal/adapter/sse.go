// Package adapter holds machinery shared by the per-vendor protocol
// adapters: SSE stream reading, tool-call id normalization, and the
// per-request streaming accumulator.
package adapter

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DoneSentinel terminates OpenAI-style event streams.
const DoneSentinel = "[DONE]"

// SSEEvent is one server-sent event. Name is empty for vendors that only
// emit data lines.
type SSEEvent struct {
	Name string
	Data []byte
	Err  error
}

// ReadSSE reads newline-delimited server-sent events from body and delivers
// them on the returned channel. The channel is closed when the stream ends,
// the body errors, or the [DONE] sentinel arrives. The reader owns body and
// closes it.
func ReadSSE(body io.ReadCloser) <-chan SSEEvent {
	out := make(chan SSEEvent)
	go func() {
		defer close(out)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		// Vendor chunks can be large; grow the line buffer well past the
		// bufio default.
		buf := make([]byte, 0, 64*1024)
		scanner.Buffer(buf, 1024*1024)

		var eventName string
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				eventName = ""
				continue
			}
			if strings.HasPrefix(line, "event: ") {
				eventName = strings.TrimPrefix(line, "event: ")
				continue
			}
			if strings.HasPrefix(line, "data: ") {
				data := strings.TrimPrefix(line, "data: ")
				if data == DoneSentinel {
					return
				}
				out <- SSEEvent{Name: eventName, Data: []byte(data)}
			}
		}
		if err := scanner.Err(); err != nil {
			out <- SSEEvent{Err: fmt.Errorf("stream read error: %w", err)}
		}
	}()
	return out
}
