package assistant

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-contrib/sse"
	"go.uber.org/zap"
)

const doneMarker = "[DONE]"

var errStreamDone = errors.New("stream done")

// ReadEvents parses a server-sent event stream and calls fn with the data of
// each event. Multi-line data is joined with "\n", comment lines and other
// fields are ignored, and a "[DONE]" payload ends the stream.
func ReadEvents(r io.Reader, fn func(data string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		if strings.TrimSpace(payload) == doneMarker {
			return errStreamDone
		}
		return fn(payload)
	}

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return ignoreDone(err)
			}
		case strings.HasPrefix(line, ":"):
		case line == "data":
			data = append(data, "")
		case strings.HasPrefix(line, "data:"):
			value := strings.TrimPrefix(line, "data:")
			data = append(data, strings.TrimPrefix(value, " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ignoreDone(dispatch())
}

func ignoreDone(err error) error {
	if errors.Is(err, errStreamDone) {
		return nil
	}
	return err
}

type deltaEvent struct {
	Content string `json:"content"`
}

type errorEvent struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// Relay streams the provider reply to w as "delta" events followed by "done".
// Until the first delta is written the error is returned to the caller so it
// can still answer with a status code. Once streaming has started Relay
// returns nil: failures go out as an "error" event and are logged.
func Relay(w http.ResponseWriter, r *http.Request, p Provider, system string, messages []Message) error {
	flusher, _ := w.(http.Flusher)
	started := false

	start := func() {
		if started {
			return
		}
		started = true
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
	}
	write := func(event string, data any) error {
		if err := sse.Encode(w, sse.Event{Event: event, Data: data}); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	err := p.Stream(r.Context(), system, messages, func(delta string) error {
		start()
		return write("delta", deltaEvent{Content: delta})
	})
	if err != nil {
		if !started {
			return err
		}
		if r.Context().Err() != nil {
			zap.L().Debug("Chat client disconnected", zap.String("provider", p.Name()))
			return nil
		}
		zap.L().Warn("Chat stream failed", zap.String("provider", p.Name()), zap.Error(err))
		if err := write("error", errorEvent{Error: "stream interrupted", Status: HTTPStatus(err)}); err != nil {
			zap.L().Debug("Chat error event not delivered", zap.Error(err))
		}
		return nil
	}

	start()
	if err := write("done", map[string]string{"status": "complete"}); err != nil {
		zap.L().Debug("Chat done event not delivered", zap.Error(err))
	}
	return nil
}
