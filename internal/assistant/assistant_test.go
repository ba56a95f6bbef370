package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-contrib/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func collect(t *testing.T, stream string) []string {
	t.Helper()
	var got []string
	err := ReadEvents(strings.NewReader(stream), func(data string) error {
		got = append(got, data)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestReadEvents(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		want   []string
	}{
		{
			name:   "single events",
			stream: "data: one\n\ndata: two\n\n",
			want:   []string{"one", "two"},
		},
		{
			name:   "multi-line data joined",
			stream: "data: first\ndata: second\n\n",
			want:   []string{"first\nsecond"},
		},
		{
			name:   "comments and other fields ignored",
			stream: ": keep-alive\nevent: message\nid: 7\ndata: hello\n\n",
			want:   []string{"hello"},
		},
		{
			name:   "done terminates",
			stream: "data: a\n\ndata: [DONE]\n\ndata: never\n\n",
			want:   []string{"a"},
		},
		{
			name:   "bare data field is empty",
			stream: "data\ndata: after\n\n",
			want:   []string{"\nafter"},
		},
		{
			name:   "crlf line endings",
			stream: "data: a\r\n\r\n",
			want:   []string{"a"},
		},
		{
			name:   "trailing event without blank line",
			stream: "data: last",
			want:   []string{"last"},
		},
		{
			name:   "no space after colon",
			stream: "data:{\"x\":1}\n\n",
			want:   []string{`{"x":1}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, collect(t, tt.stream))
		})
	}
}

func TestReadEventsCallbackError(t *testing.T) {
	boom := errors.New("boom")
	err := ReadEvents(strings.NewReader("data: a\n\ndata: b\n\n"), func(string) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestGatewayProviderStream(t *testing.T) {
	var received gatewayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &received))

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, ": opening\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"Thank "}}]}`+"\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"you"}}]}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p, err := NewGatewayProvider(srv.URL, "sk-test", "gratitude-mini")
	require.NoError(t, err)

	text, err := Generate(context.Background(), p, "be kind", []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "Thank you", text)

	assert.True(t, received.Stream)
	assert.Equal(t, "gratitude-mini", received.Model)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
}

func TestGatewayProviderStatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusPaymentRequired, http.StatusInternalServerError} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream says no", status)
		}))

		p, err := NewGatewayProvider(srv.URL, "", "m")
		require.NoError(t, err)
		err = p.Stream(context.Background(), "", []Message{{Role: RoleUser, Content: "hi"}}, func(string) error { return nil })
		srv.Close()

		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, status, statusErr.Status)
		if status == http.StatusInternalServerError {
			assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))
		} else {
			assert.Equal(t, status, HTTPStatus(err))
		}
	}
}

func TestGatewayProviderStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `data: {"error":{"message":"model overloaded"}}`+"\n\n")
	}))
	defer srv.Close()

	p, err := NewGatewayProvider(srv.URL, "", "m")
	require.NoError(t, err)
	_, err = Generate(context.Background(), p, "", []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorContains(t, err, "model overloaded")
}

type fakeStreamer struct {
	chunks []string
	err    error
	model  string
	config *genai.GenerateContentConfig
}

func (f *fakeStreamer) GenerateContentStream(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.model = model
	f.config = config
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, c := range f.chunks {
			resp := &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(c, genai.RoleModel)}},
			}
			if !yield(resp, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func TestGenAIProviderStream(t *testing.T) {
	streamer := &fakeStreamer{chunks: []string{"May your ", "day overflow."}}
	p := &GenAIProvider{models: streamer, model: "gemini-test"}

	text, err := GenerateBlessing(context.Background(), p, "Ada", "Grace")
	require.NoError(t, err)
	assert.Equal(t, "May your day overflow.", text)
	assert.Equal(t, "gemini-test", streamer.model)
	require.NotNil(t, streamer.config)
	assert.NotNil(t, streamer.config.SystemInstruction)
}

func TestGenAIProviderAPIError(t *testing.T) {
	streamer := &fakeStreamer{err: genai.APIError{Code: 429, Message: "quota"}}
	p := &GenAIProvider{models: streamer, model: "gemini-test"}

	_, err := Generate(context.Background(), p, "", []Message{{Role: RoleUser, Content: "hi"}})
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(err))
}

type scriptedProvider struct {
	deltas []string
	err    error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Stream(_ context.Context, _ string, _ []Message, onDelta func(string) error) error {
	for _, d := range p.deltas {
		if err := onDelta(d); err != nil {
			return err
		}
	}
	return p.err
}

func decodeEvents(t *testing.T, body string) []sse.Event {
	t.Helper()
	events, err := sse.Decode(strings.NewReader(body))
	require.NoError(t, err)
	return events
}

func TestRelayStreamsDeltasAndDone(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assistant/chat", nil)

	err := Relay(rec, req, &scriptedProvider{deltas: []string{"Hello", " friend"}}, "", nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, rec.Flushed)

	events := decodeEvents(t, rec.Body.String())
	require.Len(t, events, 3)
	assert.Equal(t, "delta", events[0].Event)
	assert.JSONEq(t, `{"content":"Hello"}`, events[0].Data.(string))
	assert.Equal(t, "done", events[2].Event)
}

func TestRelayErrorBeforeFirstDelta(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assistant/chat", nil)

	upstream := &StatusError{Status: http.StatusTooManyRequests, Message: "slow down"}
	err := Relay(rec, req, &scriptedProvider{err: upstream}, "", nil)
	require.ErrorIs(t, err, upstream)
	assert.Zero(t, rec.Body.Len(), "nothing should be written before the caller picks a status")
}

type brokenPipe struct {
	*httptest.ResponseRecorder
}

func (brokenPipe) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestRelayWriteFailureAfterStart(t *testing.T) {
	w := brokenPipe{httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodPost, "/assistant/chat", nil)

	err := Relay(w, req, &scriptedProvider{deltas: []string{"Hi"}}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRelayErrorMidStream(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assistant/chat", nil)

	err := Relay(rec, req, &scriptedProvider{deltas: []string{"Hi"}, err: errors.New("connection reset")}, "", nil)
	require.NoError(t, err)

	events := decodeEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "error", events[1].Event)
	assert.Contains(t, events[1].Data.(string), `"status":502`)
}
