package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_moments/internal/engine"
	"github.com/anatolykoptev/go_moments/internal/ui"
)

// fakeModel replays one scripted stream per completion request.
type fakeModel struct {
	mu       sync.Mutex
	scripts  [][]openai.ChatCompletionStreamChoiceDelta
	requests []openai.ChatCompletionRequest
	status   int
}

func (m *fakeModel) handler(w http.ResponseWriter, r *http.Request) {
	var req openai.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if m.status != 0 {
		m.mu.Unlock()
		w.WriteHeader(m.status)
		fmt.Fprint(w, `{"error":{"message":"upstream down","type":"server_error"}}`)
		return
	}
	var script []openai.ChatCompletionStreamChoiceDelta
	if len(m.scripts) > 0 {
		script, m.scripts = m.scripts[0], m.scripts[1:]
	}
	m.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	for _, d := range script {
		b, _ := json.Marshal(openai.ChatCompletionStreamResponse{
			ID:      "chatcmpl-test",
			Object:  "chat.completion.chunk",
			Model:   "test-model",
			Choices: []openai.ChatCompletionStreamChoice{{Index: 0, Delta: d}},
		})
		fmt.Fprintf(w, "data: %s\n\n", b)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func (m *fakeModel) requestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

type fakeCaptions struct {
	videos []engine.VideoCandidate
	err    error
	terms  []string
}

func (f *fakeCaptions) FetchVideosWithCaptions(_ context.Context, term string) ([]engine.VideoCandidate, error) {
	f.terms = append(f.terms, term)
	if f.err != nil {
		return nil, f.err
	}
	return f.videos, nil
}

type recorder struct {
	frags []ui.Fragment
}

func (r *recorder) Emit(f ui.Fragment) { r.frags = append(r.frags, f) }

func (r *recorder) kinds() []ui.Kind {
	out := make([]ui.Kind, 0, len(r.frags))
	for _, f := range r.frags {
		out = append(out, f.Kind)
	}
	return out
}

func (r *recorder) last(kind ui.Kind) ui.Fragment {
	for i := len(r.frags) - 1; i >= 0; i-- {
		if r.frags[i].Kind == kind {
			return r.frags[i]
		}
	}
	return ui.Fragment{}
}

func newTestAssistant(t *testing.T, model *fakeModel, src CaptionSource, opts ...Option) *Assistant {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(model.handler))
	t.Cleanup(srv.Close)
	return New(NewClient("test-key", srv.URL+"/v1"), "test-model", src, opts...)
}

func text(s string) openai.ChatCompletionStreamChoiceDelta {
	return openai.ChatCompletionStreamChoiceDelta{Content: s}
}

func call(name, args string) openai.ChatCompletionStreamChoiceDelta {
	return openai.ChatCompletionStreamChoiceDelta{FunctionCall: &openai.FunctionCall{Name: name, Arguments: args}}
}

func TestSubmit_TextReply(t *testing.T) {
	model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{{
		text("I can find many topics about Mike Tyson, like:\n"),
		text("[Best Mike Tyson knockouts]\n"),
		text("[Best Mike Tyson interviews]"),
	}}}
	a := newTestAssistant(t, model, &fakeCaptions{})
	rec := &recorder{}

	state, err := a.Submit(context.Background(), NewState("chat-1"), "Mike Tyson", rec)
	require.NoError(t, err)

	require.Len(t, state.Messages, 2)
	assert.Equal(t, RoleUser, state.Messages[0].Role)
	assert.Equal(t, "Mike Tyson", state.Messages[0].Content)
	assert.Equal(t, RoleAssistant, state.Messages[1].Role)
	assert.NotEmpty(t, state.Messages[1].ID)

	assert.Equal(t, ui.KindSpinner, rec.frags[0].Kind)
	final := rec.last(ui.KindText)
	assert.True(t, final.Done)
	assert.Equal(t, []string{"Best Mike Tyson knockouts", "Best Mike Tyson interviews"}, final.Options)

	require.Equal(t, 1, model.requestCount())
	req := model.requests[0]
	assert.Equal(t, "test-model", req.Model)
	assert.True(t, req.Stream)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, engine.AssistantSystemPrompt, req.Messages[0].Content)
	require.Len(t, req.Functions, 2)
	assert.Equal(t, FnProvideCaptions, req.Functions[0].Name)
	assert.Equal(t, FnShowMoments, req.Functions[1].Name)
}

func TestSubmit_CaptionsThenMoments(t *testing.T) {
	moments := `{"videoInformation":[{"videoId":"aaa","videoTitle":"KO","bestMomentStart":12,"bestMomentEnd":30,"thumbnails":{"default":{"url":"https://i.ytimg.com/vi/aaa/default.jpg"}}}]}`
	model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{
		{call(FnProvideCaptions, `{"searchKey":`), call("", `"best  knockouts"}`)},
		{call(FnShowMoments, moments)},
	}}
	src := &fakeCaptions{videos: []engine.VideoCandidate{{VideoID: "aaa", Captions: "Y2FwdGlvbnM="}}}
	a := newTestAssistant(t, model, src)
	rec := &recorder{}

	state, err := a.Submit(context.Background(), NewState("chat-2"), "best knockouts", rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"best knockouts"}, src.terms)
	require.Len(t, state.Messages, 3)
	assert.Equal(t, RoleFunction, state.Messages[1].Role)
	assert.Equal(t, FnProvideCaptions, state.Messages[1].Name)
	assert.JSONEq(t, `[{"videoId":"aaa","captions":"Y2FwdGlvbnM="}]`, state.Messages[1].Content)
	assert.Equal(t, FnBestMatches, state.Messages[2].Name)
	assert.JSONEq(t, `[{"start":12,"end":30,"title":"KO","thumbnailUrl":"https://i.ytimg.com/vi/aaa/default.jpg","videoId":"aaa"}]`, state.Messages[2].Content)

	// The second completion sees the captions function result.
	require.Equal(t, 2, model.requestCount())
	second := model.requests[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, openai.ChatMessageRoleFunction, second[2].Role)
	assert.Equal(t, FnProvideCaptions, second[2].Name)

	videos := rec.last(ui.KindVideos)
	require.Len(t, videos.Videos, 1)
	assert.Equal(t, 12.0, videos.Videos[0].Start)
	assert.Equal(t, []ui.Kind{ui.KindSpinner, ui.KindCard, ui.KindCard, ui.KindCard, ui.KindVideos}, rec.kinds())
}

func TestSubmit_SearchFailureRecordsNull(t *testing.T) {
	model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{
		{call(FnProvideCaptions, `{"searchKey":"tyson"}`)},
		{text("Sorry, I could not search right now.")},
	}}
	a := newTestAssistant(t, model, &fakeCaptions{err: errors.New("quota exceeded")})

	state, err := a.Submit(context.Background(), NewState("chat-3"), "tyson", nil)
	require.NoError(t, err)
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "null", state.Messages[1].Content)
	assert.Equal(t, RoleAssistant, state.Messages[2].Role)
}

func TestSubmit_EmptyResultRecordsEmptyArray(t *testing.T) {
	model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{
		{call(FnProvideCaptions, `{"searchKey":"obscure"}`)},
		{text("Nothing found.")},
	}}
	a := newTestAssistant(t, model, &fakeCaptions{videos: []engine.VideoCandidate{}})

	state, err := a.Submit(context.Background(), NewState("chat-4"), "obscure", nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", state.Messages[1].Content)
}

func TestSubmit_ToolRoundLimit(t *testing.T) {
	model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{
		{call(FnProvideCaptions, `{"searchKey":"tyson"}`)},
		{text("never requested")},
	}}
	a := newTestAssistant(t, model, &fakeCaptions{videos: []engine.VideoCandidate{}}, WithMaxToolRounds(1))

	state, err := a.Submit(context.Background(), NewState("chat-5"), "tyson", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, model.requestCount())
	require.Len(t, state.Messages, 2)
	assert.Equal(t, RoleFunction, state.Messages[1].Role)
}

func TestSubmit_Errors(t *testing.T) {
	t.Run("unknown function", func(t *testing.T) {
		model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{{call("listStocks", `{}`)}}}
		a := newTestAssistant(t, model, &fakeCaptions{})
		_, err := a.Submit(context.Background(), NewState(""), "stocks", nil)
		assert.ErrorContains(t, err, "listStocks")
	})

	t.Run("bad arguments", func(t *testing.T) {
		model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{{call(FnShowMoments, `{"videoInformation":`)}}}
		a := newTestAssistant(t, model, &fakeCaptions{})
		_, err := a.Submit(context.Background(), NewState(""), "x", nil)
		assert.Error(t, err)
	})

	t.Run("upstream failure keeps user message", func(t *testing.T) {
		model := &fakeModel{status: http.StatusInternalServerError}
		a := newTestAssistant(t, model, &fakeCaptions{})
		state, err := a.Submit(context.Background(), NewState("chat-6"), "hello", nil)
		require.Error(t, err)
		require.Len(t, state.Messages, 1)
		assert.Equal(t, "hello", state.Messages[0].Content)
	})

	t.Run("empty message", func(t *testing.T) {
		model := &fakeModel{}
		a := newTestAssistant(t, model, &fakeCaptions{})
		_, err := a.Submit(context.Background(), NewState(""), "   ", nil)
		require.Error(t, err)
		assert.Equal(t, 0, model.requestCount())
	})
}

func TestSubmit_DoesNotMutateCallerState(t *testing.T) {
	model := &fakeModel{scripts: [][]openai.ChatCompletionStreamChoiceDelta{{text("hi")}}}
	a := newTestAssistant(t, model, &fakeCaptions{})

	orig := NewState("chat-7")
	orig.Messages = make([]Message, 0, 8)
	orig.Messages = append(orig.Messages, Message{ID: "m0", Role: RoleUser, Content: "earlier"})

	next, err := a.Submit(context.Background(), orig, "again", nil)
	require.NoError(t, err)
	assert.Len(t, orig.Messages, 1)
	assert.Len(t, next.Messages, 3)
}
