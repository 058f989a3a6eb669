package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/anatolykoptev/go_moments/internal/engine"
	"github.com/anatolykoptev/go_moments/internal/ui"
)

// DefaultMaxToolRounds bounds model re-invocations after function results.
const DefaultMaxToolRounds = 3

// Display texts for tool progress cards.
const (
	cardPresenting = "I am presenting videos for %q"
	cardComingSoon = "Video moments coming soon..."
	cardNoVideos   = "I could not search videos for %q right now."
	cardPresent    = "Just before presenting results"
)

// CaptionSource fetches searched videos with captions.
type CaptionSource interface {
	FetchVideosWithCaptions(ctx context.Context, term string) ([]engine.VideoCandidate, error)
}

// Sink receives display fragments as a turn progresses.
type Sink interface {
	Emit(ui.Fragment)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ui.Fragment)

// Emit calls f.
func (f SinkFunc) Emit(fr ui.Fragment) { f(fr) }

// Discard drops every fragment.
var Discard Sink = SinkFunc(func(ui.Fragment) {})

// Assistant streams chat completions and runs the moment-search functions.
type Assistant struct {
	client       *openai.Client
	model        string
	captions     CaptionSource
	maxRounds    int
	systemPrompt string
	temperature  float32
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithMaxToolRounds sets how many completions one turn may run.
func WithMaxToolRounds(n int) Option {
	return func(a *Assistant) {
		if n > 0 {
			a.maxRounds = n
		}
	}
}

// WithSystemPrompt replaces the persona prompt.
func WithSystemPrompt(p string) Option {
	return func(a *Assistant) { a.systemPrompt = p }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(a *Assistant) { a.temperature = t }
}

// New creates an Assistant.
func New(client *openai.Client, model string, captions CaptionSource, opts ...Option) *Assistant {
	a := &Assistant{
		client:       client,
		model:        model,
		captions:     captions,
		maxRounds:    DefaultMaxToolRounds,
		systemPrompt: engine.AssistantSystemPrompt,
	}
	if a.model == "" {
		a.model = openai.GPT3Dot5Turbo
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// NewClient builds the OpenAI client; baseURL may point at any compatible API.
func NewClient(apiKey, baseURL string) *openai.Client {
	c := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		c.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(c)
}

// completion is the accumulated result of one streamed completion.
type completion struct {
	text string
	call *openai.FunctionCall
}

// Submit appends the user's message to state and runs the turn. The returned
// state holds every message recorded so far, also when err != nil.
func (a *Assistant) Submit(ctx context.Context, state AIState, content string, sink Sink) (AIState, error) {
	if sink == nil {
		sink = Discard
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return state, errors.New("assistant: empty message")
	}
	engine.IncrChatTurn()
	state.Messages = append([]Message(nil), state.Messages...)
	state.append(Message{Role: RoleUser, Content: content})
	sink.Emit(ui.Fragment{ID: newID(), Kind: ui.KindSpinner})

	for round := 1; round <= a.maxRounds; round++ {
		res, err := a.complete(ctx, state, sink)
		if err != nil {
			return state, err
		}
		if res.text != "" {
			state.append(Message{Role: RoleAssistant, Content: res.text})
		}
		if res.call == nil {
			return state, nil
		}

		engine.IncrChatToolCall()
		slog.Info("assistant: function call",
			slog.String("chat", state.ChatID), slog.String("name", res.call.Name), slog.Int("round", round))

		switch res.call.Name {
		case FnProvideCaptions:
			if err := a.provideCaptions(ctx, &state, res.call.Arguments, sink); err != nil {
				return state, err
			}
		case FnShowMoments:
			return state, a.showMoments(&state, res.call.Arguments, sink)
		default:
			return state, fmt.Errorf("assistant: unknown function %q", res.call.Name)
		}
	}
	slog.Warn("assistant: tool round limit reached",
		slog.String("chat", state.ChatID), slog.Int("rounds", a.maxRounds))
	return state, nil
}

func (a *Assistant) provideCaptions(ctx context.Context, state *AIState, args string, sink Sink) error {
	var in engine.CaptionsInput
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return fmt.Errorf("assistant: %s arguments: %w", FnProvideCaptions, err)
	}
	term := engine.NormTerm(in.SearchKey)
	sink.Emit(ui.Fragment{ID: newID(), Kind: ui.KindCard, Text: fmt.Sprintf(cardPresenting, term), Done: true})

	var videos []engine.VideoCandidate
	if term != "" {
		var err error
		videos, err = a.captions.FetchVideosWithCaptions(ctx, term)
		if err != nil {
			slog.Warn("assistant: caption fetch failed", slog.String("term", term), slog.Any("error", err))
		}
	}
	payload, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("assistant: encode videos: %w", err)
	}
	state.append(Message{Role: RoleFunction, Name: FnProvideCaptions, Content: string(payload)})

	if videos == nil {
		sink.Emit(ui.Fragment{ID: newID(), Kind: ui.KindCard, Text: fmt.Sprintf(cardNoVideos, term), Done: true})
		return nil
	}
	sink.Emit(ui.Fragment{ID: newID(), Kind: ui.KindCard, Text: cardComingSoon, Done: true})
	return nil
}

func (a *Assistant) showMoments(state *AIState, args string, sink Sink) error {
	var in engine.MomentsInput
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return fmt.Errorf("assistant: %s arguments: %w", FnShowMoments, err)
	}
	sink.Emit(ui.Fragment{ID: newID(), Kind: ui.KindCard, Text: cardPresent, Done: true})

	videos := engine.ToVideoData(in.VideoInformation)
	payload, err := json.Marshal(videos)
	if err != nil {
		return fmt.Errorf("assistant: encode moments: %w", err)
	}
	state.append(Message{Role: RoleFunction, Name: FnBestMatches, Content: string(payload)})
	sink.Emit(ui.Fragment{ID: newID(), Kind: ui.KindVideos, Videos: videos, Done: true})
	return nil
}

// complete streams one completion. Text deltas are emitted cumulatively under
// one fragment ID; a function call is assembled from its argument deltas.
func (a *Assistant) complete(ctx context.Context, state AIState, sink Sink) (completion, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    a.requestMessages(state),
		Functions:   functionDefinitions(),
		Temperature: a.temperature,
		Stream:      true,
	}
	stream, err := a.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return completion{}, fmt.Errorf("assistant: start completion: %w", err)
	}
	defer stream.Close()

	var (
		text   strings.Builder
		call   *openai.FunctionCall
		args   strings.Builder
		textID string
	)
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return completion{}, fmt.Errorf("assistant: stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			if textID == "" {
				textID = newID()
			}
			text.WriteString(delta.Content)
			sink.Emit(ui.Fragment{ID: textID, Kind: ui.KindText, Text: text.String()})
		}
		if fc := delta.FunctionCall; fc != nil {
			if call == nil {
				call = &openai.FunctionCall{}
			}
			if fc.Name != "" {
				call.Name = fc.Name
			}
			args.WriteString(fc.Arguments)
		}
	}

	res := completion{text: strings.TrimSpace(text.String())}
	if textID != "" {
		sink.Emit(ui.Fragment{ID: textID, Kind: ui.KindText, Text: res.text, Options: ParseOptions(res.text), Done: true})
	}
	if call != nil {
		call.Arguments = args.String()
		res.call = call
	}
	return res, nil
}

func (a *Assistant) requestMessages(state AIState) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(state.Messages)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: a.systemPrompt})
	for _, m := range state.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		})
	}
	return msgs
}
