package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/teslashibe/sakshi/pkg/history"
	"github.com/teslashibe/sakshi/pkg/inference"
	"github.com/teslashibe/sakshi/pkg/research"
	"github.com/teslashibe/sakshi/pkg/router"
	"github.com/teslashibe/sakshi/pkg/stt"
	"github.com/teslashibe/sakshi/pkg/tts"
)

type fakeResearcher struct {
	answer  string
	err     error
	queries []string
}

func (f *fakeResearcher) Answer(ctx context.Context, query string) (string, error) {
	f.queries = append(f.queries, query)
	return f.answer, f.err
}

func talk(t *testing.T, p *Pipeline, hist string) *TalkResponse {
	t.Helper()
	resp, err := p.Talk(context.Background(), &TalkRequest{
		Audio:    strings.NewReader("RIFF....WAVE"),
		Filename: "clip.webm",
		History:  hist,
	})
	if err != nil {
		t.Fatalf("Talk failed: %v", err)
	}
	return resp
}

func historyJSON(t *testing.T, turns []history.Turn) string {
	t.Helper()
	data, err := json.Marshal(turns)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestTalkEmptyTranscript(t *testing.T) {
	speech := stt.WithText("   ")
	voice := tts.NewMock()
	model := inference.NewMock()

	p, err := NewPipeline(speech, voice, NewChat(model))
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	input := `[{"role":"user","content":"hi"},{"role":"system","content":"x"},{"role":"assistant","content":"hello"}]`
	resp := talk(t, p, input)

	if resp.Transcript != "" || resp.AudioB64 != "" {
		t.Errorf("expected empty transcript and audio, got %+v", resp)
	}
	if resp.Reply != FriendlyRetryMessage {
		t.Errorf("unexpected reply %q", resp.Reply)
	}
	want := []history.Turn{history.User("hi"), history.Assistant("hello")}
	if historyJSON(t, resp.History) != historyJSON(t, want) {
		t.Errorf("expected validated input history, got %+v", resp.History)
	}
	if model.CallCount("Chat") != 0 || voice.CallCount("Synthesize") != 0 {
		t.Error("no model or synthesis call expected for an empty transcript")
	}
}

func TestTalkChatPath(t *testing.T) {
	var prior []history.Turn
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			prior = append(prior, history.User(fmt.Sprintf("q%d", i)))
		} else {
			prior = append(prior, history.Assistant(fmt.Sprintf("a%d", i)))
		}
	}

	model := inference.NewMock()
	model.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		return &inference.ChatResponse{Content: []inference.ContentBlock{
			inference.TextBlock(""),
			inference.TextBlock("It is sunny."),
			inference.TextBlock("ignored"),
		}}, nil
	}
	voice := tts.WithAudio("UklGRg==")
	researcher := &fakeResearcher{answer: "unused"}

	p, err := NewPipeline(stt.WithText("what's the weather"), voice, NewChat(model, WithChatMaxTokens(512)),
		WithRouter(router.New(true)),
		WithResearcher(researcher),
	)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	resp := talk(t, p, historyJSON(t, prior))

	if resp.Reply != "It is sunny." {
		t.Errorf("expected first non-empty text block, got %q", resp.Reply)
	}
	if resp.AudioB64 != "UklGRg==" {
		t.Errorf("unexpected audio %q", resp.AudioB64)
	}
	if resp.Path != router.PathChat || len(researcher.queries) != 0 {
		t.Errorf("expected chat path, got %s", resp.Path)
	}

	req := model.LastCall().Request
	if len(req.Messages) != history.Window {
		t.Fatalf("expected %d messages, got %d", history.Window, len(req.Messages))
	}
	if req.Messages[0].Content != "a1" || req.Messages[9].Content != "what's the weather" || req.Messages[9].Role != inference.RoleUser {
		t.Errorf("unexpected message window %+v", req.Messages)
	}
	if req.System != ChatSystemPrompt || req.MaxTokens != 512 {
		t.Errorf("unexpected request system/max tokens")
	}
	if len(req.Tools) != 0 {
		t.Error("direct chat must not offer tools")
	}

	want := history.Last(history.Append(prior, history.User("what's the weather"), history.Assistant("It is sunny.")), history.Window)
	if historyJSON(t, resp.History) != historyJSON(t, want) {
		t.Errorf("unexpected updated history %+v", resp.History)
	}
	if voice.LastCall().Text != "It is sunny." {
		t.Errorf("synthesized wrong text %q", voice.LastCall().Text)
	}
}

func TestTalkResearchPath(t *testing.T) {
	model := inference.Scripted(
		inference.ToolUseResponse("call_1", research.ResponseTool, map[string]any{
			"topic":      "cats",
			"summary":    "Two cat videos.",
			"sources":    []string{"http://a", "http://b"},
			"tools_used": []string{},
		}),
	)
	agent, err := research.NewAgent(model, nil)
	if err != nil {
		t.Fatal(err)
	}
	chatModel := inference.NewMock()

	p, err := NewPipeline(stt.WithText("search for cats on youtube"), tts.NewMock(), NewChat(chatModel),
		WithRouter(router.New(true)),
		WithResearcher(agent),
	)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}

	resp := talk(t, p, "")
	if resp.Reply != "Two cat videos.\n\nSources:\n- http://a\n- http://b" {
		t.Errorf("unexpected reply %q", resp.Reply)
	}
	if resp.Path != router.PathResearch || resp.Metrics.Keyword != "youtube" {
		t.Errorf("unexpected path %s keyword %s", resp.Path, resp.Metrics.Keyword)
	}
	if chatModel.CallCount("Chat") != 0 {
		t.Error("chat model must not be called on the research path")
	}
	if len(resp.History) != 2 || resp.History[1].Content != resp.Reply {
		t.Errorf("unexpected history %+v", resp.History)
	}
	if resp.AudioB64 == "" {
		t.Error("expected audio")
	}
}

func TestTalkResearchUnavailable(t *testing.T) {
	model := inference.NewMock()
	p, _ := NewPipeline(stt.WithText("search wikipedia for cats"), tts.NewMock(), NewChat(model))

	resp := talk(t, p, "")
	if resp.Path != router.PathChat || model.CallCount("Chat") != 1 {
		t.Errorf("expected chat path when research is unavailable, got %s", resp.Path)
	}
}

func TestTalkErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name     string
		speech   stt.Provider
		voice    tts.Provider
		model    inference.Provider
		research Researcher
	}{
		{"stt", stt.WithError(boom), tts.NewMock(), inference.NewMock(), nil},
		{"chat", stt.WithText("hello"), tts.NewMock(), inference.WithError(boom), nil},
		{"tts", stt.WithText("hello"), tts.WithError(boom), inference.NewMock(), nil},
		{"research", stt.WithText("google it"), tts.NewMock(), inference.NewMock(), &fakeResearcher{err: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{}
			if tt.research != nil {
				opts = append(opts, WithRouter(router.New(true)), WithResearcher(tt.research))
			}
			p, err := NewPipeline(tt.speech, tt.voice, NewChat(tt.model), opts...)
			if err != nil {
				t.Fatal(err)
			}
			_, err = p.Talk(context.Background(), &TalkRequest{Audio: strings.NewReader("x")})
			if !errors.Is(err, boom) {
				t.Errorf("expected boom, got %v", err)
			}
		})
	}
}

func TestTalkNoAudioPayload(t *testing.T) {
	p, _ := NewPipeline(stt.WithText("hello"), tts.WithAudio(""), NewChat(inference.NewMock()))
	resp := talk(t, p, "")
	if resp.AudioB64 != "" || resp.Reply == "" {
		t.Errorf("expected reply without audio, got %+v", resp)
	}
}

func TestNewPipeline(t *testing.T) {
	chat := NewChat(inference.NewMock())
	if _, err := NewPipeline(nil, tts.NewMock(), chat); err == nil {
		t.Error("expected error without stt")
	}
	if _, err := NewPipeline(stt.NewMock(), nil, chat); err == nil {
		t.Error("expected error without tts")
	}
	if _, err := NewPipeline(stt.NewMock(), tts.NewMock(), nil); err == nil {
		t.Error("expected error without chat")
	}
	if _, err := NewPipeline(stt.NewMock(), tts.NewMock(), chat, WithRouter(router.New(true))); err == nil {
		t.Error("expected error for research router without researcher")
	}
}

func TestChatFallsBackToResponseRendering(t *testing.T) {
	model := inference.NewMock()
	model.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		return &inference.ChatResponse{ID: "msg_x", StopReason: inference.StopMaxTokens}, nil
	}

	reply, err := NewChat(model).Reply(context.Background(), nil, "hi")
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if !strings.Contains(reply, `"id":"msg_x"`) {
		t.Errorf("expected rendered response, got %q", reply)
	}
}

func TestMessagesWindow(t *testing.T) {
	turns := make([]history.Turn, 15)
	for i := range turns {
		turns[i] = history.User(fmt.Sprint(i))
	}
	msgs := Messages(turns, "now")
	if len(msgs) != history.Window || msgs[0].Content != "6" || msgs[9].Content != "now" {
		t.Errorf("unexpected window %+v", msgs)
	}
	if len(turns) != 15 {
		t.Error("input turns modified")
	}
}

func TestMetricsCollector(t *testing.T) {
	c := NewMetricsCollector()
	p, _ := NewPipeline(stt.WithText("hello"), tts.NewMock(), NewChat(inference.NewMock()), WithMetrics(c))

	talk(t, p, "")
	talk(t, p, "")

	s := c.Stats()
	if s.Turns != 2 || s.ByPath["chat"] != 2 || s.WindowedOver != 2 {
		t.Errorf("unexpected stats %+v", s)
	}
	if p.Metrics() != c {
		t.Error("expected collector to be exposed")
	}
}

func TestMetricsCountEmptyTurns(t *testing.T) {
	c := NewMetricsCollector()
	p, _ := NewPipeline(stt.WithText(""), tts.NewMock(), NewChat(inference.NewMock()), WithMetrics(c))

	resp := talk(t, p, "")
	if resp.Reply != FriendlyRetryMessage {
		t.Fatalf("unexpected reply %q", resp.Reply)
	}

	s := c.Stats()
	if s.Turns != 1 || s.ByPath["empty"] != 1 || s.WindowedOver != 1 {
		t.Errorf("expected the empty turn to be counted, got %+v", s)
	}
	if s.AvgTTSMs != 0 || s.AvgReplyMs != 0 {
		t.Errorf("no reply or synthesis stage expected, got %+v", s)
	}
}

func TestFormatLatency(t *testing.T) {
	m := Metrics{Path: router.PathChat}
	if got := m.FormatLatency(); !strings.Contains(got, "---ms chat") {
		t.Errorf("unexpected latency line %q", got)
	}
}
