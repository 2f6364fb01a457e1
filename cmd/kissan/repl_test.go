package main

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/kissan-ai/kissan/pkg/bus"
	"github.com/kissan-ai/kissan/pkg/chat"
	"github.com/kissan-ai/kissan/pkg/conversation"
	"github.com/kissan-ai/kissan/pkg/providers"
	"github.com/kissan-ai/kissan/pkg/state"
)

type replFixture struct {
	t      *testing.T
	ctx    context.Context
	repl   *repl
	out    *bytes.Buffer
	prompt string
}

func newReplFixture(t *testing.T) *replFixture {
	t.Helper()
	return newReplFixtureWith(t, &providers.MockAdvisor{})
}

func newReplFixtureWith(t *testing.T, advisor providers.Advisor) *replFixture {
	t.Helper()
	loop := bus.NewLoop(32)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(cancel)

	session := chat.NewSession(loop, advisor, nil, chat.Options{Language: providers.LanguageEnglish})
	f := &replFixture{t: t, ctx: ctx, out: new(bytes.Buffer)}
	f.repl = newREPL(session, state.NewPreferences(t.TempDir()), f.out, func(p string) { f.prompt = p })
	if err := loop.Call(ctx, f.repl.wire); err != nil {
		t.Fatal(err)
	}
	return f
}

var ansiCode = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// output reads what the REPL printed, synchronized with the loop, with
// colour codes removed.
func (f *replFixture) output() string {
	var s string
	f.repl.session.Loop().Call(f.ctx, func() { s = f.out.String() })
	return ansiCode.ReplaceAllString(s, "")
}

func (f *replFixture) waitSettled() {
	f.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var pending int
		f.repl.session.Loop().Call(f.ctx, func() { pending = f.repl.session.Store().PendingCount() })
		if pending == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	f.t.Fatal("answer did not arrive")
}

func TestREPL_AskRendersAdvisory(t *testing.T) {
	f := newReplFixture(t)
	if !f.repl.handle(f.ctx, "my wheat leaves are yellow") {
		t.Fatal("plain line must not end the REPL")
	}
	f.waitSettled()

	out := f.output()
	if !strings.Contains(out, "thinking...") {
		t.Errorf("expected pending placeholder, got: %s", out)
	}
	if !strings.Contains(out, "Nitrogen Deficiency") || !strings.Contains(out, "1. Apply urea") {
		t.Errorf("expected rendered advisory, got: %s", out)
	}
	if strings.Contains(out, "You ›") {
		t.Errorf("typed line should not be echoed, got: %s", out)
	}

	f.repl.handle(f.ctx, "/history")
	if out := f.output(); !strings.Contains(out, "You › my wheat leaves are yellow") {
		t.Errorf("expected user message in history, got: %s", out)
	}
}

func TestREPL_TypedLineWhileBusyKeepsDraft(t *testing.T) {
	f := newReplFixtureWith(t, &providers.MockAdvisor{Delay: time.Minute})
	f.repl.handle(f.ctx, "first question")

	s := f.repl.session
	s.Loop().Call(f.ctx, func() { s.Buffer().AppendTranscript("dictated words") })
	f.repl.handle(f.ctx, "second question")

	if out := f.output(); !strings.Contains(out, "Still waiting for the last answer") {
		t.Errorf("expected busy notice, got: %s", out)
	}
	var draft string
	var n int
	s.Loop().Call(f.ctx, func() { draft, n = s.Buffer().Text(), s.Store().Len() })
	if draft != "dictated words" {
		t.Errorf("busy line must not replace the draft, got %q", draft)
	}
	if n != 2 {
		t.Errorf("expected only the in-flight pair, got %d messages", n)
	}
}

func TestREPL_EmptyLineWithEmptyDraft(t *testing.T) {
	f := newReplFixture(t)
	f.repl.handle(f.ctx, "   ")

	var n int
	f.repl.session.Loop().Call(f.ctx, func() { n = f.repl.session.Store().Len() })
	if n != 0 {
		t.Errorf("empty line must not add messages, got %d", n)
	}
}

func TestREPL_Language(t *testing.T) {
	f := newReplFixture(t)
	if !strings.HasPrefix(f.prompt, "[en]") {
		t.Errorf("unexpected initial prompt %q", f.prompt)
	}

	f.repl.handle(f.ctx, "/lang sindhi")
	if out := f.output(); !strings.Contains(out, "Advice language: Sindhi") {
		t.Errorf("expected language change, got: %s", out)
	}
	if !strings.HasPrefix(f.prompt, "[sd]") {
		t.Errorf("expected prompt to follow language, got %q", f.prompt)
	}

	f.repl.handle(f.ctx, "/lang klingon")
	if out := f.output(); !strings.Contains(out, `Unknown language "klingon"`) {
		t.Errorf("expected unknown language notice, got: %s", out)
	}
}

func TestREPL_Commands(t *testing.T) {
	f := newReplFixture(t)

	f.repl.handle(f.ctx, "/mic")
	if out := f.output(); !strings.Contains(out, "Dictation is not available") {
		t.Errorf("expected dictation notice, got: %s", out)
	}

	if f.repl.palette.name != "dark" {
		t.Errorf("expected dark palette by default, got %s", f.repl.palette.name)
	}
	f.repl.handle(f.ctx, "/theme")
	if out := f.output(); !strings.Contains(out, "Display mode: light") {
		t.Errorf("expected theme toggle, got: %s", out)
	}
	if f.repl.palette.name != "light" {
		t.Errorf("expected light palette, got %s", f.repl.palette.name)
	}

	f.repl.handle(f.ctx, "/image")
	if out := f.output(); !strings.Contains(out, "Usage: /image <path>") {
		t.Errorf("expected usage, got: %s", out)
	}

	f.repl.handle(f.ctx, "/bogus")
	if out := f.output(); !strings.Contains(out, "Unknown command /bogus") {
		t.Errorf("expected unknown command, got: %s", out)
	}

	if f.repl.handle(f.ctx, "/exit") {
		t.Error("/exit must end the REPL")
	}
}

func TestRenderMessage(t *testing.T) {
	p := lightPalette

	pending := renderMessage(conversation.NewPlaceholder(), p)
	if !strings.Contains(pending, "thinking...") {
		t.Errorf("unexpected pending render %q", pending)
	}

	failed := conversation.Message{Role: conversation.RoleAssistant, Content: conversation.TextContent("Configuration Error")}
	if out := renderMessage(failed, p); !strings.Contains(out, p.failure+"Configuration Error") {
		t.Errorf("expected failure colour, got %q", out)
	}

	typed := renderMessage(conversation.NewUserMessage("my wheat leaves are yellow", ""), p)
	if got := ansiCode.ReplaceAllString(typed, ""); got != "You › my wheat leaves are yellow\n" {
		t.Errorf("unexpected user render %q", got)
	}

	user := conversation.NewUserMessage("", "data:image/png;base64,AAAA")
	if out := renderMessage(user, p); !strings.Contains(out, "[photo attached]") {
		t.Errorf("expected photo marker, got %q", out)
	}

	advice := conversation.Message{
		Role: conversation.RoleAssistant,
		Content: conversation.AdvisoryContent(providers.Advisory{
			Heading: "Market Trend",
			Finding: "Prices are rising.",
			Steps:   []string{"Hold stock"},
		}),
		Citations: []providers.Citation{{Title: "AMIS", URL: "https://amis.pk"}},
	}
	out := renderMessage(advice, p)
	for _, want := range []string{"Market Trend", "Prices are rising.", "1. Hold stock", "AMIS", "https://amis.pk"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "Long term:") {
		t.Error("empty strategy must not be rendered")
	}
}

func TestRenderDraft(t *testing.T) {
	if out := renderDraft("", "", lightPalette); !strings.Contains(out, "(empty)") {
		t.Errorf("unexpected empty draft %q", out)
	}
	out := renderDraft("hello", "/tmp/leaf.jpg", lightPalette)
	if !strings.Contains(out, "hello") || !strings.Contains(out, "/tmp/leaf.jpg") {
		t.Errorf("unexpected draft %q", out)
	}
}
