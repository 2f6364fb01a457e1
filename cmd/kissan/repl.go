package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kissan-ai/kissan/pkg/chat"
	"github.com/kissan-ai/kissan/pkg/conversation"
	"github.com/kissan-ai/kissan/pkg/logger"
	"github.com/kissan-ai/kissan/pkg/media"
	"github.com/kissan-ai/kissan/pkg/providers"
	"github.com/kissan-ai/kissan/pkg/state"
)

const helpText = `Type a question and press Enter to ask it.
An empty line sends the current draft (dictation and/or photo).

  /image <path>   attach a crop photo
  /noimage        remove the attached photo
  /mic            start or stop dictation
  /lang [name]    show or change the advice language
  /theme          switch between dark and light
  /draft          show the current draft
  /history        print the conversation
  /help           show this help
  /exit           quit
`

var languageCodes = map[providers.Language]string{
	providers.LanguageUrdu:    "ur",
	providers.LanguagePunjabi: "pa",
	providers.LanguageSindhi:  "sd",
	providers.LanguagePashto:  "ps",
	providers.LanguageEnglish: "en",
}

// repl maps input lines onto session operations and renders session
// events. Everything except handle runs on the session loop.
type repl struct {
	session   *chat.Session
	prefs     *state.Preferences
	out       io.Writer
	palette   palette
	setPrompt func(string)
}

func newREPL(session *chat.Session, prefs *state.Preferences, out io.Writer, setPrompt func(string)) *repl {
	if setPrompt == nil {
		setPrompt = func(string) {}
	}
	return &repl{
		session:   session,
		prefs:     prefs,
		out:       out,
		palette:   paletteFor(prefs.DisplayMode()),
		setPrompt: setPrompt,
	}
}

func (r *repl) wire() {
	s := r.session

	s.Store().OnChange(func(m conversation.Message) {
		// The user's own line is already on screen.
		if m.Role == conversation.RoleUser {
			return
		}
		fmt.Fprint(r.out, renderMessage(m, r.palette))
	})
	s.Pipeline().OnBusy(func(bool) { r.refreshPrompt() })

	c := s.Controller()
	c.OnListening(func(bool) { r.refreshPrompt() })
	c.OnTranscript(func(string) { r.showDraft() })
	c.OnNotice(func(n string) {
		if n != "" {
			fmt.Fprintln(r.out, r.palette.paint(r.palette.failure, "mic: "+n))
		}
	})

	r.refreshPrompt()
}

func (r *repl) prompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", languageCodes[r.session.Language()])
	if r.session.Controller().Listening() {
		b.WriteString(" (listening)")
	}
	if r.session.Pipeline().Busy() {
		b.WriteString(" ...")
	}
	b.WriteString(" > ")
	return b.String()
}

func (r *repl) refreshPrompt() {
	r.setPrompt(r.prompt())
}

func (r *repl) showDraft() {
	b := r.session.Buffer()
	fmt.Fprint(r.out, renderDraft(b.Text(), b.ImagePath(), r.palette))
}

// handle processes one input line on the loop and reports whether the
// REPL should keep reading.
func (r *repl) handle(ctx context.Context, line string) bool {
	keepGoing := true
	err := r.session.Loop().Call(ctx, func() {
		keepGoing = r.dispatch(ctx, line)
	})
	if err != nil {
		return false
	}
	return keepGoing
}

func (r *repl) dispatch(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		r.submit(ctx, trimmed)
		return true
	}

	name, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	s := r.session

	switch name {
	case "/exit", "/quit":
		return false
	case "/help":
		fmt.Fprint(r.out, helpText)
	case "/image":
		r.attachImage(arg)
	case "/noimage":
		s.RemoveImage()
		r.showDraft()
	case "/mic":
		if !s.Controller().Supported() {
			fmt.Fprintln(r.out, "Dictation is not available. Enable speech in the config and check the capture command.")
			return true
		}
		s.ToggleMic(ctx)
	case "/lang":
		r.language(arg)
	case "/theme":
		mode, err := r.prefs.Toggle()
		if err != nil {
			logger.ErrorCF("cli", "Failed to save display mode", map[string]interface{}{"error": err.Error()})
		}
		r.palette = paletteFor(mode)
		fmt.Fprintf(r.out, "Display mode: %s\n", mode)
	case "/draft":
		r.showDraft()
	case "/history":
		for _, m := range s.Messages() {
			fmt.Fprint(r.out, renderMessage(m, r.palette))
		}
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help.\n", name)
	}
	return true
}

// submit replaces the draft text with a typed line, if any, and sends the
// draft. While a request is in flight the draft is left untouched.
func (r *repl) submit(ctx context.Context, text string) {
	s := r.session
	if s.Pipeline().Busy() {
		fmt.Fprintln(r.out, r.palette.paint(r.palette.muted, "Still waiting for the last answer. Your draft is kept."))
		return
	}
	if text != "" {
		s.Type(text)
	}
	s.Submit(ctx)
}

func (r *repl) attachImage(path string) {
	if path == "" {
		fmt.Fprintln(r.out, "Usage: /image <path>")
		return
	}
	if err := r.session.AttachImage(path); err != nil {
		fmt.Fprintln(r.out, r.palette.paint(r.palette.failure, err.Error()))
		return
	}
	if !media.IsSupportedImage(path) {
		// The content is sniffed when the draft is sent.
		fmt.Fprintln(r.out, r.palette.paint(r.palette.muted, "Unusual extension; JPEG, PNG, GIF and WebP photos work best."))
	}
	r.showDraft()
}

func (r *repl) language(arg string) {
	s := r.session
	if arg == "" {
		for _, l := range providers.Languages {
			marker := "  "
			if l == s.Language() {
				marker = "* "
			}
			fmt.Fprintf(r.out, "%s%s\n", marker, l)
		}
		return
	}

	lang, ok := providers.ParseLanguage(arg)
	if !ok {
		fmt.Fprintf(r.out, "Unknown language %q.\n", arg)
		return
	}
	s.SetLanguage(lang)
	r.refreshPrompt()
	fmt.Fprintf(r.out, "Advice language: %s\n", lang)
}
