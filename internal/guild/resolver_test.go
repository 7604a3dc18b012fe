package guild

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/dopelDev/delibot/internal/testutil"
)

// stubClient is a Client with a scripted cache and fetch result. It records
// how many times the fetch was invoked.
type stubClient struct {
	cached  map[string]*discordgo.Guild
	guild   *discordgo.Guild
	err     error
	fetches int
}

func (c *stubClient) CachedGuild(guildID string) *discordgo.Guild {
	return c.cached[guildID]
}

func (c *stubClient) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	c.fetches++
	return c.guild, c.err
}

// newLogRecorder returns a WARN-level logger writing to the returned buffer.
func newLogRecorder() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, nil)), buf
}

// countRecords counts emitted log lines.
func countRecords(buf *bytes.Buffer) int {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return 0
	}
	return len(strings.Split(out, "\n"))
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

func Test_Lookup_CacheHit_SkipsFetch(t *testing.T) {
	g := &discordgo.Guild{ID: "42", Name: "cached-guild"}
	c := &stubClient{cached: map[string]*discordgo.Guild{"42": g}}

	out := Lookup(c, "42")

	if out.Kind != KindCached {
		t.Errorf("Kind = %v, want %v", out.Kind, KindCached)
	}
	if out.Guild != g {
		t.Errorf("Guild = %v, want cached entry", out.Guild)
	}
	if c.fetches != 0 {
		t.Errorf("fetches = %d, want 0 (cache hit must not hit the network)", c.fetches)
	}
}

func Test_Lookup_CacheMiss_FetchesExactlyOnce(t *testing.T) {
	g := &discordgo.Guild{ID: "42", Name: "fetched-guild"}
	c := &stubClient{guild: g}

	out := Lookup(c, "42")

	if out.Kind != KindFetched {
		t.Errorf("Kind = %v, want %v", out.Kind, KindFetched)
	}
	if out.Guild != g {
		t.Errorf("Guild = %v, want fetched entry", out.Guild)
	}
	if c.fetches != 1 {
		t.Errorf("fetches = %d, want exactly 1", c.fetches)
	}
}

func Test_Lookup_FetchFailure_NoRetry(t *testing.T) {
	c := &stubClient{err: &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusInternalServerError}}}

	out := Lookup(c, "42")

	if out.Kind != KindTransportError {
		t.Errorf("Kind = %v, want %v", out.Kind, KindTransportError)
	}
	if c.fetches != 1 {
		t.Errorf("fetches = %d, want exactly 1 (no retries)", c.fetches)
	}
}

// ---------------------------------------------------------------------------
// classify
// ---------------------------------------------------------------------------

func Test_Classify_Kinds(t *testing.T) {
	restErr := func(status int) error {
		return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
	}

	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"rest 403", restErr(http.StatusForbidden), KindAccessDenied},
		{"rest 404", restErr(http.StatusNotFound), KindNotFound},
		{"rest 500", restErr(http.StatusInternalServerError), KindTransportError},
		{"rest no response", &discordgo.RESTError{}, KindTransportError},
		{"wrapped rest 403", fmt.Errorf("outer: %w", restErr(http.StatusForbidden)), KindAccessDenied},
		{"url error", &url.Error{Op: "Get", URL: "https://discord.com", Err: errors.New("refused")}, KindTransportError},
		{"plain error", errors.New("boom"), KindUnexpected},
	}

	for _, tc := range cases {
		if got := classify(tc.err); got != tc.want {
			t.Errorf("classify(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Resolve — classified failures via a real discordgo session
// ---------------------------------------------------------------------------

func Test_Resolve_AccessDenied_ReturnsNilAndWarnsOnce(t *testing.T) {
	md := testutil.NewMockDiscordSession(t)
	md.SetGuildStatus("42", http.StatusForbidden)
	logger, buf := newLogRecorder()

	g, err := Resolve(WrapSession(md.Session), logger, "42")

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if g != nil {
		t.Errorf("Resolve() guild = %v, want nil", g)
	}
	if n := countRecords(buf); n != 1 {
		t.Errorf("log records = %d, want exactly 1\noutput: %s", n, buf.String())
	}
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "42") {
		t.Errorf("expected one WARN record containing the guild id, got: %s", out)
	}
}

func Test_Resolve_NotFound_ReturnsNilAndWarnsOnce(t *testing.T) {
	md := testutil.NewMockDiscordSession(t)
	md.SetGuildStatus("42", http.StatusNotFound)
	logger, buf := newLogRecorder()

	g, err := Resolve(WrapSession(md.Session), logger, "42")

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if g != nil {
		t.Errorf("Resolve() guild = %v, want nil", g)
	}
	if n := countRecords(buf); n != 1 {
		t.Errorf("log records = %d, want exactly 1\noutput: %s", n, buf.String())
	}
	if out := buf.String(); !strings.Contains(out, "level=WARN") || !strings.Contains(out, "42") {
		t.Errorf("expected one WARN record containing the guild id, got: %s", out)
	}
	if md.FetchCount("42") != 1 {
		t.Errorf("fetch count = %d, want 1", md.FetchCount("42"))
	}
}

func Test_Resolve_TransportError_WarnsWithUnderlyingError(t *testing.T) {
	md := testutil.NewMockDiscordSession(t)
	md.SetGuildStatus("42", http.StatusInternalServerError)
	logger, buf := newLogRecorder()

	g, err := Resolve(WrapSession(md.Session), logger, "42")

	if err != nil {
		t.Fatalf("Resolve() error = %v, want nil", err)
	}
	if g != nil {
		t.Errorf("Resolve() guild = %v, want nil", g)
	}
	if n := countRecords(buf); n != 1 {
		t.Errorf("log records = %d, want exactly 1\noutput: %s", n, buf.String())
	}
	out := buf.String()
	if !strings.Contains(out, "42") {
		t.Errorf("WARN record missing guild id: %s", out)
	}
	if !strings.Contains(out, "error=") || !strings.Contains(out, "500") {
		t.Errorf("WARN record missing underlying error message: %s", out)
	}
}

func Test_Resolve_UnexpectedError_Propagates(t *testing.T) {
	boom := errors.New("boom")
	c := &stubClient{err: boom}
	logger, buf := newLogRecorder()

	g, err := Resolve(c, logger, "42")

	if g != nil {
		t.Errorf("Resolve() guild = %v, want nil", g)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Resolve() error = %v, want wrapped %v", err, boom)
	}
	if n := countRecords(buf); n != 0 {
		t.Errorf("log records = %d, want 0 (unexpected errors propagate, not log)", n)
	}
}

func Test_Resolve_Success_EmitsNoLogRecords(t *testing.T) {
	md := testutil.NewMockDiscordSession(t)
	md.SetGuild(&discordgo.Guild{ID: "42", Name: "test-guild"})
	logger, buf := newLogRecorder()

	g, err := Resolve(WrapSession(md.Session), logger, "42")

	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g == nil || g.ID != "42" {
		t.Fatalf("Resolve() guild = %v, want guild 42", g)
	}
	if n := countRecords(buf); n != 0 {
		t.Errorf("log records = %d, want 0 on success\noutput: %s", n, buf.String())
	}
}

// ---------------------------------------------------------------------------
// WrapSession — state cache integration
// ---------------------------------------------------------------------------

func Test_WrapSession_StateHit_SkipsFetch(t *testing.T) {
	md := testutil.NewMockDiscordSession(t)
	if err := md.Session.State.GuildAdd(&discordgo.Guild{ID: "42", Name: "state-guild"}); err != nil {
		t.Fatalf("GuildAdd() error = %v", err)
	}
	logger, _ := newLogRecorder()

	g, err := Resolve(WrapSession(md.Session), logger, "42")

	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g == nil || g.Name != "state-guild" {
		t.Fatalf("Resolve() guild = %v, want state cache entry", g)
	}
	if md.FetchCount("42") != 0 {
		t.Errorf("fetch count = %d, want 0 for a cache hit", md.FetchCount("42"))
	}
}

func Test_WrapSession_StateMiss_Fetches(t *testing.T) {
	md := testutil.NewMockDiscordSession(t)
	md.SetGuild(&discordgo.Guild{ID: "42", Name: "remote-guild"})
	logger, _ := newLogRecorder()

	g, err := Resolve(WrapSession(md.Session), logger, "42")

	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if g == nil || g.Name != "remote-guild" {
		t.Fatalf("Resolve() guild = %v, want fetched guild", g)
	}
	if md.FetchCount("42") != 1 {
		t.Errorf("fetch count = %d, want 1", md.FetchCount("42"))
	}
}
