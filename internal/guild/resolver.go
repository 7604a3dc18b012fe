// Package guild resolves a configured Discord guild: local cache first, one
// remote fetch on a miss, with expected failures classified for logging
// instead of surfaced as errors.
package guild

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/bwmarrin/discordgo"
)

// Client is the subset of guild lookup operations the resolver needs. The
// session adapter returned by WrapSession satisfies it; tests substitute
// stubs that record calls and inject failures.
type Client interface {
	// CachedGuild returns the guild from the local state cache, or nil on
	// a miss. It never performs a network call.
	CachedGuild(guildID string) *discordgo.Guild
	// Guild fetches the guild from the Discord REST API.
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
}

// sessionClient adapts a *discordgo.Session to the Client interface, backing
// CachedGuild with the session's state cache.
type sessionClient struct {
	*discordgo.Session
}

// WrapSession returns a Client backed by the given session.
func WrapSession(s *discordgo.Session) Client {
	return sessionClient{s}
}

func (c sessionClient) CachedGuild(guildID string) *discordgo.Guild {
	g, err := c.State.Guild(guildID)
	if err != nil {
		return nil
	}
	return g
}

// Compile-time assertion: sessionClient satisfies Client.
var _ Client = sessionClient{}

// Kind classifies the outcome of a guild lookup.
type Kind int

const (
	// KindCached means the guild was served from the local cache.
	KindCached Kind = iota
	// KindFetched means the guild was absent from the cache and fetched remotely.
	KindFetched
	// KindAccessDenied means the remote fetch was refused; the bot is
	// likely not a member of the guild.
	KindAccessDenied
	// KindNotFound means the guild id is invalid or the guild no longer exists.
	KindNotFound
	// KindTransportError means the fetch failed at the network or API level.
	KindTransportError
	// KindUnexpected means the fetch failed with an error outside the
	// classified causes. Callers must propagate it, not swallow it.
	KindUnexpected
)

// String returns the lowercase name of the kind, for logs.
func (k Kind) String() string {
	switch k {
	case KindCached:
		return "cached"
	case KindFetched:
		return "fetched"
	case KindAccessDenied:
		return "access denied"
	case KindNotFound:
		return "not found"
	case KindTransportError:
		return "transport error"
	case KindUnexpected:
		return "unexpected"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the result of a single guild lookup. Guild is non-nil exactly
// when Kind is KindCached or KindFetched; Err is non-nil for every failure
// kind and carries the underlying fetch error.
type Outcome struct {
	Kind  Kind
	Guild *discordgo.Guild
	Err   error
}

// Lookup consults the local cache and, on a miss, makes exactly one remote
// fetch. It performs no logging and no retries; failures are classified into
// the Outcome for the caller to match on.
func Lookup(c Client, guildID string) Outcome {
	if g := c.CachedGuild(guildID); g != nil {
		return Outcome{Kind: KindCached, Guild: g}
	}

	g, err := c.Guild(guildID)
	if err != nil {
		return Outcome{Kind: classify(err), Err: err}
	}
	return Outcome{Kind: KindFetched, Guild: g}
}

// classify maps a fetch error onto an Outcome kind. REST responses with 403
// or 404 are the two membership failures; any other REST response or a URL
// transport error counts as a transport failure. Everything else is
// unexpected and must propagate.
func classify(err error) Kind {
	var rerr *discordgo.RESTError
	if errors.As(err, &rerr) {
		if rerr.Response != nil {
			switch rerr.Response.StatusCode {
			case http.StatusForbidden:
				return KindAccessDenied
			case http.StatusNotFound:
				return KindNotFound
			}
		}
		return KindTransportError
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		return KindTransportError
	}

	return KindUnexpected
}

// Resolve looks up guildID and translates the outcome for event-handler use:
// the guild on success, nil with a single WARN record for each expected
// failure, and a returned error only for unexpected failures. A nil logger
// falls back to slog.Default().
func Resolve(c Client, logger *slog.Logger, guildID string) (*discordgo.Guild, error) {
	if logger == nil {
		logger = slog.Default()
	}

	out := Lookup(c, guildID)
	switch out.Kind {
	case KindCached, KindFetched:
		return out.Guild, nil
	case KindAccessDenied:
		logger.Warn("forbidden to fetch guild; is the bot in that server?", "guildID", guildID)
		return nil, nil
	case KindNotFound:
		logger.Warn("guild not found; is the ID correct?", "guildID", guildID)
		return nil, nil
	case KindTransportError:
		logger.Warn("error fetching guild", "guildID", guildID, "error", out.Err)
		return nil, nil
	default:
		return nil, fmt.Errorf("guild: failed to fetch guild %s: %w", guildID, out.Err)
	}
}
