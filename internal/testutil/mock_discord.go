// Package testutil provides shared test infrastructure for delibot tests.
//
// The primary helper is NewMockDiscordSession, which starts an httptest.Server
// that simulates the Discord guild REST endpoints and returns a
// *discordgo.Session pointing to it. Guild responses are injected per ID, so
// tests can exercise real discordgo.RESTError values for 403/404/500 paths.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
)

// guildResponse is one scripted reply for GET /guilds/{id}.
type guildResponse struct {
	status int
	guild  *discordgo.Guild
}

// SentMessage records one message delivered to the mock send endpoint.
type SentMessage struct {
	ChannelID string
	Content   string
}

// MockDiscord bundles the test server and discordgo session together so
// callers can script guild responses and inspect request counts and sent
// messages.
type MockDiscord struct {
	Server  *httptest.Server
	Session *discordgo.Session
	Mux     *http.ServeMux

	mu      sync.Mutex
	guilds  map[string]guildResponse
	fetches map[string]int
	sent    []SentMessage
}

// NewMockDiscordSession starts an httptest.Server simulating Discord's guild
// REST endpoint and returns a MockDiscord wrapping both the server and a
// discordgo.Session pointed at it. Endpoint overrides and the server are
// cleaned up via t.Cleanup. Unscripted guild IDs answer 404.
func NewMockDiscordSession(t *testing.T) *MockDiscord {
	t.Helper()

	m := &MockDiscord{
		guilds:  make(map[string]guildResponse),
		fetches: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v"+discordgo.APIVersion+"/guilds/", m.handleGuild)
	mux.HandleFunc("/api/v"+discordgo.APIVersion+"/channels/", m.handleChannel)

	ts := httptest.NewServer(mux)

	// Save original endpoint values before mutating so they can be restored.
	origDiscord := discordgo.EndpointDiscord
	origAPI := discordgo.EndpointAPI
	origGuilds := discordgo.EndpointGuilds
	origChannels := discordgo.EndpointChannels

	// Override discordgo's endpoint variables so the session talks to our mock.
	discordgo.EndpointDiscord = ts.URL + "/"
	discordgo.EndpointAPI = discordgo.EndpointDiscord + "api/v" + discordgo.APIVersion + "/"
	discordgo.EndpointGuilds = discordgo.EndpointAPI + "guilds/"
	discordgo.EndpointChannels = discordgo.EndpointAPI + "channels/"

	t.Cleanup(func() {
		discordgo.EndpointDiscord = origDiscord
		discordgo.EndpointAPI = origAPI
		discordgo.EndpointGuilds = origGuilds
		discordgo.EndpointChannels = origChannels
		ts.Close()
	})

	session, err := discordgo.New("Bot fake-token")
	if err != nil {
		t.Fatalf("failed to create discordgo session: %v", err)
	}

	m.Server = ts
	m.Session = session
	m.Mux = mux
	return m
}

// SetGuild scripts a 200 response carrying g for GET /guilds/{g.ID}.
func (m *MockDiscord) SetGuild(g *discordgo.Guild) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[g.ID] = guildResponse{status: http.StatusOK, guild: g}
}

// SetGuildStatus scripts an error status for GET /guilds/{id}. 403 and 404
// answer with Discord-shaped API error bodies; anything else answers with a
// generic error body.
func (m *MockDiscord) SetGuildStatus(id string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.guilds[id] = guildResponse{status: status}
}

// SentMessages returns a copy of every message delivered to the mock send
// endpoint, in arrival order.
func (m *MockDiscord) SentMessages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// FetchCount reports how many times GET /guilds/{id} was served.
func (m *MockDiscord) FetchCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[id]
}

func (m *MockDiscord) handleGuild(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v"+discordgo.APIVersion+"/guilds/")
	id := strings.TrimSuffix(path, "/")

	if r.Method != http.MethodGet || id == "" || strings.Contains(id, "/") {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	m.mu.Lock()
	m.fetches[id]++
	resp, ok := m.guilds[id]
	m.mu.Unlock()

	if !ok {
		writeAPIError(w, http.StatusNotFound, discordgo.ErrCodeUnknownGuild, "Unknown Guild")
		return
	}

	switch resp.status {
	case http.StatusOK:
		writeJSON(w, resp.guild)
	case http.StatusForbidden:
		writeAPIError(w, http.StatusForbidden, discordgo.ErrCodeMissingAccess, "Missing Access")
	case http.StatusNotFound:
		writeAPIError(w, http.StatusNotFound, discordgo.ErrCodeUnknownGuild, "Unknown Guild")
	default:
		writeAPIError(w, resp.status, 0, http.StatusText(resp.status))
	}
}

// handleChannel serves POST /channels/{id}/messages, recording the message
// and echoing it back the way Discord does.
func (m *MockDiscord) handleChannel(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v"+discordgo.APIVersion+"/channels/")
	parts := strings.Split(path, "/")

	if r.Method != http.MethodPost || len(parts) != 2 || parts[1] != "messages" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	channelID := parts[0]

	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}

	m.mu.Lock()
	m.sent = append(m.sent, SentMessage{ChannelID: channelID, Content: body.Content})
	n := len(m.sent)
	m.mu.Unlock()

	writeJSON(w, &discordgo.Message{
		ID:        fmt.Sprintf("mock-msg-%03d", n),
		ChannelID: channelID,
		Content:   body.Content,
	})
}

// writeJSON writes v as a JSON response body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeAPIError writes a Discord-shaped API error body so discordgo surfaces
// it as a *discordgo.RESTError with the given status.
func writeAPIError(w http.ResponseWriter, status, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": message,
	})
}
