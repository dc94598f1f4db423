package retroachievements

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/romctl/internal/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(config.RetroAchievementsConfig{APIBase: srv.URL, Username: "tester", APIKey: "k3y"}, "romctl-test")
}

func TestConsoles(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/API_GetConsoleIDs.php", r.URL.Path)
		assert.Equal(t, "k3y", r.URL.Query().Get("y"))
		assert.Equal(t, "tester", r.URL.Query().Get("z"))
		assert.Equal(t, "romctl-test", r.UserAgent())
		fmt.Fprint(w, `[
			{"ID":7,"Name":"NES/Famicom","IconURL":"https://x/nes.png","Active":true,"IsGameSystem":true},
			{"ID":101,"Name":"Events","Active":true,"IsGameSystem":false}
		]`)
	})

	consoles, err := c.Consoles(context.Background())
	require.NoError(t, err)
	require.Len(t, consoles, 1)
	assert.Equal(t, 7, consoles[0].ID)
	assert.Equal(t, "NES/Famicom", consoles[0].Name)
}

func TestGameList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/API_GetGameList.php", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("i"))
		assert.Equal(t, "1", r.URL.Query().Get("f"))
		fmt.Fprint(w, `[{"ID":1448,"Title":"Mega Man","ConsoleID":7,"ConsoleName":"NES/Famicom","NumAchievements":44,"Points":400}]`)
	})

	games, err := c.GameList(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, Game{ID: 1448, Title: "Mega Man", ConsoleID: 7, ConsoleName: "NES/Famicom", NumAchievements: 44, Points: 400}, games[0])
}

func TestAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Unauthenticated."}`, http.StatusUnauthorized)
	})

	_, err := c.GameList(context.Background(), 7)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "Unauthenticated")
}

func TestMalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>maintenance</html>`)
	})

	_, err := c.Consoles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestNoAPIKey(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	defer srv.Close()

	c := New(config.RetroAchievementsConfig{APIBase: srv.URL}, "")
	_, err := c.Consoles(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)
	assert.False(t, called, "no request should be made without a key")
}
