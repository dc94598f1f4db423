// Package retroachievements is a small client for the RetroAchievements
// web API, used to compare the local catalog with the games known there.
package retroachievements

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/blackwell-systems/romctl/internal/config"
)

var ErrNoAPIKey = errors.New("retroachievements API key not set")

// Console is a game system known to RetroAchievements.
type Console struct {
	ID           int    `json:"ID"`
	Name         string `json:"Name"`
	IconURL      string `json:"IconURL"`
	Active       bool   `json:"Active"`
	IsGameSystem bool   `json:"IsGameSystem"`
}

// Game is one entry of a console's game list.
type Game struct {
	ID              int    `json:"ID"`
	Title           string `json:"Title"`
	ConsoleID       int    `json:"ConsoleID"`
	ConsoleName     string `json:"ConsoleName"`
	ImageIcon       string `json:"ImageIcon"`
	NumAchievements int    `json:"NumAchievements"`
	Points          int    `json:"Points"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("retroachievements %s: HTTP %d: %s", e.Endpoint, e.Status, e.Body)
}

type Client struct {
	http *resty.Client
	user string
	key  string
}

// New returns a client for cfg. The key is read from cfg.APIKey, which the
// config loader fills from the environment.
func New(cfg config.RetroAchievementsConfig, userAgent string) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.APIBase)
	client.SetTimeout(30 * time.Second)
	if userAgent != "" {
		client.SetHeader("user-agent", userAgent)
	}
	return &Client{http: client, user: cfg.Username, key: cfg.APIKey}
}

// Consoles lists the game systems, excluding non-game entries such as
// events and hubs.
func (c *Client) Consoles(ctx context.Context) ([]Console, error) {
	var all []Console
	if err := c.get(ctx, "API_GetConsoleIDs.php", map[string]string{"g": "1"}, &all); err != nil {
		return nil, err
	}
	consoles := all[:0]
	for _, con := range all {
		if con.IsGameSystem {
			consoles = append(consoles, con)
		}
	}
	return consoles, nil
}

// GameList returns the games of a console that have achievements.
func (c *Client) GameList(ctx context.Context, consoleID int) ([]Game, error) {
	var games []Game
	params := map[string]string{"i": strconv.Itoa(consoleID), "f": "1"}
	if err := c.get(ctx, "API_GetGameList.php", params, &games); err != nil {
		return nil, err
	}
	return games, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	if c.key == "" {
		return ErrNoAPIKey
	}
	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("y", c.key).
		SetQueryParam("z", c.user).
		Get(endpoint)
	if err != nil {
		return fmt.Errorf("retroachievements %s: %w", endpoint, err)
	}
	if res.IsError() {
		return &APIError{Status: res.StatusCode(), Endpoint: endpoint, Body: truncate(res.String(), 200)}
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("decoding %s: %w", endpoint, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
