// Package main provides the playerctl control CLI entry point.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("playerctl", "playerd control client")
	server = app.Flag("server", "Daemon address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Control token (or set PLAYERD_ADMIN_TOKEN env)").Envar("PLAYERD_ADMIN_TOKEN").String()

	// status command
	statusCmd = app.Command("status", "Show the now-playing snapshot")

	// transport commands
	playCmd     = app.Command("play", "Resume or start playback")
	pauseCmd    = app.Command("pause", "Pause playback")
	nextCmd     = app.Command("next", "Skip to the next track")
	previousCmd = app.Command("previous", "Return to the previous track").Alias("prev")
	retryCmd    = app.Command("retry", "Reload the current track after an error")

	// playat command
	playAtCmd   = app.Command("playat", "Play the queue entry at a position")
	playAtIndex = playAtCmd.Arg("index", "Queue position").Required().Int()

	// seek command
	seekCmd     = app.Command("seek", "Seek to an absolute position")
	seekSeconds = seekCmd.Arg("seconds", "Position in seconds").Required().Float64()

	// volume command
	volumeCmd   = app.Command("volume", "Set the volume (0.0 - 1.0)")
	volumeValue = volumeCmd.Arg("volume", "Volume").Required().Float64()

	// rate command
	rateCmd   = app.Command("rate", "Set the playback rate (0.5 - 2.0)")
	rateValue = rateCmd.Arg("rate", "Playback rate").Required().Float64()

	// queue command
	queueCmd      = app.Command("queue", "Replace the queue from a catalog source")
	queueSource   = queueCmd.Flag("source", "Source kind: track, album, featured, radio").Required().Enum("track", "album", "featured", "radio")
	queueID       = queueCmd.Flag("id", "Track or album ID (for track/album sources)").String()
	queueShuffle  = queueCmd.Flag("shuffle", "Shuffle the queue").Bool()
	queueAutoplay = queueCmd.Flag("autoplay", "Start playing immediately").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	c := &client{base: *server, token: *token}

	switch command {
	case statusCmd.FullCommand():
		printState(c.get("/api/player/state"))
	case playCmd.FullCommand():
		printState(c.post("/api/player/play", nil))
	case pauseCmd.FullCommand():
		printState(c.post("/api/player/pause", nil))
	case nextCmd.FullCommand():
		printState(c.post("/api/player/next", nil))
	case previousCmd.FullCommand():
		printState(c.post("/api/player/previous", nil))
	case retryCmd.FullCommand():
		printState(c.post("/api/player/retry", nil))
	case playAtCmd.FullCommand():
		printState(c.post("/api/player/playat", map[string]any{"index": *playAtIndex}))
	case seekCmd.FullCommand():
		printState(c.post("/api/player/seek", map[string]any{"seconds": *seekSeconds}))
	case volumeCmd.FullCommand():
		printState(c.post("/api/player/volume", map[string]any{"volume": *volumeValue}))
	case rateCmd.FullCommand():
		printState(c.post("/api/player/rate", map[string]any{"rate": *rateValue}))
	case queueCmd.FullCommand():
		printState(c.post("/api/player/queue", map[string]any{
			"source":   *queueSource,
			"id":       *queueID,
			"shuffle":  *queueShuffle,
			"autoplay": *queueAutoplay,
		}))
	}
}

// client is a thin JSON client for the daemon API.
type client struct {
	base  string
	token string
}

func (c *client) get(path string) []byte {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		fail(err)
	}
	return c.do(req)
}

func (c *client) post(path string, body any) []byte {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			fail(err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, reader)
	if err != nil {
		fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.do(req)
}

func (c *client) do(req *http.Request) []byte {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fail(err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			fail(fmt.Errorf("%s (%s)", e.Error, resp.Status))
		}
		fail(fmt.Errorf("unexpected status %s", resp.Status))
	}
	return raw
}

// state mirrors the daemon's snapshot response.
type state struct {
	State string `json:"state"`
	Track *struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Artist   string `json:"artist"`
		Album    string `json:"album"`
		Duration string `json:"duration"`
	} `json:"track"`
	Index       int     `json:"index"`
	QueueLength int     `json:"queueLength"`
	Shuffled    bool    `json:"shuffled"`
	Position    float64 `json:"position"`
	Duration    float64 `json:"duration"`
	Volume      float64 `json:"volume"`
	Rate        float64 `json:"rate"`
}

func printState(raw []byte) {
	var s state
	if err := json.Unmarshal(raw, &s); err != nil {
		fail(err)
	}

	fmt.Printf("State: %s\n", s.State)
	if s.Track != nil {
		fmt.Printf("Track: %s - %s", s.Track.Artist, s.Track.Title)
		if s.Track.Album != "" {
			fmt.Printf(" (%s)", s.Track.Album)
		}
		fmt.Println()
		fmt.Printf("Position: %.0fs / %s\n", s.Position, s.Track.Duration)
	}
	if s.QueueLength > 0 {
		shuffled := ""
		if s.Shuffled {
			shuffled = ", shuffled"
		}
		fmt.Printf("Queue: %d/%d%s\n", s.Index+1, s.QueueLength, shuffled)
	}
	fmt.Printf("Volume: %.2f  Rate: %.2f\n", s.Volume, s.Rate)
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}
