package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"tenacitos.ai/internal/sim/office"
)

// PollFeed fetches the dashboard's agent list on a fixed interval.
type PollFeed struct {
	URL      string
	Interval time.Duration
	Client   *http.Client
	Inbox    chan<- office.StatusUpdate
	Log      *log.Logger

	seq  uint64
	last []byte
}

func NewPollFeed(url string, interval time.Duration, inbox chan<- office.StatusUpdate, logger *log.Logger) *PollFeed {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &PollFeed{
		URL:      url,
		Interval: interval,
		Client:   &http.Client{Timeout: 5 * time.Second},
		Inbox:    inbox,
		Log:      logger,
	}
}

func (p *PollFeed) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		if err := p.Poll(ctx); err != nil && p.Log != nil {
			p.Log.Printf("poll feed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll performs one fetch. Unchanged bodies are not resubmitted.
func (p *PollFeed) Poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", p.URL, resp.Status)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	raw = bytes.TrimSpace(raw)
	if bytes.Equal(raw, p.last) {
		return nil
	}
	msg, err := Decode(raw, p.seq+1)
	if err != nil {
		return err
	}
	if !offer(p.Inbox, office.StatusUpdate{Source: "poll", Seq: msg.Seq, Agents: msg.Agents}) {
		return fmt.Errorf("office busy; dropped seq %d", msg.Seq)
	}
	p.seq = msg.Seq
	p.last = raw
	return nil
}
