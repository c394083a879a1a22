package scheduler

import (
	"context"
	"net/http"
	"time"
)

// Connectivity reports whether the network constraint is currently met.
type Connectivity interface {
	Available(ctx context.Context) bool
}

// AlwaysOnline treats the network as permanently available.
type AlwaysOnline struct{}

func (AlwaysOnline) Available(context.Context) bool { return true }

// HTTPProbe considers the network available when URL answers at all. Any HTTP
// status counts; only transport failures mean offline.
type HTTPProbe struct {
	URL     string
	Client  *http.Client
	Timeout time.Duration
}

func (p HTTPProbe) Available(ctx context.Context) bool {
	if p.URL == "" {
		return false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
