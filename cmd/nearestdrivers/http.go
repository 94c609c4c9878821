package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

var httpClient = &http.Client{Timeout: 2 * time.Minute}

func isURL(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// download fetches src, always the latest, no cache.
func download(ctx context.Context, src string, l *slog.Logger) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		l.Error("download_error", "url", src, "err", err)
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		l.Error("download_status", "url", src, "status", resp.StatusCode)
		return nil, fmt.Errorf("download %s: %s", src, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		l.Error("download_read_error", "url", src, "err", err)
		return nil, err
	}
	l.Info("download_ok", "url", src, "bytes", len(body))
	return body, nil
}
