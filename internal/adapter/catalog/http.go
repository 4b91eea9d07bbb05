// Package catalog resolves series metadata from the remote catalog API.
// The player only needs the ordered episode list of a series, used to
// rebuild a play queue on resume and on "play all".
package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

type episodePayload struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	AudioURL      string `json:"audio_url"`
	ArtworkURL    string `json:"artwork_url,omitempty"`
	Speaker       string `json:"speaker,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
	EpisodeNumber int    `json:"episode_number"`
}

type seriesPayload struct {
	ID       string           `json:"id"`
	Episodes []episodePayload `json:"episodes"`
}

// HTTPLookup fetches series from <baseURL>/series/<id>.
type HTTPLookup struct {
	client  *http.Client
	baseURL string
}

var _ ports.SeriesLookup = (*HTTPLookup)(nil)

// NewHTTPLookup creates a lookup for the given API base URL. client may be nil.
func NewHTTPLookup(client *http.Client, baseURL string) *HTTPLookup {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPLookup{client: client, baseURL: baseURL}
}

// Episodes returns the series' episodes ordered by episode number.
func (l *HTTPLookup) Episodes(ctx context.Context, seriesID string) ([]domain.Track, error) {
	endpoint := l.baseURL + "/series/" + url.PathEscape(seriesID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, domain.NewTransferError("lookup", endpoint, 0, "invalid request", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, domain.NewTransferError("lookup", endpoint, 0, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewTransferError("lookup", endpoint, resp.StatusCode, "unexpected status", nil)
	}

	var payload seriesPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.NewTransferError("lookup", endpoint, resp.StatusCode, "decoding series failed", err)
	}

	tracks := make([]domain.Track, len(payload.Episodes))
	for i, ep := range payload.Episodes {
		tracks[i] = domain.Track{
			ID:            ep.ID,
			Title:         ep.Title,
			AudioURL:      ep.AudioURL,
			ArtworkURL:    ep.ArtworkURL,
			Speaker:       ep.Speaker,
			Duration:      time.Duration(ep.DurationMS) * time.Millisecond,
			Kind:          domain.KindEpisode,
			SeriesID:      seriesID,
			EpisodeNumber: ep.EpisodeNumber,
		}
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].EpisodeNumber < tracks[j].EpisodeNumber
	})
	return tracks, nil
}
