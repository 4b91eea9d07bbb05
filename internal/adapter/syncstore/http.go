// Package syncstore mirrors resume snapshots to a remote HTTP store keyed
// by device id, enabling cross-device resume.
package syncstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iredox10/minbar/internal/domain"
	"github.com/iredox10/minbar/internal/ports"
)

// snapshotPayload is the wire form of a resume snapshot.
type snapshotPayload struct {
	TrackID       string    `json:"track_id"`
	Title         string    `json:"title"`
	AudioURL      string    `json:"audio_url"`
	ArtworkURL    string    `json:"artwork_url,omitempty"`
	Speaker       string    `json:"speaker,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Kind          string    `json:"kind"`
	SeriesID      string    `json:"series_id,omitempty"`
	EpisodeNumber int       `json:"episode_number,omitempty"`
	PositionMS    int64     `json:"position_ms"`
	Rate          float64   `json:"rate"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HTTPStore talks to the resume endpoint at <baseURL>/resume/<deviceID>.
type HTTPStore struct {
	client  *http.Client
	baseURL string
}

var _ ports.SyncStore = (*HTTPStore)(nil)

// NewHTTPStore creates a store for the given API base URL. client may be nil.
func NewHTTPStore(client *http.Client, baseURL string) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPStore{client: client, baseURL: baseURL}
}

// Load retrieves the snapshot for a device.
func (s *HTTPStore) Load(ctx context.Context, deviceID string) (*domain.ResumeSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.resumeURL(deviceID), nil)
	if err != nil {
		return nil, domain.NewTransferError("load", s.baseURL, 0, "invalid request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, domain.NewTransferError("load", s.baseURL, 0, "request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrNoSnapshot
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewTransferError("load", s.baseURL, resp.StatusCode, "unexpected status", nil)
	}

	var payload snapshotPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, domain.NewTransferError("load", s.baseURL, resp.StatusCode, "decoding snapshot failed", err)
	}

	snapshot := payload.toDomain()
	return &snapshot, nil
}

// Save overwrites the snapshot for a device.
func (s *HTTPStore) Save(ctx context.Context, deviceID string, snapshot domain.ResumeSnapshot) error {
	body, err := json.Marshal(fromDomain(snapshot))
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.resumeURL(deviceID), bytes.NewReader(body))
	if err != nil {
		return domain.NewTransferError("save", s.baseURL, 0, "invalid request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.NewTransferError("save", s.baseURL, 0, "request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewTransferError("save", s.baseURL, resp.StatusCode, "unexpected status", nil)
	}
	return nil
}

// Delete removes the snapshot for a device. A missing snapshot is not an
// error.
func (s *HTTPStore) Delete(ctx context.Context, deviceID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.resumeURL(deviceID), nil)
	if err != nil {
		return domain.NewTransferError("delete", s.baseURL, 0, "invalid request", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.NewTransferError("delete", s.baseURL, 0, "request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return domain.NewTransferError("delete", s.baseURL, resp.StatusCode, "unexpected status", nil)
	}
	return nil
}

func (s *HTTPStore) resumeURL(deviceID string) string {
	return s.baseURL + "/resume/" + url.PathEscape(deviceID)
}

func fromDomain(snapshot domain.ResumeSnapshot) snapshotPayload {
	return snapshotPayload{
		TrackID:       snapshot.Track.ID,
		Title:         snapshot.Track.Title,
		AudioURL:      snapshot.Track.AudioURL,
		ArtworkURL:    snapshot.Track.ArtworkURL,
		Speaker:       snapshot.Track.Speaker,
		DurationMS:    snapshot.Track.Duration.Milliseconds(),
		Kind:          string(snapshot.Track.Kind),
		SeriesID:      snapshot.Track.SeriesID,
		EpisodeNumber: snapshot.Track.EpisodeNumber,
		PositionMS:    snapshot.Position.Milliseconds(),
		Rate:          snapshot.Rate,
		UpdatedAt:     snapshot.UpdatedAt,
	}
}

func (p snapshotPayload) toDomain() domain.ResumeSnapshot {
	return domain.ResumeSnapshot{
		Track: domain.Track{
			ID:            p.TrackID,
			Title:         p.Title,
			AudioURL:      p.AudioURL,
			ArtworkURL:    p.ArtworkURL,
			Speaker:       p.Speaker,
			Duration:      time.Duration(p.DurationMS) * time.Millisecond,
			Kind:          domain.TrackKind(p.Kind),
			SeriesID:      p.SeriesID,
			EpisodeNumber: p.EpisodeNumber,
		},
		Position:  time.Duration(p.PositionMS) * time.Millisecond,
		Rate:      p.Rate,
		UpdatedAt: p.UpdatedAt,
	}
}
