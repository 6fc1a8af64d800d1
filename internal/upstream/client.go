// Package upstream is the typed HTTP client described in spec.md §4.1: ETag
// -aware GET with conditional re-fetch against the game's JSON panel/AWS
// endpoints plus the routing, profile and thumbnail side-services. Every GET
// keeps the last-seen ETag per (endpoint, server) and short-circuits callers
// on 304. The http.Client-with-timeout style and the "read the body, decode,
// wrap errors" shape are carried straight from the teacher's
// internal/realtime/rodalies/client.go.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

// ErrNotModified is the "no change" sentinel a 304 response produces.
var ErrNotModified = fmt.Errorf("upstream: not modified")

// Client is the typed upstream HTTP client.
type Client struct {
	panelBaseURL   string
	awsBaseURL     string
	routingBaseURL string
	profileBaseURL string

	http *http.Client

	etagMu sync.Mutex
	etags  map[string]string // keyed by "endpoint|server"
}

// NewClient builds a client with spec.md §5's fixed timeouts: 5s connect, 5s
// read/write, indefinite reconnects handled by the transport's default pool.
func NewClient(panelBaseURL, awsBaseURL, routingBaseURL, profileBaseURL string) *Client {
	return &Client{
		panelBaseURL:   panelBaseURL,
		awsBaseURL:     awsBaseURL,
		routingBaseURL: routingBaseURL,
		profileBaseURL: profileBaseURL,
		http: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
		etags: make(map[string]string),
	}
}

func (c *Client) etagKey(endpoint, server string) string { return endpoint + "|" + server }

// getJSON issues a conditional GET and decodes the JSON body into out. If
// the upstream responds 304, it returns ErrNotModified and leaves out
// untouched: the caller should reuse its previous snapshot.
func (c *Client) getJSON(ctx context.Context, endpoint, server, url string, out any) error {
	body, _, err := c.getConditional(ctx, endpoint, server, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("upstream: decoding %s: %w", endpoint, err)
	}
	return nil
}

// getBytes issues a conditional GET and returns the raw body, for protobuf
// payloads decoded by the caller.
func (c *Client) getBytes(ctx context.Context, endpoint, server, url string) ([]byte, error) {
	body, _, err := c.getConditional(ctx, endpoint, server, url)
	return body, err
}

func (c *Client) getConditional(ctx context.Context, endpoint, server, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("upstream: building request for %s: %w", endpoint, err)
	}

	key := c.etagKey(endpoint, server)
	c.etagMu.Lock()
	if etag, ok := c.etags[key]; ok {
		req.Header.Set("If-None-Match", etag)
	}
	c.etagMu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("upstream: fetching %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, "", ErrNotModified
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("upstream: %s returned status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("upstream: reading %s response: %w", endpoint, err)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		c.etagMu.Lock()
		c.etags[key] = etag
		c.etagMu.Unlock()
	}

	return body, resp.Header.Get("ETag"), nil
}

// ListServers lists every upstream server.
func (c *Client) ListServers(ctx context.Context) ([]ServerDTO, error) {
	var out []ServerDTO
	url := c.panelBaseURL + "/servers"
	if err := c.getJSON(ctx, "servers", "*", url, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTimeOffset fetches the UTC offset for a server code.
func (c *Client) GetTimeOffset(ctx context.Context, serverCode string) (TimeOffsetDTO, error) {
	var out TimeOffsetDTO
	url := fmt.Sprintf("%s/servers/%s/time", c.panelBaseURL, serverCode)
	if err := c.getJSON(ctx, "time-offset", serverCode, url, &out); err != nil {
		return TimeOffsetDTO{}, err
	}
	return out, nil
}

// ListActiveTrains lists live train runs for a server.
func (c *Client) ListActiveTrains(ctx context.Context, serverCode string) ([]ActiveTrainDTO, error) {
	var out []ActiveTrainDTO
	url := fmt.Sprintf("%s/servers/%s/trains", c.awsBaseURL, serverCode)
	err := c.getJSON(ctx, "active-trains", serverCode, url, &out)
	if err == ErrNotModified {
		return nil, ErrNotModified
	}
	return out, err
}

// ListActiveTrainPositions lists live positions for a server.
func (c *Client) ListActiveTrainPositions(ctx context.Context, serverCode string) ([]TrainPositionDTO, error) {
	var out []TrainPositionDTO
	url := fmt.Sprintf("%s/servers/%s/trains-open", c.awsBaseURL, serverCode)
	err := c.getJSON(ctx, "active-train-positions", serverCode, url, &out)
	if err == ErrNotModified {
		return nil, ErrNotModified
	}
	return out, err
}

// ListDispatchPosts lists dispatch posts for a server.
func (c *Client) ListDispatchPosts(ctx context.Context, serverCode string) ([]DispatchPostDTO, error) {
	var out []DispatchPostDTO
	url := fmt.Sprintf("%s/servers/%s/stations", c.awsBaseURL, serverCode)
	err := c.getJSON(ctx, "dispatch-posts", serverCode, url, &out)
	if err == ErrNotModified {
		return nil, ErrNotModified
	}
	return out, err
}

// ListVehicleConsists lists the reported railcar consist of every active run
// on a server.
func (c *Client) ListVehicleConsists(ctx context.Context, serverCode string) ([]VehicleConsistDTO, error) {
	var out []VehicleConsistDTO
	url := fmt.Sprintf("%s/servers/%s/consists", c.awsBaseURL, serverCode)
	err := c.getJSON(ctx, "vehicle-consists", serverCode, url, &out)
	if err == ErrNotModified {
		return nil, ErrNotModified
	}
	return out, err
}

// FetchTimetable fetches the full timetable for a server.
func (c *Client) FetchTimetable(ctx context.Context, serverCode string) (TimetableDTO, error) {
	var out TimetableDTO
	url := fmt.Sprintf("%s/servers/%s/timetable", c.panelBaseURL, serverCode)
	err := c.getJSON(ctx, "timetable", serverCode, url, &out)
	if err == ErrNotModified {
		return TimetableDTO{}, ErrNotModified
	}
	return out, err
}

// FetchTrainThumbnail fetches a train's thumbnail image bytes.
func (c *Client) FetchTrainThumbnail(ctx context.Context, trainType string) ([]byte, error) {
	url := fmt.Sprintf("%s/thumbnails/%s.png", c.panelBaseURL, trainType)
	return c.getBytes(ctx, "train-thumbnail", trainType, url)
}

// ResolvePolyline resolves a routing polyline between two points (out of
// scope for this module's own logic, but its interface is specified so the
// collectors can call it when building route geometry).
func (c *Client) ResolvePolyline(ctx context.Context, fromPointID, toPointID string) (PolylineDTO, error) {
	var out PolylineDTO
	url := fmt.Sprintf("%s/route?from=%s&to=%s", c.routingBaseURL, fromPointID, toPointID)
	if err := c.getJSON(ctx, "polyline", fromPointID+">"+toPointID, url, &out); err != nil {
		return PolylineDTO{}, err
	}
	return out, nil
}

// ResolveUserProfile resolves a user profile by platform id.
func (c *Client) ResolveUserProfile(ctx context.Context, platformUserID string) (ProfileDTO, error) {
	var out ProfileDTO
	url := fmt.Sprintf("%s/profiles/%s", c.profileBaseURL, platformUserID)
	if err := c.getJSON(ctx, "profile", platformUserID, url, &out); err != nil {
		return ProfileDTO{}, err
	}
	return out, nil
}
