// services/neynar.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"lawn-points-service/utils"
)

const neynarBaseURL = "https://api.neynar.com/v2/farcaster"

// Cast is one post from the admin feed. ParentAuthor carries the fid of the
// user being replied to; it is nil (or holds a nil fid) for top-level casts.
type Cast struct {
	Text         string      `json:"text"`
	ParentAuthor *CastParent `json:"parent_author,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

type CastParent struct {
	Fid *int64 `json:"fid"`
}

// DirectoryUser is one /user/bulk result. Any empty field means the user could
// not be fully resolved and must not be published.
type DirectoryUser struct {
	Fid         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	PfpURL      string `json:"pfp_url"`
}

// NeynarClient talks to the Neynar Farcaster API. It is both the feed source
// (admin casts) and the user directory (bulk profile lookups).
type NeynarClient struct {
	baseURL string
	apiKey  string
	client  *http.Client

	castsCache *Cache[[]Cast]
	userCache  *Cache[DirectoryUser]
}

// NewNeynarClient builds a client with short-lived response caches. The clock
// drives cache expiry and is time.Now outside of tests.
func NewNeynarClient(apiKey string, clock func() time.Time) *NeynarClient {
	return &NeynarClient{
		baseURL:    neynarBaseURL,
		apiKey:     apiKey,
		client:     utils.HTTPClient,
		castsCache: NewCache[[]Cast](5*time.Minute, clock),
		userCache:  NewCache[DirectoryUser](5*time.Minute, clock),
	}
}

func (n *NeynarClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	finalURL := fmt.Sprintf("%s%s?%s", n.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", finalURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", endpoint, err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-api-key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("neynar request %s failed: %w", endpoint, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.Printf("❌ [NEYNAR] %s returned %d: %s", endpoint, resp.StatusCode, string(body))
		return fmt.Errorf("neynar non-200 response from %s: %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode neynar response from %s: %w", endpoint, err)
	}
	return nil
}

// FetchAdminCasts returns the admin's recent casts including replies, newest
// first, bounded by limit. Responses are cached for a few minutes.
func (n *NeynarClient) FetchAdminCasts(ctx context.Context, fid int64, limit int) ([]Cast, error) {
	cacheKey := fmt.Sprintf("casts-%d-%d", fid, limit)
	if cached, ok := n.castsCache.Get(cacheKey); ok {
		return cached, nil
	}

	params := url.Values{}
	params.Set("fid", strconv.FormatInt(fid, 10))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("include_replies", "true")

	var out struct {
		Casts []Cast `json:"casts"`
	}
	if err := n.get(ctx, "/feed/user/casts", params, &out); err != nil {
		return nil, err
	}

	n.castsCache.Set(cacheKey, out.Casts)
	return out.Casts, nil
}

// FetchUsersBulk resolves display details for a batch of fids in one request.
// Fids missing from the response are simply absent from the returned map.
func (n *NeynarClient) FetchUsersBulk(ctx context.Context, fids []int64) (map[int64]DirectoryUser, error) {
	if len(fids) == 0 {
		return map[int64]DirectoryUser{}, nil
	}

	parts := make([]string, len(fids))
	for i, fid := range fids {
		parts[i] = strconv.FormatInt(fid, 10)
	}
	params := url.Values{}
	params.Set("fids", strings.Join(parts, ","))

	var out struct {
		Users []DirectoryUser `json:"users"`
	}
	if err := n.get(ctx, "/user/bulk", params, &out); err != nil {
		return nil, err
	}

	users := make(map[int64]DirectoryUser, len(out.Users))
	for _, u := range out.Users {
		users[u.Fid] = u
	}
	return users, nil
}

// LookupUserByUsername resolves a single username to its directory record.
// Returns nil when the username is unknown.
func (n *NeynarClient) LookupUserByUsername(ctx context.Context, username string) (*DirectoryUser, error) {
	cacheKey := "user-" + strings.ToLower(username)
	if cached, ok := n.userCache.Get(cacheKey); ok {
		return &cached, nil
	}

	params := url.Values{}
	params.Set("username", username)

	var out struct {
		Result struct {
			User *DirectoryUser `json:"user"`
		} `json:"result"`
	}
	if err := n.get(ctx, "/user/by_username", params, &out); err != nil {
		return nil, err
	}
	if out.Result.User == nil {
		return nil, nil
	}

	n.userCache.Set(cacheKey, *out.Result.User)
	return out.Result.User, nil
}
