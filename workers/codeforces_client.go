package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"duel-engine/services"

	"go.uber.org/zap"
)

const (
	statusPageSize = 100
	maxStatusPages = 10
	verdictOK      = "OK"
)

// CodeforcesClient reads accepted submissions and the problem set from a
// Codeforces-compatible judge API.
type CodeforcesClient struct {
	BaseURL    string
	HTTPClient *http.Client
	CatalogTTL time.Duration
	Log        *zap.Logger

	mu        sync.Mutex
	problems  map[string]services.ProblemInfo
	fetchedAt time.Time
}

func NewCodeforcesClient(baseURL string, catalogTTL time.Duration, log *zap.Logger) *CodeforcesClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CodeforcesClient{
		BaseURL:    baseURL,
		CatalogTTL: catalogTTL,
		Log:        log,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Comment string          `json:"comment"`
	Result  json.RawMessage `json:"result"`
}

type apiProblem struct {
	ContestID int      `json:"contestId"`
	Index     string   `json:"index"`
	Name      string   `json:"name"`
	Rating    int      `json:"rating"`
	Tags      []string `json:"tags"`
}

type apiSubmission struct {
	ID                  int64      `json:"id"`
	ContestID           int        `json:"contestId"`
	CreationTimeSeconds int64      `json:"creationTimeSeconds"`
	Problem             apiProblem `json:"problem"`
	Verdict             string     `json:"verdict"`
}

func (c *CodeforcesClient) get(ctx context.Context, method string, params url.Values, out interface{}) error {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid judge API URL %q: %w", c.BaseURL, err)
	}
	u := base.JoinPath(method)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("judge API request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("judge API returned %d with undecodable body: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || env.Status != "OK" {
		return fmt.Errorf("judge API %s returned %d: %s", method, resp.StatusCode, env.Comment)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// FetchAcceptedSubmissions pages through the handle's submissions, newest first, until
// it passes since.
func (c *CodeforcesClient) FetchAcceptedSubmissions(ctx context.Context, handle string, since int64) ([]services.Submission, error) {
	var accepted []services.Submission
	for page := 0; page < maxStatusPages; page++ {
		params := url.Values{}
		params.Set("handle", handle)
		params.Set("from", strconv.Itoa(page*statusPageSize+1))
		params.Set("count", strconv.Itoa(statusPageSize))

		var batch []apiSubmission
		if err := c.get(ctx, "user.status", params, &batch); err != nil {
			return nil, err
		}

		reachedSince := false
		for _, sub := range batch {
			if sub.CreationTimeSeconds < since {
				reachedSince = true
				continue
			}
			if sub.Verdict != verdictOK {
				continue
			}
			contestID := sub.Problem.ContestID
			if contestID == 0 {
				contestID = sub.ContestID
			}
			accepted = append(accepted, services.Submission{
				ID:                  sub.ID,
				ContestID:           contestID,
				ProblemIndex:        sub.Problem.Index,
				CreationTimeSeconds: sub.CreationTimeSeconds,
			})
		}
		if reachedSince || len(batch) < statusPageSize {
			return accepted, nil
		}
	}
	c.Log.Warn("submission paging limit reached", zap.String("handle", handle), zap.Int("pages", maxStatusPages))
	return accepted, nil
}

func problemKey(contestID int, index string) string {
	return strconv.Itoa(contestID) + "/" + index
}

// ResolveProblem looks the problem up in a cached copy of the problem set.
func (c *CodeforcesClient) ResolveProblem(ctx context.Context, contestID int, index string) (*services.ProblemInfo, error) {
	problems, err := c.catalog(ctx)
	if err != nil {
		return nil, err
	}
	info, ok := problems[problemKey(contestID, index)]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

func (c *CodeforcesClient) catalog(ctx context.Context) (map[string]services.ProblemInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.problems != nil && time.Since(c.fetchedAt) < c.CatalogTTL {
		return c.problems, nil
	}

	var result struct {
		Problems []apiProblem `json:"problems"`
	}
	if err := c.get(ctx, "problemset.problems", url.Values{}, &result); err != nil {
		if c.problems != nil {
			c.Log.Warn("problem set refresh failed, serving stale copy", zap.Error(err))
			return c.problems, nil
		}
		return nil, err
	}

	problems := make(map[string]services.ProblemInfo, len(result.Problems))
	for _, p := range result.Problems {
		problems[problemKey(p.ContestID, p.Index)] = services.ProblemInfo{
			ContestID: p.ContestID,
			Index:     p.Index,
			Name:      p.Name,
			Rating:    p.Rating,
			Tags:      p.Tags,
		}
	}
	c.problems, c.fetchedAt = problems, time.Now()
	c.Log.Info("problem set refreshed", zap.Int("problems", len(problems)))
	return problems, nil
}
