// Command loadgen drives a running leaderboard service with randomized
// score updates and then verifies the top-N response ordering. It is a
// development smoke tool, not a test.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default configuration constants.
const (
	defaultUpdates  = 1000
	defaultUsers    = 50
	defaultTopN     = 10
	defaultWorkers  = 8
	defaultTimeout  = 5 * time.Second
	defaultDeadline = 2 * time.Minute
	maxDelta        = 100.0
)

type rankedEntry struct {
	Rank   int64   `json:"rank"`
	UserID string  `json:"userId"`
	Score  float64 `json:"score"`
	Streak int64   `json:"streak"`
}

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:8083", "Base URL of the service")
		updates = flag.Int("updates", defaultUpdates, "Number of score updates to submit")
		users   = flag.Int("users", defaultUsers, "Number of distinct users")
		topN    = flag.Int("top", defaultTopN, "Number of top entries to fetch afterwards")
		workers = flag.Int("workers", defaultWorkers, "Number of concurrent submitters")
		timeout = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultDeadline)
	defer cancel()

	if err := run(ctx, *baseURL, *updates, *users, *topN, *workers, *timeout); err != nil {
		os.Stderr.WriteString("loadgen failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context, baseURL string, updates, users, topN, workers int, timeout time.Duration) error {
	client := &http.Client{Timeout: timeout}

	ids := make([]string, users)
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	jobs := make(chan string, updates)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var failed int

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed)) //nolint:gosec // load generation, not crypto
			for id := range jobs {
				delta := rng.Float64()*2*maxDelta - maxDelta
				if err := postUpdate(ctx, client, baseURL, id, delta); err != nil {
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}
		}(time.Now().UnixNano() + int64(w))
	}

	start := time.Now()
	for i := 0; i < updates; i++ {
		jobs <- ids[i%len(ids)]
	}
	close(jobs)
	wg.Wait()

	fmt.Printf("submitted %d updates for %d users in %s (%d failed)\n",
		updates, users, time.Since(start).Round(time.Millisecond), failed)

	entries, err := fetchTop(ctx, client, baseURL, topN)
	if err != nil {
		return err
	}
	if err := verifyOrdering(entries, topN); err != nil {
		return err
	}

	fmt.Printf("top-%d verified: %d entries, leader %s with %.2f\n",
		topN, len(entries), entries[0].UserID, entries[0].Score)
	return nil
}

func postUpdate(ctx context.Context, client *http.Client, baseURL, userID string, delta float64) error {
	body, err := json.Marshal(map[string]float64{"scoreDelta": delta})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/leaderboard/update/%s", baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("update returned status %d", resp.StatusCode)
	}
	return nil
}

func fetchTop(ctx context.Context, client *http.Client, baseURL string, n int) ([]rankedEntry, error) {
	url := fmt.Sprintf("%s/leaderboard/top/%d", baseURL, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("top query returned status %d", resp.StatusCode)
	}

	var entries []rankedEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func verifyOrdering(entries []rankedEntry, topN int) error {
	if len(entries) == 0 {
		return fmt.Errorf("top query returned no entries")
	}
	if len(entries) > topN {
		return fmt.Errorf("top query returned %d entries, want at most %d", len(entries), topN)
	}
	for i, e := range entries {
		if e.Rank != int64(i)+1 {
			return fmt.Errorf("entry %d has rank %d, want %d", i, e.Rank, i+1)
		}
		if i > 0 && entries[i-1].Score < e.Score {
			return fmt.Errorf("scores not non-increasing at position %d", i)
		}
	}
	return nil
}
