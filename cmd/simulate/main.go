package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// simulate hammers one contended (date, vaccine) pair with concurrent
// reservation requests and reports how the contention resolved. With S
// published slots and D doses, successes should equal min(S, D, workers)
// and every other request should end in a typed business failure.

type simConfig struct {
	BaseURL  string
	Workers  int
	Date     string
	Vaccine  string
	Password string
}

type outcomeTally struct {
	mu        sync.Mutex
	success   int64
	byCode    map[string]int64
	latencies []time.Duration
}

func (t *outcomeTally) record(code string, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if code == "" {
		t.success++
	} else {
		t.byCode[code]++
	}
	t.latencies = append(t.latencies, latency)
}

func (t *outcomeTally) percentile(p int) time.Duration {
	if len(t.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(t.latencies))
	copy(sorted, t.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	cfg := simConfig{}
	flag.StringVar(&cfg.BaseURL, "base-url", "http://127.0.0.1:8080", "api server base url")
	flag.IntVar(&cfg.Workers, "workers", 50, "concurrent reservation attempts")
	flag.StringVar(&cfg.Date, "date", time.Now().AddDate(0, 0, 1).Format("2006-01-02"), "reservation date")
	flag.StringVar(&cfg.Vaccine, "vaccine", "pfizer", "vaccine name")
	flag.StringVar(&cfg.Password, "password", "Sim-password-1!", "password for throwaway patients")
	flag.Parse()

	fmt.Printf("simulate: %d workers against %s, date=%s vaccine=%s\n",
		cfg.Workers, cfg.BaseURL, cfg.Date, cfg.Vaccine)

	client := &http.Client{Timeout: 10 * time.Second}

	tokens := make([]string, cfg.Workers)
	for i := range tokens {
		token, err := registerAndLogin(client, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "patient setup failed: %v\n", err)
			os.Exit(1)
		}
		tokens[i] = token
	}

	tally := &outcomeTally{byCode: make(map[string]int64)}
	var started atomic.Int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for _, token := range tokens {
		wg.Add(1)
		go func(token string) {
			defer wg.Done()
			<-start
			started.Add(1)

			begin := time.Now()
			code := reserve(client, cfg, token)
			tally.record(code, time.Since(begin))
		}(token)
	}

	close(start)
	wg.Wait()

	fmt.Printf("\nresults (%d requests):\n", started.Load())
	fmt.Printf("  success:   %d\n", tally.success)
	for code, n := range tally.byCode {
		fmt.Printf("  %-10s %d\n", code+":", n)
	}
	fmt.Printf("latency p50=%s p95=%s\n", tally.percentile(50), tally.percentile(95))
}

func registerAndLogin(client *http.Client, cfg simConfig) (string, error) {
	username := "sim-" + uuid.NewString()[:13]

	if _, _, err := post(client, cfg.BaseURL+"/patients", "", map[string]string{
		"username": username,
		"password": cfg.Password,
	}); err != nil {
		return "", err
	}

	status, body, err := post(client, cfg.BaseURL+"/patients/login", "", map[string]string{
		"username": username,
		"password": cfg.Password,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login returned %d: %s", status, body)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// reserve returns the error code, or "" for a successful reservation.
func reserve(client *http.Client, cfg simConfig, token string) string {
	status, body, err := post(client, cfg.BaseURL+"/reservations", token, map[string]string{
		"date":    cfg.Date,
		"vaccine": cfg.Vaccine,
	})
	if err != nil {
		return "transport_error"
	}
	if status == http.StatusCreated {
		return ""
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error == "" {
		return fmt.Sprintf("http_%d", status)
	}
	return resp.Error
}

func post(client *http.Client, url, token string, payload any) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}
