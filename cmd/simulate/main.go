// Command simulate hammers a running api-server with concurrent booking
// requests for the same doctor, date and time slot, then reports how many
// won the slot versus how many were rejected. With every guard working,
// each contested slot has exactly one winner.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

type simConfig struct {
	BaseURL    string
	Token      string
	Workers    int
	Slots      int
	DoctorID   int64
	Date       string
	SlotLabels []string
}

type counters struct {
	created   atomic.Int64
	conflicts atomic.Int64
	busy      atomic.Int64
	errors    atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (c *counters) record(d time.Duration) {
	c.mu.Lock()
	c.latencies = append(c.latencies, d)
	c.mu.Unlock()
}

func (c *counters) latencyStats() (p50, p95 time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.latencies) == 0 {
		return 0, 0
	}
	sorted := make([]time.Duration, len(c.latencies))
	copy(sorted, c.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return sorted[len(sorted)*50/100], sorted[len(sorted)*95/100]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := loadSimConfig()
	if cfg.Token == "" {
		log.Fatal("SIM_TOKEN is required (a JWT accepted by the api-server)")
	}

	gofakeit.Seed(time.Now().UnixNano())
	client := &http.Client{Timeout: 10 * time.Second}

	log.Printf("firing %d workers at %d slot(s) on doctor %d for %s",
		cfg.Workers, cfg.Slots, cfg.DoctorID, cfg.Date)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var stats counters
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
			slot := cfg.SlotLabels[workerID%cfg.Slots]
			bookOnce(ctx, client, cfg, slot, rng, &stats)
		}(i)
	}
	wg.Wait()

	printReport(cfg, &stats)

	if won := stats.created.Load(); won > int64(cfg.Slots) {
		log.Fatalf("INVARIANT BROKEN: %d bookings created for %d slot(s)", won, cfg.Slots)
	}
}

func bookOnce(ctx context.Context, client *http.Client, cfg simConfig, slot string, rng *rand.Rand, stats *counters) {
	payload := map[string]any{
		"patient_name":    gofakeit.Name(),
		"patient_contact": gofakeit.Phone(),
		"patient_age":     rng.Intn(80) + 18,
		"doctor_id":       cfg.DoctorID,
		"date":            cfg.Date,
		"time_slot":       slot,
		"patient_note":    "load simulation",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		stats.errors.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.Token)

	start := time.Now()
	resp, err := client.Do(req)
	stats.record(time.Since(start))
	if err != nil {
		stats.errors.Add(1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		stats.created.Add(1)
	case http.StatusConflict:
		var errResp struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error == "slot_busy" {
			stats.busy.Add(1)
		} else {
			stats.conflicts.Add(1)
		}
	default:
		stats.errors.Add(1)
	}
}

func printReport(cfg simConfig, stats *counters) {
	p50, p95 := stats.latencyStats()
	total := stats.created.Load() + stats.conflicts.Load() + stats.busy.Load() + stats.errors.Load()

	fmt.Println()
	fmt.Println("booking contention report")
	fmt.Printf("  requests:  %d\n", total)
	fmt.Printf("  created:   %d (expected at most %d)\n", stats.created.Load(), cfg.Slots)
	fmt.Printf("  conflicts: %d\n", stats.conflicts.Load())
	fmt.Printf("  lock busy: %d\n", stats.busy.Load())
	fmt.Printf("  errors:    %d\n", stats.errors.Load())
	fmt.Printf("  latency:   p50=%s p95=%s\n", p50.Round(time.Millisecond), p95.Round(time.Millisecond))
}

func loadSimConfig() simConfig {
	allSlots := []string{
		"08:00 - 09:00", "09:00 - 10:00", "10:00 - 11:00", "11:00 - 12:00",
		"13:00 - 14:00", "14:00 - 15:00", "15:00 - 16:00", "16:00 - 17:00",
	}

	slots := getInt("SIM_SLOTS", 1)
	if slots < 1 {
		slots = 1
	}
	if slots > len(allSlots) {
		slots = len(allSlots)
	}

	return simConfig{
		BaseURL:    getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Token:      os.Getenv("SIM_TOKEN"),
		Workers:    getInt("SIM_WORKERS", 50),
		Slots:      slots,
		DoctorID:   int64(getInt("SIM_DOCTOR_ID", 1)),
		Date:       getEnv("SIM_DATE", time.Now().AddDate(0, 0, 7).Format("2006-01-02")),
		SlotLabels: allSlots[:slots],
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
