// Command rsvp-loadtest drives the login, authenticate and RSVP paths of the
// service against Redis (or an in-process miniredis) and prints latency
// percentiles per phase.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/cactusmakesperfect/rsvp/storage/redisstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

// codeBook stands in for a mailbox: it remembers the last code per ticket.
type codeBook struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeBook) SendLoginCode(_ context.Context, msg rsvp.LoginMessage) error {
	b.mu.Lock()
	b.codes[msg.LoginID] = msg.Code
	b.mu.Unlock()
	return nil
}

func (b *codeBook) code(loginID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[loginID]
}

type guestState struct {
	email      string
	credential string
}

func main() {
	var (
		guests      = pflag.Int("guests", 2000, "number of guests to log in")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 20000, "operations per phase (authenticate + submit)")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = pflag.String("prefix", "loadtest", "redis key prefix")
	)
	pflag.Parse()

	if *guests <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "guests, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := rsvp.DefaultConfig()
	cfg.Token.Secret = []byte("loadtest-secret-loadtest-secret!")
	cfg.Login.Mode = rsvp.LoginChallenge
	cfg.Login.RedisPrefix = *prefix + ":login"
	cfg.Login.EnableIdentifierThrottle = false
	cfg.Login.EnableIPThrottle = false
	cfg.Audit.Enabled = false

	book := &codeBook{codes: make(map[string]string, *guests)}
	svc, err := rsvp.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(redisstore.New(client, *prefix+":rsvp")).
		WithMailer(book).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build service: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close(ctx)

	states := make([]guestState, *guests)
	for i := range states {
		states[i].email = fmt.Sprintf("guest-%d@example.com", i)
	}

	loginStats := runPhase(len(states), *concurrency, 3571, func(_ *rand.Rand, i int) error {
		ticket, err := svc.RequestLogin(ctx, states[i].email)
		if err != nil {
			return err
		}
		res, err := svc.Verify(ctx, ticket.Token, states[i].email, book.code(ticket.Token))
		if err != nil {
			return err
		}
		states[i].credential = res.Token
		return nil
	})

	authStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, _ int) error {
		state := states[r.Intn(len(states))]
		if state.credential == "" {
			return errors.New("guest not logged in")
		}
		_, err := svc.Authenticate(ctx, state.credential)
		return err
	})

	statuses := []rsvp.Status{rsvp.StatusPending, rsvp.StatusAccepted, rsvp.StatusDeclined}
	submitStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, i int) error {
		state := states[r.Intn(len(states))]
		_, err := svc.SubmitRSVP(ctx, state.email, rsvp.Record{
			Status:       statuses[i%len(statuses)],
			DietaryNotes: "none",
		})
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("submit", submitStats)
}

// runPhase calls fn ops times across concurrency workers. fn receives a
// per-worker rand and the operation index.
func runPhase(ops, concurrency int, seed int64, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := fn(r, i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
