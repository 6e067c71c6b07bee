package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	query "github.com/krisalay/query-cache"
	"github.com/krisalay/query-cache/config"
	"github.com/krisalay/query-cache/logging"
	"github.com/krisalay/query-cache/metrics"
	"github.com/krisalay/query-cache/mutation"
	"github.com/krisalay/query-cache/types"
)

// ================= CAPABILITIES =================

var errNotFound = errors.New("user not found")

// FetchUser resolves user names. Only id 0 exists.
type FetchUser struct {
	mu    sync.Mutex
	names map[int]string
	delay time.Duration
	calls int
}

func (f *FetchUser) Name() string { return "fetch_user" }

func (f *FetchUser) Run(ctx context.Context, id int) (string, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	fmt.Printf("FETCH  → user %d (call #%d)\n", id, f.calls)
	if name, ok := f.names[id]; ok {
		return name, nil
	}
	return "", errors.Wrapf(errNotFound, "id %d", id)
}

func (f *FetchUser) rename(id int, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names[id] = name
}

// RenameUser is the mutation side of FetchUser.
type RenameUser struct {
	users *FetchUser
	to    string
}

func (r *RenameUser) Run(_ context.Context, id int) (string, error) {
	r.users.rename(id, r.to)
	return r.to, nil
}

// ================= MAIN =================

func main() {
	path := flag.String("config", "", "path to a YAML configuration file")
	flag.Parse()

	if err := run(*path); err != nil {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
		os.Exit(1)
	}
}

func run(path string) error {
	ctx := context.Background()

	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}

	logger, _, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("SHARDS          :", cfg.Cache.Shards)
	fmt.Println("MAX ENTRIES     :", cfg.Cache.MaxEntries)
	fmt.Println("STALE TIME      :", cfg.Cache.StaleTime)
	fmt.Println("CLEAN TIME      :", cfg.Cache.CleanTime)

	reg := prometheus.NewRegistry()
	opts := []query.Option{
		query.WithConfig(cfg.Cache),
		query.WithLogger(logger),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, query.WithMetricsProvider(metrics.New(reg, cfg.Metrics.Namespace)))
	}

	client, err := query.NewClient(opts...)
	if err != nil {
		return err
	}
	defer client.Close()

	users := &FetchUser{names: map[int]string{0: "Marc"}, delay: 650 * time.Millisecond}
	store, err := query.Use[int, string](client, users)
	if err != nil {
		return err
	}

	// ====================================================
	fmt.Println("\n==================== 1) TWO SUBSCRIBERS, ONE FETCH ====================")

	settled := make(chan struct{}, 64)
	waitSettled := func(n int) {
		for i := 0; i < n; i++ {
			<-settled
		}
	}

	var subs []*query.Subscription[int, string]
	for i := 0; i < 2; i++ {
		name := fmt.Sprintf("SUBSCRIBER-%d", i)
		sub, st := store.Subscribe(0, func(s types.State[string]) {
			fmt.Printf("%s → %v\n", name, s)
			if s.IsSettled() {
				select {
				case settled <- struct{}{}:
				default:
				}
			}
		})
		fmt.Printf("%s → subscribed, state %v\n", name, st)
		subs = append(subs, sub)
	}

	for i := 0; i < 2; i++ {
		if _, err := store.EnsureFetched(0); err != nil {
			return err
		}
	}

	// ====================================================
	fmt.Println("\n==================== 2) UNRELATED INVALIDATION ====================")
	store.GetOrCreate(1)
	fmt.Println("CACHE  → invalidate user 1 while user 0 is loading:", store.InvalidateExact(1))
	waitSettled(2)

	// ====================================================
	fmt.Println("\n==================== 3) UNKNOWN USER ====================")
	_, err = store.Get(ctx, 1)
	fmt.Println("CACHE  → GET 1 =", err)

	// ====================================================
	fmt.Println("\n==================== 4) MUTATION INVALIDATES ====================")
	rename, err := mutation.New[int, string](&RenameUser{users: users, to: "Marta"},
		mutation.WithLogger[int, string](logger),
		mutation.WithOnSettled[int, string](func(_ context.Context, id int, _ string, err error) {
			if err == nil {
				store.InvalidateExact(id)
			}
		}),
	)
	if err != nil {
		return err
	}
	defer rename.Close()

	if _, err := rename.Mutate(ctx, 0); err != nil {
		return err
	}
	waitSettled(2)

	// ====================================================
	fmt.Println("\n==================== 5) ENTRIES ====================")
	for _, info := range store.Entries() {
		fmt.Printf("KEY %v → %s gen=%d subscribers=%d stale=%v\n",
			info.Key, info.Status, info.Generation, info.Subscribers, info.Stale)
	}
	fmt.Println("FETCHES         :", store.Fetches())

	for _, sub := range subs {
		sub.Unsubscribe()
	}

	if cfg.Metrics.Enabled {
		families, err := reg.Gather()
		if err != nil {
			return errors.Wrap(err, "gather metrics")
		}
		fmt.Println("\n==================== METRICS ====================")
		for _, mf := range families {
			for _, m := range mf.GetMetric() {
				fmt.Printf("%-45s %v %v\n", mf.GetName(), m.GetLabel(), m.GetCounter().GetValue())
			}
		}
	}

	// ====================================================
	fmt.Println("\n==================== SHUTDOWN ====================")
	logger.Info("shutting down", zap.Strings("stores", client.Stores()))
	return nil
}
