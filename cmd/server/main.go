package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"opalcraft.gg/internal/advancement"
	"opalcraft.gg/internal/commands"
	"opalcraft.gg/internal/config"
	"opalcraft.gg/internal/persistence/progressdb"
	"opalcraft.gg/internal/persistence/telemetry"
	"opalcraft.gg/internal/protocol"
	"opalcraft.gg/internal/resource"
	"opalcraft.gg/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (overrides config)")
		configPath = flag.String("config", "./configs/server.yaml", "server config path")
		advDir     = flag.String("advancements", "", "advancement definition directory (overrides config)")
		dataDir    = flag.String("data", "", "runtime data directory (overrides config)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("config not found (%s); using defaults", *configPath)
			cfg = config.Default()
		} else {
			logger.Fatalf("load config: %v", err)
		}
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *advDir != "" {
		cfg.AdvancementDir = *advDir
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)

	loadLogger := log.New(os.Stdout, "[advancements] ", log.LstdFlags|log.Lmicroseconds)
	loader, err := advancement.NewLoader(loadLogger)
	if err != nil {
		logger.Fatalf("loader: %v", err)
	}
	reg, err := loadRegistry(loader, cfg.AdvancementDir, loadLogger)
	if err != nil {
		logger.Fatalf("load advancements: %v", err)
	}
	logger.Printf("loaded %d advancements from %s", reg.Len(), cfg.AdvancementDir)

	handle := advancement.NewHandle(reg)
	pal := buildPalette(reg)

	store, err := progressdb.Open(filepath.Join(cfg.DataDir, "progress.db"))
	if err != nil {
		logger.Fatalf("open progress db: %v", err)
	}
	defer store.Close()

	var telem *telemetry.Writer
	if cfg.TelemetryEnabled {
		telem = telemetry.NewWriter(filepath.Join(cfg.DataDir, "telemetry"))
		defer telem.Close()
	}

	syncer := advancement.NewSyncer(handle, pal.item, logger)
	flushEvery := time.Duration(cfg.FlushIntervalMs) * time.Millisecond
	wsrv := ws.NewServer(handle, syncer, store, flushEvery, logger)

	onComplete := func(player string, tr *advancement.Tracker, id resource.ID, adv *advancement.Advancement) {
		if fresh := tr.UnlockRecipes(adv.Rewards.Recipes); len(fresh) > 0 {
			if sess, ok := wsrv.Session(player); ok {
				pkt := &protocol.RecipeBookAdd{}
				for _, rid := range fresh {
					pkt.Entries = append(pkt.Entries, protocol.RecipeBookEntry{
						RecipeID:  pal.recipe(rid),
						DisplayID: rid,
						Flags:     protocol.RecipeFlagUnlocked | protocol.RecipeFlagHighlighted,
					})
				}
				if err := sess.Send(protocol.ClientboundRecipeBookAdd, pkt); err != nil {
					logger.Printf("player %s: recipe unlock: %v", player, err)
				}
			}
		}
		if telem != nil && adv.SendsTelemetryEvent {
			if err := telem.Record(telemetry.CompletionEvent{Player: player, Advancement: id.String(), At: time.Now()}); err != nil {
				logger.Printf("telemetry: %v", err)
			}
		}
	}

	dispatcher := advancement.NewDispatcher(handle, logger)
	dispatcher.OnComplete(onComplete)

	cmds := commands.NewHandler(handle, wsrv.Lookup)
	cmds.OnComplete(onComplete)

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", wsrv.Handler())

	// Local-only operator endpoints.
	mux.HandleFunc("/admin/v1/command", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		line, err := io.ReadAll(io.LimitReader(r.Body, 4096))
		if err != nil {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		res := cmds.Run(string(line))
		rw.Header().Set("Content-Type", "application/json")
		if !res.OK {
			rw.WriteHeader(http.StatusUnprocessableEntity)
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"ok":    res.OK,
			"text":  res.Message.Text,
			"color": res.Message.Color,
		})
	})
	mux.HandleFunc("/admin/v1/trigger", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var req struct {
			Player  string          `json:"player"`
			Trigger string          `json:"trigger"`
			Context json.RawMessage `json:"context"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		trigger, err := resource.Parse(req.Trigger)
		if err != nil {
			http.Error(rw, "bad trigger id", http.StatusBadRequest)
			return
		}
		sess, ok := wsrv.Session(req.Player)
		if !ok {
			http.Error(rw, "player offline", http.StatusNotFound)
			return
		}
		progressed := dispatcher.Trigger(req.Player, sess.Tracker, trigger, req.Context)
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"progressed": progressed})
	})
	mux.HandleFunc("/admin/v1/reload", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		fresh, err := loadRegistry(loader, cfg.AdvancementDir, loadLogger)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		handle.Swap(fresh)
		pal.rebuild(fresh)
		for _, tr := range wsrv.Lookup("@a") {
			tr.MarkNeedsReset()
		}
		logger.Printf("reloaded %d advancements", fresh.Len())
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"loaded": fresh.Len()})
	})

	if envBool("OC_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (OC_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", cfg.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func loadRegistry(loader *advancement.Loader, dir string, logger *log.Logger) (*advancement.Registry, error) {
	loaded, err := loader.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	reg := advancement.NewRegistry(loaded, logger)
	reg.AssignPositions()
	return reg, nil
}

// palette assigns stable numeric ids to the icon items and reward recipes a
// registry references. Ids are dense per load; a reload reassigns them along
// with the definition reset. Reads race with reload, hence the lock.
type palette struct {
	mu      sync.RWMutex
	items   map[resource.ID]int32
	recipes map[resource.ID]int32
}

func buildPalette(reg *advancement.Registry) *palette {
	p := &palette{}
	p.rebuild(reg)
	return p
}

func (p *palette) rebuild(reg *advancement.Registry) {
	itemSet := make(map[resource.ID]struct{})
	recipeSet := make(map[resource.ID]struct{})
	reg.Each(func(_ resource.ID, adv *advancement.Advancement) {
		if adv.Display != nil {
			itemSet[adv.Display.Icon.Item] = struct{}{}
		}
		for _, r := range adv.Rewards.Recipes {
			recipeSet[r] = struct{}{}
		}
	})
	p.mu.Lock()
	p.items = number(itemSet)
	p.recipes = number(recipeSet)
	p.mu.Unlock()
}

func number(set map[resource.ID]struct{}) map[resource.ID]int32 {
	ids := make([]resource.ID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	out := make(map[resource.ID]int32, len(ids))
	for i, id := range ids {
		out[id] = int32(i)
	}
	return out
}

func (p *palette) item(id resource.ID) int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.items[id]
}

func (p *palette) recipe(id resource.ID) int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.recipes[id]
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(name string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
