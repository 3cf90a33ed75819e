package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/zonegen/internal/config"
	"github.com/annel0/zonegen/internal/logging"
	"github.com/annel0/zonegen/internal/observability"
	"github.com/annel0/zonegen/internal/raycast"
	"github.com/annel0/zonegen/internal/storage"
	"github.com/annel0/zonegen/internal/terrain"
	"github.com/annel0/zonegen/internal/vec"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultRayDistance = 1024

func main() {
	os.Exit(run())
}

// run выполняет команду и возвращает код выхода; отложенные закрытия
// срабатывают до os.Exit
func run() int {
	var (
		command    = flag.String("cmd", "generate", "Command: generate, ray, info")
		configPath = flag.String("config", "", "Path to YAML config (default: $ZONEGEN_CONFIG or built-in)")
		dataPath   = flag.String("data", "", "Storage directory (default: storage.path from config)")
		seed       = flag.Int64("seed", 0, "Seed override (0 = from config)")
		metrics    = flag.String("metrics", "", "Prometheus listen address, e.g. :9100")
		otlp       = flag.String("otlp", "", "OTLP HTTP endpoint host:port (empty = tracing off)")
		rayArg     = flag.String("ray", "", "Ray in block units: ox,oy,oz:dx,dy,dz")
		maxDist    = flag.Float64("dist", defaultRayDistance, "Max ray distance")
		layoutArg  = flag.String("layout", "", "Layout id for info")
		logLevel   = flag.String("log-level", "", "Console log level for components: TRACE, DEBUG, INFO, WARN, ERROR")
	)
	flag.Parse()

	if err := logging.InitDefaultLogger("zonegen"); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Не удалось инициализировать логгер: %v\n", err)
		return 1
	}
	defer logging.CloseDefaultLogger()
	defer func() {
		if err := logging.GetLoggerManager().CloseAll(); err != nil {
			fmt.Fprintf(os.Stderr, "Ошибка закрытия логгеров: %v\n", err)
		}
	}()
	if *logLevel != "" {
		if err := setComponentLevel(*logLevel); err != nil {
			logging.Error("❌ %v", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка загрузки конфигурации: %v", err)
		return 1
	}
	if *seed != 0 {
		cfg.Seed = *seed
	}
	if *dataPath != "" {
		cfg.Storage.Path = *dataPath
	}
	if *metrics != "" {
		cfg.Metrics.Addr = *metrics
	}

	if *otlp != "" {
		shutdown, err := observability.InitTelemetry(ctx, "zonegen", *otlp)
		if err != nil {
			logging.Warn("Трассировка отключена: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logging.Warn("Ошибка остановки трассировки: %v", err)
				}
			}()
		}
	}
	if cfg.Metrics.Addr != "" {
		srv := serveMetrics(cfg.Metrics.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	switch *command {
	case "generate":
		err = runGenerate(ctx, cfg)
	case "ray":
		err = runRay(ctx, cfg, *rayArg, *maxDist)
	case "info":
		err = runInfo(cfg, *layoutArg)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: generate, ray, info")
		return 1
	}
	if err != nil {
		logging.Error("❌ Команда %s завершилась ошибкой: %v", *command, err)
		return 1
	}
	return 0
}

// setComponentLevel задаёт консольный уровень логгерам компонентов
func setComponentLevel(s string) error {
	lvl, err := logging.ParseLevel(s)
	if err != nil {
		return err
	}
	lm := logging.GetLoggerManager()
	for _, component := range []string{"generator", "storage"} {
		lm.MustGetLogger(component)
		if err := lm.SetLogLevel(component, lvl, logging.DEBUG); err != nil {
			return err
		}
	}
	logging.Debug("Уровень %s для компонентов %v", lvl, lm.ListComponents())
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.Info("📊 Метрики Prometheus: http://%s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Сервер метрик остановлен: %v", err)
		}
	}()
	return srv
}

func newGenerator(ctx context.Context, cfg *config.Config) (*terrain.Generator, error) {
	g, err := terrain.NewGenerator(cfg, terrain.WithRegisterer(prometheus.DefaultRegisterer))
	if err != nil {
		return nil, err
	}
	if _, err := g.Generate(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// runGenerate строит землю и сохраняет сетку и снимки всех чанков
func runGenerate(ctx context.Context, cfg *config.Config) error {
	g, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	store, err := storage.NewChunkStore(cfg.Storage.Path, cfg.Storage.CompressionLevel)
	if err != nil {
		return err
	}
	defer store.Close()

	id := g.LayoutID()
	if err := store.SaveMesh(id, g.Layout().Mesh); err != nil {
		return err
	}

	land := g.Layout().LandChunks
	saved := 0
	for z := land.Min.Y; z < land.Max.Y; z++ {
		for x := land.Min.X; x < land.Max.X; x++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			snap, err := g.ChunkSnapshot(vec.Vec2{X: x, Y: z})
			if err != nil {
				return err
			}
			if err := store.SaveChunk(id, snap); err != nil {
				return err
			}
			saved++
		}
	}

	fmt.Printf("✅ Layout %s: %d zones, %d chunks saved to %s\n", id, len(g.Layout().Zones), saved, store.Path())
	return nil
}

// runRay строит землю в памяти и пускает луч по базовой карте
func runRay(ctx context.Context, cfg *config.Config, arg string, maxDist float64) error {
	ray, err := parseRay(arg)
	if err != nil {
		return err
	}
	g, err := newGenerator(ctx, cfg)
	if err != nil {
		return err
	}

	hit, ok := raycast.Cast(g.Base(), ray, maxDist)
	if !ok {
		fmt.Println("∅ No hit")
		return nil
	}
	fmt.Printf("🎯 Hit block %v at (%.3f, %.3f, %.3f), distance %.3f, layer %s\n",
		hit.Block, hit.Point.X(), hit.Point.Y(), hit.Point.Z(), hit.Distance, hit.Layer)
	return nil
}

// runInfo выводит сохранённые раскладки или сводку по одной из них
func runInfo(cfg *config.Config, layoutArg string) error {
	store, err := storage.NewChunkStore(cfg.Storage.Path, cfg.Storage.CompressionLevel)
	if err != nil {
		return err
	}
	defer store.Close()

	if layoutArg == "" {
		ids, err := store.ListLayouts()
		if err != nil {
			return err
		}
		fmt.Printf("📦 %d layouts in %s\n", len(ids), store.Path())
		for _, id := range ids {
			chunks, err := store.ListChunks(id)
			if err != nil {
				return err
			}
			fmt.Printf("  %s  %d chunks\n", id, len(chunks))
		}
		return nil
	}

	id, err := uuid.Parse(layoutArg)
	if err != nil {
		return fmt.Errorf("некорректный id раскладки: %w", err)
	}
	mesh, err := store.LoadMesh(id)
	if err != nil {
		return err
	}
	closed := 0
	for i := range mesh.Cells {
		if mesh.Cells[i].Closed {
			closed++
		}
	}
	fmt.Printf("🗺  Layout %s\n", id)
	fmt.Printf("  bounds:   %v\n", mesh.Bounds)
	fmt.Printf("  cells:    %d (%d closed)\n", len(mesh.Cells), closed)
	fmt.Printf("  vertices: %d, edges: %d\n", len(mesh.Vertices), len(mesh.Edges))
	return nil
}
