// Command meshpool-demo drives a synthetic meshlet-packing workload against
// the allocator while serving its reports over HTTP/3 and watching a JSON
// config file for node-pool capacity changes (logged, not applied to the
// running allocators), all under one errgroup so a
// single failure or Ctrl-C tears the whole process down cleanly.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/offsetpool/meshpool/internal/allocator"
	"github.com/offsetpool/meshpool/internal/backingstore"
	allocerrors "github.com/offsetpool/meshpool/internal/errors"
	"github.com/offsetpool/meshpool/internal/meshlet"
	"github.com/offsetpool/meshpool/internal/telemetry"
	"github.com/offsetpool/meshpool/internal/watch"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:0", "HTTP/3 telemetry listen address")
	vertexCapacity := flag.Uint("vertex-capacity", 1<<20, "vertex buffer capacity in elements")
	indexCapacity := flag.Uint("index-capacity", 1<<22, "index buffer capacity in elements")
	capacityConfig := flag.String("capacity-config", "", "optional JSON file with a hot-reloadable maxAllocs")
	meshlets := flag.Int("meshlets", 200, "number of synthetic meshlets to pack per cycle")
	backingStorePath := flag.String("backing-store", "", "path to the mmap'd vertex buffer file (defaults to a temp file)")
	flag.Parse()

	storePath := *backingStorePath
	if storePath == "" {
		storePath = filepath.Join(os.TempDir(), "meshpool-demo-vertices.bin")
	}

	if err := run(*addr, uint32(*vertexCapacity), uint32(*indexCapacity), *capacityConfig, *meshlets, storePath); err != nil {
		log.Fatal(err)
	}
}

func run(addr string, vertexCapacity, indexCapacity uint32, capacityConfigPath string, meshletCount int, storePath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []allocator.Option{allocator.WithMaxAllocs(65536)}

	if capacityConfigPath != "" {
		cfg, err := watch.LoadCapacityConfig(capacityConfigPath)
		if err != nil {
			return fmt.Errorf("meshpool-demo: initial capacity config: %w", err)
		}

		opts = []allocator.Option{allocator.WithMaxAllocs(cfg.MaxAllocs)}
	}

	builder, err := meshlet.NewBuilder(vertexCapacity, indexCapacity, opts...)
	if err != nil {
		return fmt.Errorf("meshpool-demo: builder: %w", err)
	}

	store, err := backingstore.Open(backingstore.Options{Path: storePath, Size: vertexCapacity})
	if err != nil {
		return fmt.Errorf("meshpool-demo: backing store: %w", err)
	}

	defer store.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return serveTelemetry(gctx, addr, builder) })

	if capacityConfigPath != "" {
		g.Go(func() error { return watchCapacity(gctx, capacityConfigPath) })
	}

	g.Go(func() error { return runWorkload(gctx, builder, store, meshletCount) })

	return g.Wait()
}

func serveTelemetry(ctx context.Context, addr string, builder *meshlet.Builder) error {
	tlsCfg, err := telemetry.GenerateSelfSignedTLS([]string{"localhost", "127.0.0.1"}, time.Hour)
	if err != nil {
		return fmt.Errorf("meshpool-demo: %w", allocerrors.SystemFailure("self-signed TLS", err))
	}

	vertexAlloc, vertexMu := builder.VertexAllocator()
	indexAlloc, indexMu := builder.IndexAllocator()

	mux := http.NewServeMux()
	mux.Handle("/vertex/", http.StripPrefix("/vertex", telemetry.NewReportHandler(telemetry.NewLockedReportSource(vertexMu, vertexAlloc))))
	mux.Handle("/index/", http.StripPrefix("/index", telemetry.NewReportHandler(telemetry.NewLockedReportSource(indexMu, indexAlloc))))

	srv := telemetry.NewHTTP3Server(addr, tlsCfg, mux, telemetry.HTTP3Options{KeepAlivePeriod: 15 * time.Second})

	boundAddr, err := srv.Start()
	if err != nil {
		return fmt.Errorf("meshpool-demo: telemetry start: %w", err)
	}

	log.Printf("telemetry listening on https://%s (HTTP/3)", boundAddr)

	select {
	case <-ctx.Done():
		return srv.Stop()
	case err := <-srv.Error():
		return fmt.Errorf("meshpool-demo: telemetry serve: %w", err)
	}
}

func watchCapacity(ctx context.Context, path string) error {
	fw, err := watch.NewFSWatcher()
	if err != nil {
		return fmt.Errorf("meshpool-demo: capacity watcher: %w", err)
	}

	defer fw.Close()

	updates, err := watch.WatchCapacityConfig(ctx, fw, path)
	if err != nil {
		return fmt.Errorf("meshpool-demo: watch capacity config: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-updates:
			if !ok {
				return nil
			}
			// A live allocator's node pool cannot be resized without
			// invalidating outstanding handles; this demo only logs the
			// observed change. Reset keeps the maxAllocs an allocator was
			// built with, so a new value only takes effect in allocators
			// constructed afresh with WithMaxAllocs.
			log.Printf("capacity config changed: maxAllocs=%d (not applied to the running allocators)", cfg.MaxAllocs)
		}
	}
}

// runWorkload packs synthetic meshlets and, for each one, exercises the
// allocator's offsets against a real buffer: every vertex element is
// written as one byte (a stand-in for a real vertex's stride) at the
// allocator-assigned offset, then read back and checked, so a packing bug
// that corrupts offsets shows up as a mismatch here rather than only in the
// allocator's own bookkeeping.
func runWorkload(ctx context.Context, builder *meshlet.Builder, store *backingstore.Store, meshletCount int) error {
	rng := rand.New(rand.NewSource(1))

	var live []*meshlet.Meshlet

	for i := 0; i < meshletCount; i++ {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		vertexCount := uint32(32 + rng.Intn(96))
		triangleCount := uint32(16 + rng.Intn(48))

		m, err := builder.Add(vertexCount, triangleCount)
		if err != nil {
			log.Printf("meshlet %d: pack failed, buffers full: %v", i, err)

			break
		}

		payload := make([]byte, m.VertexCount)
		for j := range payload {
			payload[j] = byte(i)
		}

		if err := store.WriteAt(m.VertexOffset, payload); err != nil {
			builder.Release(m)

			return fmt.Errorf("meshpool-demo: meshlet %d: write vertex span: %w", i, err)
		}

		readBack := make([]byte, m.VertexCount)
		if err := store.ReadAt(m.VertexOffset, readBack); err != nil {
			builder.Release(m)

			return fmt.Errorf("meshpool-demo: meshlet %d: read vertex span: %w", i, err)
		}

		for j := range payload {
			if readBack[j] != payload[j] {
				builder.Release(m)

				return fmt.Errorf("meshpool-demo: meshlet %d: vertex span readback mismatch at byte %d", i, j)
			}
		}

		live = append(live, m)
	}

	log.Printf("packed %d meshlets, backing store round-trip verified", len(live))

	for _, m := range live {
		builder.Release(m)
	}

	return nil
}
