// Command ncmd is the NCM node binary: it wires a store.ConfigStore, a
// worker.Pool fan-out, Prometheus metrics, and the admin HTTP surface
// around an ncm.Core, the way marmot.go wires its own gRPC/MySQL/gossip
// stack around a DatabaseManager.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/ncmproj/ncm/admin"
	"github.com/ncmproj/ncm/cfg"
	"github.com/ncmproj/ncm/maintenance"
	"github.com/ncmproj/ncm/mode"
	"github.com/ncmproj/ncm/ncconfig"
	"github.com/ncmproj/ncm/ncm"
	"github.com/ncmproj/ncm/ncm/deps"
	"github.com/ncmproj/ncm/store"
	"github.com/ncmproj/ncm/store/kafkafeed"
	"github.com/ncmproj/ncm/store/memstore"
	"github.com/ncmproj/ncm/store/natsfeed"
	"github.com/ncmproj/ncm/store/pebblestore"
	"github.com/ncmproj/ncm/telemetry"
	"github.com/ncmproj/ncm/tracker"
	"github.com/ncmproj/ncm/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	if err := cfg.Load(*cfg.ConfigPathFlag); err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stdout
	}
	gLog := zerolog.New(writer).With().Timestamp().Uint64("node_id", cfg.Config.NodeID).Logger()
	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	log.Info().Msg("NCM - Nodes Configuration Manager")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	configStore, closeStore, err := openStore()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open configuration store")
		return
	}
	defer closeStore()

	pool := worker.New()
	registerDemoWorkers(pool, cfg.Config.Worker.PoolSize)

	codec := buildCodec(cfg.Config.NCM.Codec)

	roles := parseRoles(cfg.Config.NCM.Roles)
	m := buildMode(roles)

	if roles.Has(mode.SequencerRole) {
		runSequencerWorkflow(cfg.Config.NodeID)
	}

	d := deps.NewDefault(configStore, pool, cfg.Config.NCM.HeartbeatInterval(), codec)

	core := ncm.New(m, d, codec, ncm.Options{
		IntermediaryShardStateTimeout: cfg.Config.NCM.IntermediaryShardStateTimeout(),
		IsServer:                      cfg.Config.NCM.Server,
		ShardStates:                   maintenanceShardStates,
	})
	defer core.Shutdown()

	if !core.Init(context.Background(), ncconfig.Empty, true) {
		log.Warn().Msg("NCM did not initialize within the boundary timeout; continuing to observe the store in the background")
	}

	if cfg.Config.Admin.Enabled {
		startAdmin(core, codec, pool)
	}
	if cfg.Config.Prometheus.Enabled {
		startMetrics()
	}

	log.Info().
		Uint64("node_id", cfg.Config.NodeID).
		Str("mode", core.Mode().String()).
		Str("data_dir", cfg.Config.DataDir).
		Msg("NCM node is operational")

	select {}
}

// openStore builds the configured store.ConfigStore, optionally wrapped
// in store/natsfeed's or store/kafkafeed's push-based ChangeFeed.
// KafkaBrokers takes precedence if both are configured.
func openStore() (store.ConfigStore, func(), error) {
	var base store.ConfigStore
	var closeBase func()

	switch cfg.Config.Store.Backend {
	case cfg.StoreBackendPebble:
		s, err := pebblestore.Open(cfg.PebbleStorePath())
		if err != nil {
			return nil, nil, fmt.Errorf("opening pebble store: %w", err)
		}
		base, closeBase = s, func() { _ = s.Close() }
	default:
		base, closeBase = memstore.New(), func() {}
	}

	if len(cfg.Config.Store.KafkaBrokers) > 0 {
		feed, err := kafkafeed.Connect(kafkafeed.Config{
			Brokers: cfg.Config.Store.KafkaBrokers,
			Topic:   cfg.Config.Store.KafkaTopic,
			GroupID: cfg.Config.Store.KafkaGroupID,
		}, base)
		if err != nil {
			log.Warn().Err(err).Msg("ncm: kafka ChangeFeed unavailable, falling back to heartbeat polling only")
			return base, closeBase, nil
		}
		return feed, func() { feed.Close(); closeBase() }, nil
	}

	if cfg.Config.Store.NATSURL == "" {
		return base, closeBase, nil
	}

	feed, err := natsfeed.Connect(cfg.Config.Store.NATSURL, cfg.Config.Store.NATSSubject, base)
	if err != nil {
		log.Warn().Err(err).Msg("ncm: nats ChangeFeed unavailable, falling back to heartbeat polling only")
		return base, closeBase, nil
	}
	return feed, func() { feed.Close(); closeBase() }, nil
}

func buildCodec(kind cfg.CodecKind) ncconfig.Codec {
	switch kind {
	case cfg.CodecMsgpack:
		return ncconfig.MsgpackCodec{}
	case cfg.CodecCompressed:
		return ncconfig.CompressedCodec{Inner: ncconfig.JSONCodec{}}
	default:
		return ncconfig.JSONCodec{}
	}
}

func parseRoles(names []string) mode.RoleSet {
	var roles []mode.Role
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "storage":
			roles = append(roles, mode.StorageRole)
		case "sequencer":
			roles = append(roles, mode.SequencerRole)
		}
	}
	return mode.NewRoleSet(roles...)
}

// runSequencerWorkflow performs the one-shot enable-sequencing transition
// (spec.md §4.7) at startup for a node configured with the sequencer
// role; the NCM core itself never invokes this, since §9 Open Question
// (a) resolves SequencerWorkflow to a plain value the caller owns
// independently of the publication pipeline.
func runSequencerWorkflow(nodeID uint64) {
	w := maintenance.NewSequencerWorkflow(uint32(nodeID))
	w.TargetState = maintenance.SequencingEnabled
	status, err := w.Run(context.Background(), true)
	if err != nil {
		log.Warn().Err(err).Msg("ncm: sequencer workflow failed to enable sequencing")
		return
	}
	log.Info().Stringer("status", status).Msg("ncm: sequencer workflow completed")
}

func buildMode(roles mode.RoleSet) mode.OperationMode {
	for _, name := range cfg.Config.NCM.Roles {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "client":
			return mode.ForClient()
		case "tooling":
			return mode.ForTooling()
		}
	}
	return mode.ForNodeRoles(roles)
}

// maintenanceShardStates is the ShardStatesFunc wired into the tracker;
// the supplemented shard-membership view lives behind the payload the
// store hands back, so this stays a stub returning no intermediary
// shards until a concrete membership payload schema is adopted.
func maintenanceShardStates(ncconfig.NC) map[tracker.ShardID]tracker.IntermediaryState {
	return nil
}

// registerDemoWorkers simulates n downstream consumers (storage nodes,
// sequencers) acknowledging each published configuration, so a freshly
// started single-node cluster still exercises the fan-out collective
// barrier end to end.
func registerDemoWorkers(pool *worker.Pool, n int) {
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("demo-worker-%d", i)
		pool.RegisterWorker(name, func(nc ncconfig.NC) {
			log.Debug().Str("worker", name).Stringer("version", nc.Version).Msg("ncm: worker observed published config")
		})
	}
}

func startAdmin(core *ncm.Core, codec ncconfig.Codec, pool *worker.Pool) {
	h := admin.NewHandlers(cfg.Config.NodeID, core, codec, pool)
	mux := http.NewServeMux()
	admin.RegisterRoutes(mux, h, cfg.Config.Admin.Secret)

	addr := fmt.Sprintf("%s:%d", cfg.Config.Admin.Address, cfg.Config.Admin.Port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("ncm: admin HTTP server exited")
		}
	}()
	log.Info().Str("addr", addr).Msg("ncm: admin server listening")
}

func startMetrics() {
	mux := http.NewServeMux()
	if handler := telemetry.GetMetricsHandler(); handler != nil {
		mux.Handle("/metrics", handler)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Config.Prometheus.Address, cfg.Config.Prometheus.Port)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error().Err(err).Msg("ncm: metrics HTTP server exited")
		}
	}()
	log.Info().Str("addr", addr).Msg("ncm: metrics server listening")
}
