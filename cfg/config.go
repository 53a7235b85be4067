package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"path"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// StoreBackend selects which store.ConfigStore implementation cmd/ncmd
// wires up.
type StoreBackend string

const (
	StoreBackendMem    StoreBackend = "mem"
	StoreBackendPebble StoreBackend = "pebble"
)

// CodecKind selects which ncconfig.Codec cmd/ncmd wires up.
type CodecKind string

const (
	CodecJSON       CodecKind = "json"
	CodecMsgpack    CodecKind = "msgpack"
	CodecCompressed CodecKind = "compressed"
)

// NCMConfiguration controls the ncm.Core and its surrounding tunables.
type NCMConfiguration struct {
	// IntermediaryShardStateTimeoutSeconds bounds how long a shard may
	// sit in an intermediary membership/storage state before the
	// tracker forces it forward (spec.md §4.3). Default 2h.
	IntermediaryShardStateTimeoutSeconds int `toml:"intermediary_shard_state_timeout_seconds"`

	// Server disables the consistency reporter on pure clients -- only
	// a node running as a full NCM server checks and reports
	// cross-instance consistency on each heartbeat tick.
	Server bool `toml:"server"`

	// Codec selects the wire codec used by the store and ChangeFeed.
	Codec CodecKind `toml:"codec"`

	// Roles this instance advertises; combined into a mode.OperationMode
	// via mode.ForNodeRoles. One of "client", "tooling", or a comma list
	// of node roles ("storage", "sequencer").
	Roles []string `toml:"roles"`

	HeartbeatIntervalSeconds int `toml:"heartbeat_interval_seconds"`
}

func (n NCMConfiguration) IntermediaryShardStateTimeout() time.Duration {
	return time.Duration(n.IntermediaryShardStateTimeoutSeconds) * time.Second
}

func (n NCMConfiguration) HeartbeatInterval() time.Duration {
	return time.Duration(n.HeartbeatIntervalSeconds) * time.Second
}

// ClusterConfiguration controls cluster membership and communication for
// the store's own transport (nats, pebble replication peers, etc).
type ClusterConfiguration struct {
	BindAddress      string   `toml:"bind_address"`
	AdvertiseAddress string   `toml:"advertise_address"`
	Port             int      `toml:"port"`
	SeedNodes        []string `toml:"seed_nodes"`
}

// StoreConfiguration selects and tunes the backing store.ConfigStore.
type StoreConfiguration struct {
	Backend StoreBackend `toml:"backend"`

	// PebbleDir is the on-disk directory pebblestore opens, relative to
	// DataDir if not absolute.
	PebbleDir string `toml:"pebble_dir"`

	// NATSURL, when non-empty, wires store/natsfeed as the push-based
	// store.ChangeFeed alongside the configured Backend.
	NATSURL     string `toml:"nats_url"`
	NATSSubject string `toml:"nats_subject"`

	// KafkaBrokers, when non-empty, wires store/kafkafeed as the
	// push-based store.ChangeFeed alongside the configured Backend --
	// an alternative to NATSURL for deployments that already run
	// Kafka. Only one of NATSURL/KafkaBrokers should be set.
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`
	KafkaGroupID string   `toml:"kafka_group_id"`
}

// WorkerConfiguration controls the fan-out worker pool.
type WorkerConfiguration struct {
	PoolSize int `toml:"pool_size"`
}

// LoggingConfiguration controls logging behavior.
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics.
type PrometheusConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// AdminConfiguration controls the chi-based status/members HTTP surface.
type AdminConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`

	// Secret, if non-empty, is the PSK admin clients must present via the
	// X-Ncm-Admin-Secret header or an Authorization: Bearer token. Empty
	// disables authentication -- local/dev use only.
	Secret string `toml:"secret"`
}

// Configuration is the main configuration structure.
type Configuration struct {
	NodeID  uint64 `toml:"node_id"`
	DataDir string `toml:"data_dir"`

	NCM        NCMConfiguration        `toml:"ncm"`
	Cluster    ClusterConfiguration    `toml:"cluster"`
	Store      StoreConfiguration      `toml:"store"`
	Worker     WorkerConfiguration     `toml:"worker"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin"`
}

// Command line flags.
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DataDirFlag    = flag.String("data-dir", "", "Data directory (overrides config)")
	NodeIDFlag     = flag.Uint64("node-id", 0, "Node ID (overrides config, 0=auto)")
	AdminPortFlag  = flag.Int("admin-port", 0, "Admin HTTP port (overrides config)")
)

// Config is the default configuration, overridden by Load.
var Config = &Configuration{
	NodeID:  0, // Auto-generate
	DataDir: "./ncm-data",

	NCM: NCMConfiguration{
		IntermediaryShardStateTimeoutSeconds: 2 * 60 * 60, // 2h
		Server:                   true,
		Codec:                    CodecJSON,
		Roles:                    []string{"storage", "sequencer"},
		HeartbeatIntervalSeconds: 30,
	},

	Cluster: ClusterConfiguration{
		BindAddress: "0.0.0.0",
		Port:        8080,
		SeedNodes:   []string{},
	},

	Store: StoreConfiguration{
		Backend:      StoreBackendMem,
		PebbleDir:    "nc-store",
		NATSSubject:  "ncm.config.changed",
		KafkaTopic:   "ncm.config.changed",
		KafkaGroupID: "ncm-changefeed",
	},

	Worker: WorkerConfiguration{
		PoolSize: 4,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: true,
		Address: "0.0.0.0",
		Port:    9090,
	},

	Admin: AdminConfiguration{
		Enabled: true,
		Address: "0.0.0.0",
		Port:    8500,
	},
}

// Load loads configuration from file and applies CLI overrides.
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DataDirFlag != "" {
		Config.DataDir = *DataDirFlag
	}
	if *NodeIDFlag != 0 {
		Config.NodeID = *NodeIDFlag
	}
	if *AdminPortFlag != 0 {
		Config.Admin.Port = *AdminPortFlag
	}

	if Config.NodeID == 0 {
		var err error
		Config.NodeID, err = generateNodeID()
		if err != nil {
			return fmt.Errorf("failed to generate node ID: %w", err)
		}
		log.Info().Uint64("node_id", Config.NodeID).Msg("Auto-generated node ID")
	}

	if err := os.MkdirAll(Config.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return nil
}

// generateNodeID creates a unique node ID based on machine ID.
func generateNodeID() (uint64, error) {
	id, err := machineid.ProtectedID("ncm")
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64(), nil
}

// Validate checks configuration for errors.
func Validate() error {
	if Config.Cluster.Port < 1 || Config.Cluster.Port > 65535 {
		return fmt.Errorf("invalid cluster port: %d", Config.Cluster.Port)
	}

	if Config.Cluster.AdvertiseAddress == "" {
		hostname, err := os.Hostname()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to get hostname, using localhost")
			hostname = "localhost"
		}
		Config.Cluster.AdvertiseAddress = fmt.Sprintf("%s:%d", hostname, Config.Cluster.Port)
		log.Info().
			Str("advertise_address", Config.Cluster.AdvertiseAddress).
			Msg("Auto-configured cluster advertise address")
	}

	if Config.NCM.IntermediaryShardStateTimeoutSeconds < 1 {
		return fmt.Errorf("ncm intermediary shard state timeout must be >= 1 second")
	}

	if len(Config.NCM.Roles) == 0 {
		return fmt.Errorf("ncm roles must name at least one of client/tooling/storage/sequencer")
	}

	if Config.NCM.HeartbeatIntervalSeconds < 1 {
		return fmt.Errorf("ncm heartbeat interval must be >= 1 second")
	}

	switch Config.NCM.Codec {
	case CodecJSON, CodecMsgpack, CodecCompressed:
	default:
		return fmt.Errorf("invalid ncm codec: %q", Config.NCM.Codec)
	}

	switch Config.Store.Backend {
	case StoreBackendMem, StoreBackendPebble:
	default:
		return fmt.Errorf("invalid store backend: %q", Config.Store.Backend)
	}

	if Config.Worker.PoolSize < 0 {
		return fmt.Errorf("worker pool size must be >= 0")
	}

	if Config.Admin.Enabled && (Config.Admin.Port < 1 || Config.Admin.Port > 65535) {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Prometheus.Enabled && (Config.Prometheus.Port < 1 || Config.Prometheus.Port > 65535) {
		return fmt.Errorf("invalid prometheus port: %d", Config.Prometheus.Port)
	}

	return nil
}

// PebbleStorePath returns the directory pebblestore should open, rooted
// under DataDir when Store.PebbleDir is relative.
func PebbleStorePath() string {
	if path.IsAbs(Config.Store.PebbleDir) {
		return Config.Store.PebbleDir
	}
	return path.Join(Config.DataDir, Config.Store.PebbleDir)
}
