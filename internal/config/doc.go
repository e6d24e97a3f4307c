// Package config provides configuration management for dfolks.
// It loads settings from defaults, an optional YAML file and environment
// variables, and resolves the directories pipelines read from and write to.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables that are explicitly set (highest priority)
//	2. The YAML configuration file (dfolks.yaml or configs/dfolks.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern DFOLKS_<SECTION>_<FIELD>:
//
//	DFOLKS_LOGGING_LEVEL=debug
//	DFOLKS_STORAGE_HIVE_ROOT=/data/hive
//	DFOLKS_REGISTRY_ALLOW_OVERWRITE=true
//	DFOLKS_TELEMETRY_METRICS_FILE=/var/lib/node_exporter/dfolks.prom
//
// # Data Hive
//
// Outputs addressed by a logical database name are written below the hive
// root as <hive_root>/<db>/<path>. When no hive root is configured it
// defaults to $HOME/DataHive.
package config
