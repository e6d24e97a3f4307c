package config

import "time"

// Application constants
const (
	AppName    = "dfolks"
	AppVersion = "0.3.0"

	// External parameter references
	FilePrefix = "file://"

	// Remote sources
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultCallInterval = 1 * time.Second

	// Cache file naming for data preparation outputs
	CacheFilePrefix      = "cache_dataprep_"
	CacheTimestampFormat = "20060102150405"
)
