// api/config/config.go
package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Configuration stores all the configurations
type Configuration struct {
	Server        ServerConfiguration
	Upstream      UpstreamConfiguration
	Cache         CacheConfiguration
	Redis         RedisConfiguration
	Elasticsearch ElasticsearchConfiguration
}

// ServerConfiguration stores the port and other web server settings
type ServerConfiguration struct {
	Port string
}

// UpstreamConfiguration stores settings for the Azure management backend
type UpstreamConfiguration struct {
	Backend     string
	Endpoint    string
	FixturesDir string
	Timeout     time.Duration
}

// CacheConfiguration stores TTL settings for cached resources
type CacheConfiguration struct {
	DefaultTTL time.Duration
	TTL        map[string]time.Duration
}

// RedisConfiguration stores data for Redis connection (rate limiter state)
type RedisConfiguration struct {
	Addr string
}

// ElasticsearchConfiguration stores data for Elasticsearch connection
type ElasticsearchConfiguration struct {
	URL string
}

var config *Configuration

func InitConfig() error {
	viper.AddConfigPath("config") // path to look for the config file in
	viper.SetConfigName("config") // name of the config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name

	viper.AutomaticEnv() // read in environment variables that match

	// Set default configurations
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("upstream.backend", "live")
	viper.SetDefault("upstream.endpoint", "https://management.azure.com")
	viper.SetDefault("upstream.fixturesDir", "./test_harnesses")
	viper.SetDefault("upstream.timeout", "10s")
	viper.SetDefault("upstream.token", "")
	viper.SetDefault("upstream.retry.maxAttempts", 3)
	viper.SetDefault("upstream.retry.backoff", "500ms")
	viper.SetDefault("cache.defaultTTL", "1h")
	viper.SetDefault("cache.ttl.virtualMachines", "5m")
	viper.SetDefault("cache.ttl.virtualMachine", "5m")
	viper.SetDefault("cache.ttl.resourceGroups", "30m")
	viper.SetDefault("cache.ttl.subscriptions", "1h")
	viper.SetDefault("ratelimit.limit", 100)
	viper.SetDefault("ratelimit.window", "1m")
	viper.SetDefault("log.dir", "logging")

	// Attempt to read the config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found. Using default settings and environment variables.")
		} else {
			return err
		}
	}

	// Unmarshal the configuration into the Configuration struct
	err := viper.Unmarshal(&config)
	if err != nil {
		return err
	}

	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *Configuration {
	return config
}

// GetString retrieves a string value from the configuration
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt retrieves an integer value from the configuration
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool retrieves a boolean value from the configuration
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration retrieves a duration value from the configuration
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// CacheTTLs returns the per-resource-kind TTL table. Kinds without an
// explicit entry fall back to cache.defaultTTL.
func CacheTTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration)
	for kind := range viper.GetStringMapString("cache.ttl") {
		ttls[kind] = viper.GetDuration("cache.ttl." + kind)
	}
	return ttls
}
