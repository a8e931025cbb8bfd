package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fakhrymubarak/weatherlink-sensor/internal/model"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var once sync.Once
var logger *zap.SugaredLogger
var loggerOnce sync.Once

// isTestRun returns true if the current process is a Go test binary.
func isTestRun() bool {
	return flag.Lookup("test.v") != nil || filepath.Ext(os.Args[0]) == ".test"
}

func initConfig() {
	once.Do(func() {
		_ = godotenv.Load()

		root, err := getProjectRoot()
		if err != nil {
			GetLogger().Errorw("Error finding project root", "error", err)
		}
		viper.SetConfigType("yaml")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()

		viper.SetConfigName("config")
		viper.AddConfigPath(root)
		if err = viper.ReadInConfig(); err != nil {
			GetLogger().Errorw("Error reading config file", "error", err)
		}

		if isTestRun() {
			viper.SetConfigName("config_test")
			viper.AddConfigPath(root)
			if err = viper.MergeInConfig(); err != nil {
				GetLogger().Errorw("Error merging test config file", "error", err)
			}
		}
	})
}

func getProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

// GetAccessoryConfig builds the accessory configuration. A missing username
// yields a *ConfigError.
func GetAccessoryConfig() (model.AccessoryConfig, error) {
	initConfig()
	return AccessoryConfigFrom(
		viper.GetString("accessory.name"),
		viper.GetString("accessory.username"),
		viper.GetString("accessory.scale"),
		viper.GetInt("accessory.polling_interval"),
	)
}

// AccessoryConfigFrom applies the accessory defaults to raw values.
// pollingMinutes <= 0 disables polling.
func AccessoryConfigFrom(name, username, scale string, pollingMinutes int) (model.AccessoryConfig, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return model.AccessoryConfig{}, &ConfigError{Field: "accessory.username"}
	}
	if name == "" {
		name = username
	}
	var interval time.Duration
	if pollingMinutes > 0 {
		interval = time.Duration(pollingMinutes) * time.Minute
	}
	return model.AccessoryConfig{
		Name:            name,
		SourceID:        username,
		Scale:           model.ParseScale(scale),
		PollingInterval: interval,
	}, nil
}

func GetWeatherLinkBaseURL() string {
	initConfig()
	base := viper.GetString("weatherlink.base_url")
	if base == "" {
		base = "http://www.weatherlink.com/user"
	}
	return strings.TrimRight(base, "/")
}

// GetFetchTimeout returns the timeout for one station page request.
// Defaults to 10s if not set or invalid.
func GetFetchTimeout() time.Duration {
	initConfig()
	return durationOr("weatherlink.fetch_timeout", 10*time.Second)
}

// RedisConfig holds the optional Redis sink settings.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

func GetRedisConfig() RedisConfig {
	initConfig()
	prefix := viper.GetString("redis.key_prefix")
	if prefix == "" {
		prefix = "weatherlink"
	}
	return RedisConfig{
		Enabled:   viper.GetBool("redis.enabled"),
		Addr:      GetRedisAddr(),
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        viper.GetInt("redis.db"),
		KeyPrefix: prefix,
	}
}

func GetRedisAddr() string {
	initConfig()
	return viper.GetString("redis.addr")
}

// MQTTConfig holds the optional MQTT sink settings.
type MQTTConfig struct {
	Enabled     bool
	Broker      string
	Port        int
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

func GetMQTTConfig() MQTTConfig {
	initConfig()
	port := viper.GetInt("mqtt.port")
	if port == 0 {
		port = 1883
	}
	broker := viper.GetString("mqtt.broker")
	if broker == "" {
		broker = "localhost"
	}
	prefix := viper.GetString("mqtt.topic_prefix")
	if prefix == "" {
		prefix = "weatherlink"
	}
	return MQTTConfig{
		Enabled:     viper.GetBool("mqtt.enabled"),
		Broker:      broker,
		Port:        port,
		ClientID:    viper.GetString("mqtt.client_id"),
		Username:    os.Getenv("MQTT_USERNAME"),
		Password:    os.Getenv("MQTT_PASSWORD"),
		TopicPrefix: prefix,
	}
}

func GetServerPort() string {
	initConfig()
	serverPort := viper.GetString("server.port")
	if serverPort == "" {
		serverPort = "8080"
	}
	return serverPort
}

// GetServerTimeout returns one of the server.* timeouts, or def when unset.
func GetServerTimeout(key string, def time.Duration) time.Duration {
	initConfig()
	return durationOr("server."+key, def)
}

// ReloadConfigForTest resets the config singleton and reloads Viper config. Use only in tests.
func ReloadConfigForTest() {
	once = sync.Once{}
	initConfig()
}

func GetLogger() *zap.SugaredLogger {
	loggerOnce.Do(func() {
		l, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		logger = l.Sugar()
	})
	return logger
}

// GetRateLimiterCleanupTimeout returns the rate limiter cleanup timeout as a time.Duration.
// Defaults to 3m if not set or invalid.
func GetRateLimiterCleanupTimeout() time.Duration {
	initConfig()
	return durationOr("rate_limiter.cleanup_timeout", 3*time.Minute)
}

// GetGlobalRateLimiterConfig returns requests per minute and burst for the per-client limiter.
func GetGlobalRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.global.rate")
	if rate == 0 {
		rate = 30
	}
	burst = viper.GetInt("rate_limiter.global.burst")
	if burst == 0 {
		burst = 10
	}
	return
}

// GetPathRateLimiterConfig returns requests per minute and burst for the per-client, per-path limiter.
func GetPathRateLimiterConfig() (rate float64, burst int) {
	initConfig()
	rate = viper.GetFloat64("rate_limiter.path.rate")
	if rate == 0 {
		rate = 12
	}
	burst = viper.GetInt("rate_limiter.path.burst")
	if burst == 0 {
		burst = 4
	}
	return
}

func durationOr(key string, def time.Duration) time.Duration {
	durStr := viper.GetString(key)
	if durStr == "" {
		return def
	}
	dur, err := time.ParseDuration(durStr)
	if err != nil || dur <= 0 {
		return def
	}
	return dur
}
