package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		FrontendBaseURL  string
		defaultFromEmail string

		PasswordResetTimeoutDelta time.Duration
		FunctionsKey              string // bearer credential of the join-code mailer function

		SendgridApiKey string
		RollbarToken   string

		Server    ServerConfig
		Database  DatabaseConfig
		Semesters SemesterConfig
		Storage   StorageConfig
		Redis     RedisConfig
		Kafka     KafkaConfig
		Outbox    OutboxConfig
	}

	ServerConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		ShutdownTimeout           time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	SemesterConfig struct {
		Min int
		Max int
	}

	StorageConfig struct {
		Endpoint        string
		Region          string
		Bucket          string
		AccessKeyID     string
		SecretAccessKey string
		PublicBaseURL   string
	}

	RedisConfig struct {
		Address  string
		Password string
		DB       int
	}

	KafkaConfig struct {
		Brokers         []string
		InvitationTopic string
	}

	OutboxConfig struct {
		Dispatcher   string // email, kafka or both
		PollInterval time.Duration
		BatchSize    int
		MaxAttempts  int
		// ClaimTimeout is how long a relay keeps the events it picked before another relay may take them.
		ClaimTimeout time.Duration
	}
)

func (c *Config) DefaultFromEmail() mail.Address {
	from, err := mail.ParseAddress(c.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.defaultFromEmail}
	}
	if from.Name == "" {
		from.Name = c.AppName
	}
	return *from
}

func (d DatabaseConfig) Address() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// NewConfig reads the app configuration from the environment.
// Variables are prefixed with the uppercased ENV value (DEV by default), e.g. DEV_DATABASE_HOST.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("testMode", env == "TEST")
	v.SetDefault("appName", "TrackIt")
	v.SetDefault("build", "develop")
	v.SetDefault("secretKey", "7fa+t$9l^vd=0xkq(nb%r!4zj2w*e8m1c&u5h3y_os6gpq")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "TrackIt <noreply@localhost>")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("functionsKey", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "trackit")
	v.SetDefault("database.user", "trackit")
	v.SetDefault("database.password", "trackit")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("semesters.min", 3)
	v.SetDefault("semesters.max", 8)

	v.SetDefault("storage.endpoint", "http://localhost:9000")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "submissions")
	v.SetDefault("storage.accessKeyID", "")
	v.SetDefault("storage.secretAccessKey", "")
	v.SetDefault("storage.publicBaseURL", "")

	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.invitationTopic", "group.invitations")

	v.SetDefault("outbox.dispatcher", "email")
	v.SetDefault("outbox.pollInterval", 5*time.Second)
	v.SetDefault("outbox.batchSize", 20)
	v.SetDefault("outbox.maxAttempts", 5)
	v.SetDefault("outbox.claimTimeout", time.Minute)

	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
			}
		} else if !os.IsNotExist(err) {
			log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
		}
	}
	v.AutomaticEnv()

	return &Config{
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           v.GetString("frontendBaseURL"),
		defaultFromEmail:          v.GetString("defaultFromEmail"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
		FunctionsKey:              v.GetString("functionsKey"),
		SendgridApiKey:            v.GetString("sendgridApiKey"),
		RollbarToken:              v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			Address:                   v.GetString("server.address"),
			DebugHost:                 v.GetString("server.debugHost"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Semesters: SemesterConfig{
			Min: v.GetInt("semesters.min"),
			Max: v.GetInt("semesters.max"),
		},
		Storage: StorageConfig{
			Endpoint:        v.GetString("storage.endpoint"),
			Region:          v.GetString("storage.region"),
			Bucket:          v.GetString("storage.bucket"),
			AccessKeyID:     v.GetString("storage.accessKeyID"),
			SecretAccessKey: v.GetString("storage.secretAccessKey"),
			PublicBaseURL:   v.GetString("storage.publicBaseURL"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(v.GetString("kafka.brokers")),
			InvitationTopic: v.GetString("kafka.invitationTopic"),
		},
		Outbox: OutboxConfig{
			Dispatcher:   v.GetString("outbox.dispatcher"),
			PollInterval: v.GetDuration("outbox.pollInterval"),
			BatchSize:    v.GetInt("outbox.batchSize"),
			MaxAttempts:  v.GetInt("outbox.maxAttempts"),
			ClaimTimeout: v.GetDuration("outbox.claimTimeout"),
		},
	}
}

// NewTestConfig returns a Config suitable for tests: no external collaborators, TestMode on.
func NewTestConfig() *Config {
	return &Config{
		AppName:                   "TrackIt",
		Env:                       "TEST",
		Build:                     "test",
		Debug:                     false,
		TestMode:                  true,
		SecretKey:                 "test-secret-key",
		FrontendBaseURL:           "http://localhost:3000",
		defaultFromEmail:          "TrackIt <noreply@localhost>",
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		FunctionsKey:              "test-functions-key",
		Server: ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
			ShutdownTimeout:           time.Second,
		},
		Semesters: SemesterConfig{Min: 3, Max: 8},
		Outbox: OutboxConfig{
			Dispatcher:   "email",
			PollInterval: 10 * time.Millisecond,
			BatchSize:    10,
			MaxAttempts:  3,
			ClaimTimeout: time.Minute,
		},
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
