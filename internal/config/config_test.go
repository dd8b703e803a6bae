package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	Convey("Given a default configuration", t, func() {
		cfg := New()

		Convey("It listens on :8083 with the in-memory backend", func() {
			So(cfg.Addr, ShouldEqual, ":8083")
			So(cfg.StoreBackend, ShouldEqual, BackendMemory)
			So(cfg.LogLevel, ShouldEqual, "info")
			So(cfg.StoreTimeoutMS, ShouldEqual, 2000)
			So(cfg.MaxTopLimit, ShouldEqual, 100)
		})

		Convey("It passes validation", func() {
			So(cfg.validate(), ShouldBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given configurations with invalid fields", t, func() {
		Convey("An empty addr is rejected", func() {
			cfg := New()
			cfg.Addr = ""
			So(errors.Is(cfg.validate(), ErrEmptyAddr), ShouldBeTrue)
		})

		Convey("An unknown backend is rejected", func() {
			cfg := New()
			cfg.StoreBackend = "cassandra"
			So(errors.Is(cfg.validate(), ErrUnknownBackend), ShouldBeTrue)
		})

		Convey("The postgres backend requires a DSN", func() {
			cfg := New()
			cfg.StoreBackend = BackendPostgres
			So(errors.Is(cfg.validate(), ErrMissingDSN), ShouldBeTrue)

			cfg.PostgresDSN = "postgres://localhost/leaderboard"
			So(cfg.validate(), ShouldBeNil)
		})

		Convey("The redis backend needs no DSN", func() {
			cfg := New()
			cfg.StoreBackend = BackendRedis
			So(cfg.validate(), ShouldBeNil)
		})

		Convey("A non-positive top limit is rejected", func() {
			cfg := New()
			cfg.MaxTopLimit = 0
			So(errors.Is(cfg.validate(), ErrInvalidTopLimit), ShouldBeTrue)
		})
	})
}

func TestLoadDefaults(t *testing.T) {
	Convey("Given no file and no environment overrides", t, func() {
		cfg, err := Load(context.Background())
		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":8083")
		So(cfg.StoreBackend, ShouldEqual, BackendMemory)
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LEADERBOARD_ADDR", ":9090")
	t.Setenv("LEADERBOARD_STORE_BACKEND", "redis")
	t.Setenv("LEADERBOARD_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("LEADERBOARD_MAX_TOP_LIMIT", "25")

	Convey("Given environment overrides", t, func() {
		cfg, err := Load(context.Background())
		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":9090")
		So(cfg.StoreBackend, ShouldEqual, BackendRedis)
		So(cfg.RedisAddr, ShouldEqual, "redis.internal:6379")
		So(cfg.MaxTopLimit, ShouldEqual, 25)
	})
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "addr: \":7070\"\nstore_backend: postgres\npostgres_dsn: postgres://localhost/leaderboard\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEADERBOARD_CONFIG", path)

	Convey("Given a YAML file pointed at by LEADERBOARD_CONFIG", t, func() {
		Convey("File values layer over defaults", func() {
			cfg, err := Load(context.Background())
			So(err, ShouldBeNil)
			So(cfg.Addr, ShouldEqual, ":7070")
			So(cfg.StoreBackend, ShouldEqual, BackendPostgres)
			So(cfg.LogLevel, ShouldEqual, "info")
		})
	})
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LEADERBOARD_CONFIG", path)
	t.Setenv("LEADERBOARD_ADDR", ":6060")

	Convey("Given a value set in both the file and the environment", t, func() {
		cfg, err := Load(context.Background())
		So(err, ShouldBeNil)
		So(cfg.Addr, ShouldEqual, ":6060")
	})
}

func TestLoadValidationFailure(t *testing.T) {
	t.Setenv("LEADERBOARD_STORE_BACKEND", "postgres")

	Convey("Given the postgres backend without a DSN", t, func() {
		_, err := Load(context.Background())
		So(errors.Is(err, ErrMissingDSN), ShouldBeTrue)
	})
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("LEADERBOARD_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	Convey("Given a config path that does not exist", t, func() {
		_, err := Load(context.Background())
		So(err, ShouldNotBeNil)
	})
}
