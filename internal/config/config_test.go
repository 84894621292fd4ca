package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
}

func (s *ConfigSuite) write(body string) string {
	p := filepath.Join(s.dir, "config.yaml")
	s.Require().NoError(os.WriteFile(p, []byte(body), 0o600))
	return p
}

func (s *ConfigSuite) TestDefault() {
	cfg := Default()
	s.Equal(8080, cfg.Server.Port)
	s.Equal("sqlite", cfg.Database.Driver)
	s.Equal("sql", cfg.Cache.Backend)
	s.Equal(7*24*time.Hour, cfg.Auth.SessionTTL)
	s.Zero(cfg.Cache.TTL)
	s.Error(cfg.Validate(), "secrets have no defaults")
}

func (s *ConfigSuite) TestLoadExpandsEnv() {
	s.T().Setenv("LC_JWT_SECRET", "s3cret")
	s.T().Setenv("LC_FED_KEY", "fed")
	s.T().Setenv("LC_DB_PASSWORD", "pw")
	p := s.write(`
server:
  port: 9090
database:
  driver: mysql
  host: db
  user: app
  password: ${LC_DB_PASSWORD}
  name: learncode
auth:
  jwtSecret: ${LC_JWT_SECRET}
  federationKey: $LC_FED_KEY
cache:
  ttl: 24h
`)
	cfg, err := Load(p)
	s.Require().NoError(err)
	s.Equal(9090, cfg.Server.Port)
	s.Equal("s3cret", cfg.Auth.JWTSecret)
	s.Equal("fed", cfg.Auth.FederationKey)
	s.Equal(24*time.Hour, cfg.Cache.TTL)
	// unset keys keep their defaults
	s.Equal("sql", cfg.Cache.Backend)
	s.Equal(3306, cfg.Database.Port)
	s.Contains(cfg.MySQLDSN(), "app:pw@tcp(db:3306)/learncode")
	s.Contains(cfg.MySQLDSN(), "clientFoundRows=true")
}

func (s *ConfigSuite) TestLoadMissingFile() {
	_, err := Load(filepath.Join(s.dir, "nope.yaml"))
	s.Error(err, "defaults alone do not validate")
}

func (s *ConfigSuite) TestLoadRejectsBadYAML() {
	_, err := Load(s.write("server: [unclosed"))
	s.Error(err)
}

func (s *ConfigSuite) TestValidate() {
	cfg := Default()
	cfg.Auth.JWTSecret = "x"
	cfg.Auth.FederationKey = "y"
	s.NoError(cfg.Validate())

	cfg.Database.Driver = "oracle"
	s.ErrorContains(cfg.Validate(), "database.driver")

	cfg = Default()
	cfg.Auth.JWTSecret = "x"
	cfg.Auth.FederationKey = "y"
	cfg.Cache.Backend = "memcached"
	s.ErrorContains(cfg.Validate(), "cache.backend")

	cfg.Cache.Backend = "redis"
	cfg.Minio.Enabled = true
	s.ErrorContains(cfg.Validate(), "minio")
}

func (s *ConfigSuite) TestPostgresDSN() {
	cfg := Default()
	cfg.Database.Host = "pg"
	cfg.Database.Port = 5432
	cfg.Database.User = "u"
	cfg.Database.Password = "p"
	cfg.Database.Name = "n"
	s.Equal("host=pg port=5432 user=u password=p dbname=n sslmode=disable", cfg.PostgresDSN())
}
