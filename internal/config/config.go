// Package config loads the coordinator/agent/agency configuration surface
// (§6) from config.toml via spf13/viper, the teacher's configuration
// library. Unknown sections and keys are ignored for forward-compatibility.
package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Coordinator holds [coordinator] settings.
type Coordinator struct {
	MaxAgents    int           `mapstructure:"max_agents"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Executor     string        `mapstructure:"executor"`
	Model        string        `mapstructure:"model"`
}

// Agent holds [agent] settings.
type Agent struct {
	Executor         string        `mapstructure:"executor"`
	Model            string        `mapstructure:"model"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`
	KillGracePeriod  time.Duration `mapstructure:"kill_grace_period"`
}

// Agency holds [agency] settings.
type Agency struct {
	AutoEvaluate bool `mapstructure:"auto_evaluate"`
	AutoAssign   bool `mapstructure:"auto_assign"`
}

// Config is the full effective configuration.
type Config struct {
	Coordinator Coordinator `mapstructure:"coordinator"`
	Agent       Agent       `mapstructure:"agent"`
	Agency      Agency      `mapstructure:"agency"`
}

// Defaults returns the documented default configuration (§6).
func Defaults() Config {
	return Config{
		Coordinator: Coordinator{
			MaxAgents:    4,
			PollInterval: 60 * time.Second,
			Executor:     "claude",
			Model:        "",
		},
		Agent: Agent{
			Executor:         "claude",
			Model:            "",
			HeartbeatTimeout: 5 * time.Minute,
			KillGracePeriod:  5 * time.Second,
		},
		Agency: Agency{
			AutoEvaluate: false,
			AutoAssign:   false,
		},
	}
}

// Load reads config.toml at path, layering it over Defaults(). A missing
// file is not an error; it simply yields the defaults. poll_interval and
// heartbeat_timeout are read as integer seconds/minutes respectively per
// the documented units in §6, then converted to time.Duration.
func Load(path string) (Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return Config{}, err
	}
	return decode(v)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	d := Defaults()
	v.SetDefault("coordinator.max_agents", d.Coordinator.MaxAgents)
	v.SetDefault("coordinator.poll_interval", int(d.Coordinator.PollInterval.Seconds()))
	v.SetDefault("coordinator.executor", d.Coordinator.Executor)
	v.SetDefault("coordinator.model", d.Coordinator.Model)
	v.SetDefault("agent.executor", d.Agent.Executor)
	v.SetDefault("agent.model", d.Agent.Model)
	v.SetDefault("agent.heartbeat_timeout", int(d.Agent.HeartbeatTimeout.Minutes()))
	v.SetDefault("agent.kill_grace_period", int(d.Agent.KillGracePeriod.Seconds()))
	v.SetDefault("agency.auto_evaluate", d.Agency.AutoEvaluate)
	v.SetDefault("agency.auto_assign", d.Agency.AutoAssign)
	return v
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	c.Coordinator.MaxAgents = v.GetInt("coordinator.max_agents")
	c.Coordinator.PollInterval = time.Duration(v.GetInt("coordinator.poll_interval")) * time.Second
	c.Coordinator.Executor = v.GetString("coordinator.executor")
	c.Coordinator.Model = v.GetString("coordinator.model")
	c.Agent.Executor = v.GetString("agent.executor")
	c.Agent.Model = v.GetString("agent.model")
	c.Agent.HeartbeatTimeout = time.Duration(v.GetInt("agent.heartbeat_timeout")) * time.Minute
	c.Agent.KillGracePeriod = time.Duration(v.GetInt("agent.kill_grace_period")) * time.Second
	c.Agency.AutoEvaluate = v.GetBool("agency.auto_evaluate")
	c.Agency.AutoAssign = v.GetBool("agency.auto_assign")
	return c, nil
}

// Reloadable wraps a path for repeated Reload calls, as issued by the
// daemon's SIGHUP handler and the IPC Reload request (§4.7).
type Reloadable struct {
	path string
}

// NewReloadable binds a Reloadable to a config.toml path.
func NewReloadable(path string) *Reloadable {
	return &Reloadable{path: path}
}

// Reload re-reads the bound file and returns the freshly decoded config.
func (r *Reloadable) Reload() (Config, error) {
	return Load(r.path)
}
