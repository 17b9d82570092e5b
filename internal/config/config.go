// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Browser lifecycle policies.
const (
	BrowserModePersistent = "persistent"
	BrowserModeTransient  = "transient"
)

// Config holds the entire application configuration.
type Config struct {
	Logger       LoggerConfig       `mapstructure:"logger" yaml:"logger"`
	Server       ServerConfig       `mapstructure:"server" yaml:"server"`
	Browser      BrowserConfig      `mapstructure:"browser" yaml:"browser"`
	Portal       PortalConfig       `mapstructure:"portal" yaml:"portal"`
	Typing       TypingConfig       `mapstructure:"typing" yaml:"typing"`
	Workflow     WorkflowConfig     `mapstructure:"workflow" yaml:"workflow"`
	Registration RegistrationConfig `mapstructure:"registration" yaml:"registration"`
	Diagnostics  DiagnosticsConfig  `mapstructure:"diagnostics" yaml:"diagnostics"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit" yaml:"ratelimit"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// LoggerConfig defines all the settings for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal color names.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port"`
	Host            string        `mapstructure:"host" yaml:"host"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns the listen address for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BrowserConfig holds settings for the Chrome process and its lifecycle.
type BrowserConfig struct {
	// Mode is either "persistent" (one shared process) or "transient" (one per request).
	Mode            string        `mapstructure:"mode" yaml:"mode"`
	ExecPath        string        `mapstructure:"exec_path" yaml:"exec_path"`
	Headless        bool          `mapstructure:"headless" yaml:"headless"`
	DisableCache    bool          `mapstructure:"disable_cache" yaml:"disable_cache"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string      `mapstructure:"args" yaml:"args"`
	WindowWidth     int           `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight    int           `mapstructure:"window_height" yaml:"window_height"`
	EagerLaunch     bool          `mapstructure:"eager_launch" yaml:"eager_launch"`
	LaunchRetries   int           `mapstructure:"launch_retries" yaml:"launch_retries"`
	LaunchBackoff   time.Duration `mapstructure:"launch_backoff" yaml:"launch_backoff"`
	LaunchTimeout   time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavTimeout      time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	Debug           bool          `mapstructure:"debug" yaml:"debug"`
	Persona         PersonaConfig `mapstructure:"persona" yaml:"persona"`
}

// PersonaConfig is the locale profile every tab presents to the portal.
type PersonaConfig struct {
	Enabled    bool     `mapstructure:"enabled" yaml:"enabled"`
	Languages  []string `mapstructure:"languages" yaml:"languages"`
	TimezoneID string   `mapstructure:"timezone_id" yaml:"timezone_id"`
	Locale     string   `mapstructure:"locale" yaml:"locale"`
	// HideWebdriver masks navigator.webdriver before any page script runs.
	HideWebdriver bool `mapstructure:"hide_webdriver" yaml:"hide_webdriver"`
}

// PortalConfig points at the Themis deployment and holds its credentials.
type PortalConfig struct {
	BaseURL                   string          `mapstructure:"base_url" yaml:"base_url"`
	LoginPath                 string          `mapstructure:"login_path" yaml:"login_path"`
	SearchPath                string          `mapstructure:"search_path" yaml:"search_path"`
	Username                  string          `mapstructure:"username" yaml:"username"`
	Password                  string          `mapstructure:"password" yaml:"-"`
	InvalidCredentialsPattern string          `mapstructure:"invalid_credentials_pattern" yaml:"invalid_credentials_pattern"`
	Selectors                 SelectorsConfig `mapstructure:"selectors" yaml:"selectors"`
}

// URL joins the base URL with a portal path.
func (p PortalConfig) URL(path string) string {
	return strings.TrimRight(p.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// SelectorsConfig lists ordered candidate CSS selectors for each control.
// The first visible candidate wins.
type SelectorsConfig struct {
	Username      []string `mapstructure:"username" yaml:"username"`
	Password      []string `mapstructure:"password" yaml:"password"`
	Submit        []string `mapstructure:"submit" yaml:"submit"`
	SearchSurface []string `mapstructure:"search_surface" yaml:"search_surface"`
	AddFilter     []string `mapstructure:"add_filter" yaml:"add_filter"`
	FilterInput   []string `mapstructure:"filter_input" yaml:"filter_input"`
	SearchButton  []string `mapstructure:"search_button" yaml:"search_button"`
	ResultTable   string   `mapstructure:"result_table" yaml:"result_table"`
	ResultRows    string   `mapstructure:"result_rows" yaml:"result_rows"`

	RegisterButton   []string `mapstructure:"register_button" yaml:"register_button"`
	Area             []string `mapstructure:"area" yaml:"area"`
	Client           []string `mapstructure:"client" yaml:"client"`
	Attorney         []string `mapstructure:"attorney" yaml:"attorney"`
	Origin           []string `mapstructure:"origin" yaml:"origin"`
	Office           []string `mapstructure:"office" yaml:"office"`
	ClaimValue       []string `mapstructure:"claim_value" yaml:"claim_value"`
	AccruedValue     []string `mapstructure:"accrued_value" yaml:"accrued_value"`
	FutureValue      []string `mapstructure:"future_value" yaml:"future_value"`
	AddInterested    []string `mapstructure:"add_interested" yaml:"add_interested"`
	InterestedParty  []string `mapstructure:"interested_party" yaml:"interested_party"`
	AddOpposing      []string `mapstructure:"add_opposing" yaml:"add_opposing"`
	OpposingParty    []string `mapstructure:"opposing_party" yaml:"opposing_party"`
	CaseType         []string `mapstructure:"case_type" yaml:"case_type"`
	Instance         []string `mapstructure:"instance" yaml:"instance"`
	Phase            []string `mapstructure:"phase" yaml:"phase"`
	Venue            []string `mapstructure:"venue" yaml:"venue"`
	WorkflowStage    []string `mapstructure:"workflow_stage" yaml:"workflow_stage"`
	SaveButton       []string `mapstructure:"save_button" yaml:"save_button"`
}

// TypingConfig tunes the per-character keystroke delay.
// A zero mean disables the delay entirely.
type TypingConfig struct {
	Enabled   bool          `mapstructure:"enabled" yaml:"enabled"`
	DelayMean time.Duration `mapstructure:"delay_mean" yaml:"delay_mean"`
	Jitter    time.Duration `mapstructure:"jitter" yaml:"jitter"`
	FocusWait time.Duration `mapstructure:"focus_wait" yaml:"focus_wait"`
}

// WorkflowConfig holds the timeouts and settle intervals of the portal workflow.
type WorkflowConfig struct {
	SelectorTimeout    time.Duration `mapstructure:"selector_timeout" yaml:"selector_timeout"`
	LoginTimeout       time.Duration `mapstructure:"login_timeout" yaml:"login_timeout"`
	RowsTimeout        time.Duration `mapstructure:"rows_timeout" yaml:"rows_timeout"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	AutocompleteSettle time.Duration `mapstructure:"autocomplete_settle" yaml:"autocomplete_settle"`
	FormSettle         time.Duration `mapstructure:"form_settle" yaml:"form_settle"`
	SaveSettle         time.Duration `mapstructure:"save_settle" yaml:"save_settle"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// RegistrationConfig holds the fixed values typed into the registration form.
type RegistrationConfig struct {
	ReadyMarker   string `mapstructure:"ready_marker" yaml:"ready_marker"`
	Area          string `mapstructure:"area" yaml:"area"`
	Client        string `mapstructure:"client" yaml:"client"`
	Attorney      string `mapstructure:"attorney" yaml:"attorney"`
	DefaultOrigin string `mapstructure:"default_origin" yaml:"default_origin"`
	Office        string `mapstructure:"office" yaml:"office"`
	Interested    string `mapstructure:"interested" yaml:"interested"`
	Opposing      string `mapstructure:"opposing" yaml:"opposing"`
	CaseType      string `mapstructure:"case_type" yaml:"case_type"`
	Instance      string `mapstructure:"instance" yaml:"instance"`
	Phase         string `mapstructure:"phase" yaml:"phase"`
	Venue         string `mapstructure:"venue" yaml:"venue"`
	WorkflowStage string `mapstructure:"workflow_stage" yaml:"workflow_stage"`
}

// DiagnosticsConfig controls the failure snapshots.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// RateLimitConfig bounds how fast workflows start against the portal.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	RPS     float64 `mapstructure:"rps" yaml:"rps"`
	Burst   int     `mapstructure:"burst" yaml:"burst"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// NewDefaultConfig creates a new configuration with all default values applied.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; a failure here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults sets the default values for all configuration parameters in Viper.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "themis")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// -- Server --
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 10000)
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("server.shutdown_timeout", "30s")

	// -- Browser --
	v.SetDefault("browser.mode", BrowserModePersistent)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.disable_cache", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.args", []string{})
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 768)
	v.SetDefault("browser.eager_launch", false)
	v.SetDefault("browser.launch_retries", 3)
	v.SetDefault("browser.launch_backoff", "2s")
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.nav_timeout", "60s")
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.persona.enabled", true)
	v.SetDefault("browser.persona.languages", []string{"pt-BR", "pt", "en-US"})
	v.SetDefault("browser.persona.timezone_id", "America/Sao_Paulo")
	v.SetDefault("browser.persona.locale", "pt-BR")
	v.SetDefault("browser.persona.hide_webdriver", true)

	// -- Portal --
	v.SetDefault("portal.base_url", "https://seudominio.com.br/themis")
	v.SetDefault("portal.login_path", "login")
	v.SetDefault("portal.search_path", "processos")
	v.SetDefault("portal.invalid_credentials_pattern", `(?i)(usu[aá]rio|login|senha|credenciais)[^.\n]{0,40}(inv[aá]lid|incorret)`)
	setSelectorDefaults(v)

	// -- Typing --
	v.SetDefault("typing.enabled", true)
	v.SetDefault("typing.delay_mean", "60ms")
	v.SetDefault("typing.jitter", "40ms")
	v.SetDefault("typing.focus_wait", "100ms")

	// -- Workflow --
	v.SetDefault("workflow.selector_timeout", "5s")
	v.SetDefault("workflow.login_timeout", "20s")
	v.SetDefault("workflow.rows_timeout", "15s")
	v.SetDefault("workflow.poll_interval", "250ms")
	v.SetDefault("workflow.autocomplete_settle", "1500ms")
	v.SetDefault("workflow.form_settle", "1s")
	v.SetDefault("workflow.save_settle", "5s")
	v.SetDefault("workflow.request_timeout", "4m")

	// -- Registration --
	v.SetDefault("registration.ready_marker", "Aguardando cadastro")
	v.SetDefault("registration.area", "Trabalhista")
	v.SetDefault("registration.client", "")
	v.SetDefault("registration.attorney", "")
	v.SetDefault("registration.default_origin", "")
	v.SetDefault("registration.office", "")
	v.SetDefault("registration.interested", "")
	v.SetDefault("registration.opposing", "")
	v.SetDefault("registration.case_type", "Reclamação Trabalhista")
	v.SetDefault("registration.instance", "1ª Instância")
	v.SetDefault("registration.phase", "Conhecimento")
	v.SetDefault("registration.venue", "")
	v.SetDefault("registration.workflow_stage", "Cadastrado")

	// -- Diagnostics --
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.dir", "/tmp/themis-diagnostics")

	// -- Rate Limit --
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 2)

	// -- Metrics --
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// setSelectorDefaults seeds the candidate selector chains. The first entry of
// each list is the markup observed on the current portal; the rest cover older
// layouts.
func setSelectorDefaults(v *viper.Viper) {
	v.SetDefault("portal.selectors.username", []string{"input[name='login']", "input#login", "input[name='usuario']", "input[type='email']"})
	v.SetDefault("portal.selectors.password", []string{"input[name='senha']", "input#senha", "input[type='password']"})
	v.SetDefault("portal.selectors.submit", []string{"button[type='submit']", "input[type='submit']", "button.btn-login"})
	v.SetDefault("portal.selectors.search_surface", []string{".tabela-processos", "#processos", "main"})
	v.SetDefault("portal.selectors.add_filter", []string{"button.adicionar-filtro", "#btnAdicionarFiltro", "a.add-filter"})
	v.SetDefault("portal.selectors.filter_input", []string{"input[name='numeroProcesso']", "input#numeroProcesso", "input.filtro-valor"})
	v.SetDefault("portal.selectors.search_button", []string{"button#btnBuscar", "button.buscar", "button[type='submit']"})
	v.SetDefault("portal.selectors.result_table", ".tabela-processos")
	v.SetDefault("portal.selectors.result_rows", ".tabela-processos tbody tr")

	v.SetDefault("portal.selectors.register_button", []string{"button.cadastrar", "a.btn-cadastrar", "#btnCadastrar"})
	v.SetDefault("portal.selectors.area", []string{"select[name='area']", "#area"})
	v.SetDefault("portal.selectors.client", []string{"input[name='cliente']", "#cliente"})
	v.SetDefault("portal.selectors.attorney", []string{"input[name='advogado']", "#advogado"})
	v.SetDefault("portal.selectors.origin", []string{"input[name='origem']", "#origem"})
	v.SetDefault("portal.selectors.office", []string{"input[name='escritorio']", "#escritorio"})
	v.SetDefault("portal.selectors.claim_value", []string{"input[name='valorCausa']", "#valorCausa"})
	v.SetDefault("portal.selectors.accrued_value", []string{"input[name='valorVencidas']", "#valorVencidas"})
	v.SetDefault("portal.selectors.future_value", []string{"input[name='valorVincendas']", "#valorVincendas"})
	v.SetDefault("portal.selectors.add_interested", []string{"button.adicionar-interessado", "#btnAdicionarInteressado"})
	v.SetDefault("portal.selectors.interested_party", []string{"input[name='interessado']", "#interessado"})
	v.SetDefault("portal.selectors.add_opposing", []string{"button.adicionar-contrario", "#btnAdicionarContrario"})
	v.SetDefault("portal.selectors.opposing_party", []string{"input[name='parteContraria']", "#parteContraria"})
	v.SetDefault("portal.selectors.case_type", []string{"input[name='tipoAcao']", "#tipoAcao"})
	v.SetDefault("portal.selectors.instance", []string{"select[name='instancia']", "#instancia"})
	v.SetDefault("portal.selectors.phase", []string{"select[name='fase']", "#fase"})
	v.SetDefault("portal.selectors.venue", []string{"input[name='vara']", "#vara"})
	v.SetDefault("portal.selectors.workflow_stage", []string{"select[name='etapa']", "#etapa"})
	v.SetDefault("portal.selectors.save_button", []string{"button.salvar", "#btnSalvar", "button[type='submit']"})
}

// NewConfigFromViper unmarshals config from a viper instance and validates it.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Unprefixed variables kept for compatibility with existing deployments.
	_ = v.BindEnv("server.port", "PORT")
	_ = v.BindEnv("browser.exec_path", "CHROME_PATH")
	_ = v.BindEnv("portal.username", "THEMIS_USER", "THEMIS_PORTAL_USERNAME")
	_ = v.BindEnv("portal.password", "THEMIS_PASS", "THEMIS_PORTAL_PASSWORD")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Diagnostics.Dir != "" {
		dir, err := homedir.Expand(cfg.Diagnostics.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand diagnostics.dir: %w", err)
		}
		cfg.Diagnostics.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
// Missing portal credentials are not rejected here: the
// authenticator fails the request instead, so the liveness routes stay usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Browser.Mode {
	case BrowserModePersistent, BrowserModeTransient:
	default:
		return fmt.Errorf("browser.mode must be %q or %q, got %q", BrowserModePersistent, BrowserModeTransient, c.Browser.Mode)
	}
	if c.Browser.LaunchRetries < 0 {
		return fmt.Errorf("browser.launch_retries must not be negative")
	}
	if c.Portal.BaseURL == "" {
		return fmt.Errorf("portal.base_url is a required configuration field")
	}
	if c.Portal.LoginPath == "" {
		return fmt.Errorf("portal.login_path is a required configuration field")
	}
	if c.Workflow.PollInterval <= 0 {
		return fmt.Errorf("workflow.poll_interval must be positive")
	}
	if c.Workflow.SelectorTimeout <= 0 {
		return fmt.Errorf("workflow.selector_timeout must be positive")
	}
	if c.Typing.DelayMean < 0 || c.Typing.Jitter < 0 {
		return fmt.Errorf("typing delays must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive when enabled")
	}
	if c.Diagnostics.Enabled && c.Diagnostics.Dir == "" {
		return fmt.Errorf("diagnostics.dir is required when diagnostics are enabled")
	}
	return nil
}
