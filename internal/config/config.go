package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Managers   []int64          `yaml:"managers"`
	Admissions AdmissionsConfig `yaml:"admissions"`
	CRM        CRMConfig        `yaml:"crm"`
	Phone      PhoneConfig      `yaml:"phone"`
	Campuses   []CampusConfig   `yaml:"campuses"`
	Tours      TourConfig       `yaml:"tours"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Retry      RetryConfig      `yaml:"retry"`
	Exports    ExportConfig     `yaml:"exports"`
	Bot        BotConfig        `yaml:"bot"`
}

type BotConfig struct {
	RateLimitMessages int `yaml:"rate_limit_messages"`
	RateLimitWindow   int `yaml:"rate_limit_window"`
}

type APIConfig struct {
	Enabled      bool               `yaml:"enabled"`
	Port         int                `yaml:"port"`
	WebhookToken string             `yaml:"webhook_token"`
	RateLimit    APIRateLimitConfig `yaml:"rate_limit"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	Timezone    string `yaml:"timezone"`
}

// Location resolves the configured timezone, falling back to UTC.
func (a AppConfig) Location() *time.Location {
	if a.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// AdmissionsConfig describes the staff side: the chat that receives
// notifications and the public links shown to parents.
type AdmissionsConfig struct {
	ChatID       int64  `yaml:"chat_id"`
	ChannelLink  string `yaml:"channel_link"`
	ContactPhone string `yaml:"contact_phone"`
}

type CRMConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Subdomain      string        `yaml:"subdomain"`
	Domain         string        `yaml:"domain"`
	ClientID       string        `yaml:"client_id"`
	ClientSecret   string        `yaml:"client_secret"`
	RedirectURI    string        `yaml:"redirect_uri"`
	AccessToken    string        `yaml:"access_token"`
	RefreshToken   string        `yaml:"refresh_token"`
	TokenCachePath string        `yaml:"token_cache_path"`
	PipelineID     int64         `yaml:"pipeline_id"`
	StatusID       int64         `yaml:"status_id"`
	ResponsibleID  int64         `yaml:"responsible_user_id"`
	Timeout        time.Duration `yaml:"timeout"`
	Fields         CRMFields     `yaml:"fields"`
}

// BaseURL is the account root, e.g. https://school.amocrm.ru.
func (c CRMConfig) BaseURL() string {
	return fmt.Sprintf("https://%s.%s", c.Subdomain, c.Domain)
}

// CRMFields maps lead and contact attributes onto amoCRM custom field ids.
type CRMFields struct {
	ContactPhone     int64            `yaml:"contact_phone"`
	TelegramID       int64            `yaml:"telegram_id"`
	TelegramUsername int64            `yaml:"telegram_username"`
	Language         int64            `yaml:"language"`
	ChildrenCount    int64            `yaml:"children_count"`
	ChildrenAges     int64            `yaml:"children_ages"`
	Program          int64            `yaml:"program"`
	TourCampus       int64            `yaml:"tour_campus"`
	TourDateTime     int64            `yaml:"tour_datetime"`
	TourStatus       int64            `yaml:"tour_status"`
	ProgramEnums     map[string]int64 `yaml:"program_enums"`
	CampusEnums      map[string]int64 `yaml:"campus_enums"`
}

type PhoneConfig struct {
	CountryCode  string `yaml:"country_code"`
	LocalLengths []int  `yaml:"local_lengths"`
}

type CampusConfig struct {
	ID      string            `yaml:"id"`
	Names   map[string]string `yaml:"names"`
	Address string            `yaml:"address"`
	MapURL  string            `yaml:"map_url"`
}

// Name returns the campus name for locale, or its id when untranslated.
func (c CampusConfig) Name(locale string) string {
	if n, ok := c.Names[locale]; ok && n != "" {
		return n
	}
	if n, ok := c.Names["en"]; ok && n != "" {
		return n
	}
	return c.ID
}

type TourConfig struct {
	Times     []string `yaml:"times"`
	Weekdays  []string `yaml:"weekdays"`
	DaysShown int      `yaml:"days_shown"`
}

type SchedulerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	ReminderLead    time.Duration `yaml:"reminder_lead"`
	FollowupLag     time.Duration `yaml:"followup_lag"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	EscalateAfter   int           `yaml:"escalate_after"`
}

type RetryConfig struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен, переменные могут прийти из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	// рассылка напоминаний включена, пока ее явно не выключили
	config := Config{Scheduler: SchedulerConfig{Enabled: true}}
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" || c.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("telegram bot token is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.CRM.Enabled {
		if c.CRM.Subdomain == "" || c.CRM.Domain == "" {
			return errors.New("crm subdomain and domain are required")
		}
		if c.CRM.AccessToken == "" && c.CRM.RefreshToken == "" && c.CRM.TokenCachePath == "" {
			return errors.New("crm needs an access token, a refresh token or a token cache")
		}
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.App.Timezone, err)
	}

	if err := ValidateCampuses(c.Campuses); err != nil {
		return err
	}

	for _, t := range c.Tours.Times {
		if _, err := time.Parse("15:04", t); err != nil {
			return fmt.Errorf("invalid tour time %q", t)
		}
	}
	for _, d := range c.Tours.Weekdays {
		if _, ok := ParseWeekday(d); !ok {
			return fmt.Errorf("invalid tour weekday %q", d)
		}
	}

	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be at least 1")
	}

	return nil
}

func ValidateCampuses(campuses []CampusConfig) error {
	if len(campuses) == 0 {
		return errors.New("at least one campus is required")
	}
	ids := make(map[string]bool)
	for _, c := range campuses {
		if c.ID == "" {
			return errors.New("campus with empty id")
		}
		if ids[c.ID] {
			return fmt.Errorf("duplicate campus id found: %s", c.ID)
		}
		ids[c.ID] = true
	}
	return nil
}

// Campus looks a campus up by id.
func (c *Config) Campus(id string) (CampusConfig, bool) {
	for _, campus := range c.Campuses {
		if campus.ID == id {
			return campus, true
		}
	}
	return CampusConfig{}, false
}

// IsManager reports whether userID is listed in managers.
func (c *Config) IsManager(userID int64) bool {
	for _, id := range c.Managers {
		if id == userID {
			return true
		}
	}
	return false
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// ParseWeekday accepts short or long english day names.
func ParseWeekday(s string) (time.Weekday, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) > 3 {
		s = s[:3]
	}
	d, ok := weekdays[s]
	return d, ok
}

// TourWeekdays returns the parsed weekdays on which tours run.
func (t TourConfig) TourWeekdays() []time.Weekday {
	out := make([]time.Weekday, 0, len(t.Weekdays))
	for _, d := range t.Weekdays {
		if wd, ok := ParseWeekday(d); ok {
			out = append(out, wd)
		}
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "admissions-bot"
	}
	if c.App.Timezone == "" {
		c.App.Timezone = "Asia/Tashkent"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 5
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 10
	}
	// должен пережить таймаут апдейта вместе с фиксацией результата
	if c.Redis.LockTTL == 0 {
		c.Redis.LockTTL = time.Minute
	}
	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}

	// CRM
	if c.CRM.Domain == "" {
		c.CRM.Domain = "amocrm.ru"
	}
	if c.CRM.Timeout == 0 {
		c.CRM.Timeout = 10 * time.Second
	}
	if c.CRM.TokenCachePath == "" {
		c.CRM.TokenCachePath = ".token_cache"
	}
	c.CRM.Fields.applyDefaults()

	// Phone
	if c.Phone.CountryCode == "" {
		c.Phone.CountryCode = "998"
	}
	if len(c.Phone.LocalLengths) == 0 {
		c.Phone.LocalLengths = []int{7, 9, 10}
	}

	if len(c.Campuses) == 0 {
		c.Campuses = defaultCampuses()
	}

	// Tours
	if len(c.Tours.Times) == 0 {
		c.Tours.Times = []string{"10:00", "14:00", "16:00"}
	}
	if len(c.Tours.Weekdays) == 0 {
		c.Tours.Weekdays = []string{"mon", "wed", "fri"}
	}
	if c.Tours.DaysShown == 0 {
		c.Tours.DaysShown = 3
	}

	// Scheduler
	if c.Scheduler.SweepInterval == 0 {
		c.Scheduler.SweepInterval = 5 * time.Minute
	}
	if c.Scheduler.ReminderLead == 0 {
		c.Scheduler.ReminderLead = 24 * time.Hour
	}
	if c.Scheduler.FollowupLag == 0 {
		c.Scheduler.FollowupLag = 24 * time.Hour
	}
	if c.Scheduler.DispatchTimeout == 0 {
		c.Scheduler.DispatchTimeout = 15 * time.Second
	}
	if c.Scheduler.EscalateAfter == 0 {
		c.Scheduler.EscalateAfter = 3
	}

	// Retry
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.InitialDelay == 0 {
		c.Retry.InitialDelay = 500 * time.Millisecond
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = 10 * time.Second
	}
	if c.Retry.BackoffFactor == 0 {
		c.Retry.BackoffFactor = 2
	}

	// Bot defaults
	if c.Bot.RateLimitMessages == 0 {
		c.Bot.RateLimitMessages = 20
	}
	if c.Bot.RateLimitWindow == 0 {
		c.Bot.RateLimitWindow = 60
	}
}

func (f *CRMFields) applyDefaults() {
	if f.ContactPhone == 0 {
		f.ContactPhone = 522485
	}
	if f.TelegramID == 0 {
		f.TelegramID = 995929
	}
	if f.TelegramUsername == 0 {
		f.TelegramUsername = 995927
	}
	if f.Language == 0 {
		f.Language = 995931
	}
	if f.ChildrenCount == 0 {
		f.ChildrenCount = 995937
	}
	if f.ChildrenAges == 0 {
		f.ChildrenAges = 991841
	}
	if f.Program == 0 {
		f.Program = 995887
	}
	if f.TourCampus == 0 {
		f.TourCampus = 982191
	}
	if f.TourDateTime == 0 {
		f.TourDateTime = 991845
	}
	if f.ProgramEnums == nil {
		f.ProgramEnums = map[string]int64{
			"kindergarten": 1222831,
			"russian":      1222833,
			"ib":           1222835,
			"consultation": 1222837,
		}
	}
	if f.CampusEnums == nil {
		f.CampusEnums = map[string]int64{
			"mu":        1211167,
			"yashnobod": 1211169,
		}
	}
}

func defaultCampuses() []CampusConfig {
	return []CampusConfig{
		{
			ID: "mu",
			Names: map[string]string{
				"ru": "MU Campus - Мирзо Улугбек",
				"uz": "MU Campus - Mirzo Ulugbek",
				"en": "MU Campus - Mirzo Ulugbek",
				"tr": "MU Campus - Mirzo Ulugbek",
			},
			Address: "Mirzo Ulugbek District, Tashkent",
			MapURL:  "https://maps.google.com",
		},
		{
			ID: "yashnobod",
			Names: map[string]string{
				"ru": "Yashnobod - Яшнабад",
				"uz": "Yashnobod",
				"en": "Yashnobod Campus",
				"tr": "Yashnobod Kampüsü",
			},
			Address: "Yashnobod District, Tashkent",
			MapURL:  "https://maps.google.com",
		},
	}
}

// Default returns a Config with every default applied and no secrets set.
func Default() *Config {
	c := &Config{Scheduler: SchedulerConfig{Enabled: true}}
	c.applyDefaults()
	return c
}
