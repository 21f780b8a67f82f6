package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig   `mapstructure:"server"`
	MongoDB MongoDBConfig  `mapstructure:"mongodb"`
	Search  SearchConfig   `mapstructure:"search"`
	Facades []FacadeConfig `mapstructure:"facades"`
	Joins   []JoinConfig   `mapstructure:"joins"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MongoDBConfig contains MongoDB connection settings for the seeder
type MongoDBConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Timeout  int    `mapstructure:"timeout"` // in seconds
}

// SearchConfig contains index engine settings
type SearchConfig struct {
	IndexPath     string `mapstructure:"index_path"`
	BatchSize     int    `mapstructure:"batch_size"`
	SeedStatePath string `mapstructure:"seed_state_path"` // Path to store seed state for persistence
	PollInterval  int    `mapstructure:"poll_interval"`   // Default seeder poll interval in seconds
}

// FacadeConfig declares a single index facade and its schema
type FacadeConfig struct {
	Name           string       `mapstructure:"name"`
	Collection     string       `mapstructure:"collection,omitempty"`      // MongoDB seed collection, empty disables seeding
	IDField        string       `mapstructure:"id_field,omitempty"`        // Source field carrying the unique id (defaults to "_id")
	TimestampField string       `mapstructure:"timestamp_field,omitempty"` // Field used for incremental seed polling
	PollInterval   int          `mapstructure:"poll_interval,omitempty"`   // Facade-specific poll interval in seconds
	SupportsClear  bool         `mapstructure:"supports_clear,omitempty"`  // Opt-in full index wipe
	Schema         SchemaConfig `mapstructure:"schema"`
}

// SchemaConfig describes field definitions and the default result ordering
type SchemaConfig struct {
	Dynamic     bool          `mapstructure:"dynamic"`
	Fields      []FieldConfig `mapstructure:"fields"`
	DefaultSort []SortConfig  `mapstructure:"default_sort,omitempty"`
}

// FieldConfig represents field-specific indexing configuration
type FieldConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"` // text, keyword, numeric, date, boolean
	Analyzer string `mapstructure:"analyzer,omitempty"`
}

// SortConfig is a single (field, direction) pair of a sort order
type SortConfig struct {
	Field string `mapstructure:"field"`
	Desc  bool   `mapstructure:"desc,omitempty"`
}

// JoinConfig composes two facades under a join relation
type JoinConfig struct {
	Name        string `mapstructure:"name"`
	Primary     string `mapstructure:"primary"`     // Facade owning identity; receives all writes
	Joined      string `mapstructure:"joined"`      // Facade providing related records
	On          string `mapstructure:"on"`          // Field on the joined side referencing the primary id
	Attach      string `mapstructure:"attach"`      // Field name under which joined records are attached
	Cardinality string `mapstructure:"cardinality"` // "many" or "one"
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/open-index-search")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("OIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("mongodb.timeout", 30)
	viper.SetDefault("search.index_path", "./indexes")
	viper.SetDefault("search.batch_size", 1000)
	viper.SetDefault("search.seed_state_path", "./seed_state.json")
	viper.SetDefault("search.poll_interval", 30)
}

// Validate checks facade names and join cross-references
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Facades))
	for _, f := range c.Facades {
		if f.Name == "" {
			return fmt.Errorf("facade with empty name")
		}
		if names[f.Name] {
			return fmt.Errorf("duplicate facade name: %s", f.Name)
		}
		names[f.Name] = true
	}

	for _, j := range c.Joins {
		if j.Name == "" {
			return fmt.Errorf("join with empty name")
		}
		if names[j.Name] {
			return fmt.Errorf("join name collides with facade: %s", j.Name)
		}
		if !names[j.Primary] {
			return fmt.Errorf("join %s references unknown primary facade: %s", j.Name, j.Primary)
		}
		if !names[j.Joined] {
			return fmt.Errorf("join %s references unknown joined facade: %s", j.Name, j.Joined)
		}
		if j.On == "" {
			return fmt.Errorf("join %s has no join field", j.Name)
		}
		if j.Cardinality != "many" && j.Cardinality != "one" {
			return fmt.Errorf("join %s has invalid cardinality: %s", j.Name, j.Cardinality)
		}
		names[j.Name] = true
	}

	return nil
}

// GetMongoURI returns the complete MongoDB connection URI
func (c *MongoDBConfig) GetMongoURI() string {
	if c.URI != "" {
		return c.URI
	}

	// Build URI from components if not provided directly
	uri := "mongodb://"
	if c.Username != "" && c.Password != "" {
		uri += fmt.Sprintf("%s:%s@", c.Username, c.Password)
	}
	uri += "localhost:27017"
	return uri
}
