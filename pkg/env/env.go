package env

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Specification holds everything read from the process environment. Vendor
// credentials live here rather than in the YAML config so the file can be committed.
type Specification struct {
	Version int
	Env     string `default:"production"`

	ServerPort                 string        `default:":8080" split_words:"true"`
	ServerReadTimeoutInSecond  time.Duration `default:"10s" split_words:"true"`
	ServerWriteTimeoutInSecond time.Duration `default:"10s" split_words:"true"`
	ServerMaxHeaderBytes       int           `default:"1048576" split_words:"true"`
	ServerRequestsPerMinute    int           `default:"120" split_words:"true"`

	RedisAddr     string `required:"true" split_words:"true"`
	RedisPassword string `default:"" split_words:"true"`
	RedisDb       int    `default:"0" split_words:"true"`
	RedisPoolSize int    `default:"100" split_words:"true"`

	ConfigFile string `default:"./config.yaml" split_words:"true"`

	VasttrafikConsumerKey    string `split_words:"true"`
	VasttrafikConsumerSecret string `split_words:"true"`
	SchoolmealClient         string `split_words:"true"`
	SchoolmealVersionToken   string `split_words:"true"`
	GbgcameraApiKey          string `envconfig:"GBGCAMERA_API_KEY"`
}

const prefix = "app"

// Load reads the environment into a new Specification.
func Load() (*Specification, error) {
	var s Specification
	if err := envconfig.Process(prefix, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
