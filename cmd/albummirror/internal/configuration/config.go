package configuration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adampresley/albummirror/pkg/immich"
	"github.com/adampresley/configinator"
	"github.com/pelletier/go-toml/v2"
)

const (
	AuthTypeAPIKey = "api_key"
	AuthTypeOAuth  = "oauth"
)

type Config struct {
	ImmichURL         string `flag:"immichurl" env:"IMMICH_URL" default:"" description:"Base URL of the Immich server" toml:"immich_url"`
	AuthType          string `flag:"authtype" env:"AUTH_TYPE" default:"api_key" description:"Authentication type. Valid values are 'api_key' and 'oauth'" toml:"auth_type"`
	ImmichApiKey      string `flag:"immichapikey" env:"IMMICH_API_KEY" default:"" description:"Immich API key" toml:"immich_api_key"`
	OAuthClientID     string `flag:"oauthclientid" env:"OAUTH_CLIENT_ID" default:"" description:"OAuth client ID" toml:"oauth_client_id"`
	OAuthClientSecret string `flag:"oauthclientsecret" env:"OAUTH_CLIENT_SECRET" default:"" description:"OAuth client secret" toml:"oauth_client_secret"`
	OAuthAuthURL      string `flag:"oauthauthurl" env:"OAUTH_AUTH_URL" default:"" description:"OAuth authorization endpoint" toml:"oauth_auth_url"`
	OAuthTokenURL     string `flag:"oauthtokenurl" env:"OAUTH_TOKEN_URL" default:"" description:"OAuth token endpoint" toml:"oauth_token_url"`
	OAuthRedirectURI  string `flag:"oauthredirecturi" env:"OAUTH_REDIRECT_URI" default:"" description:"OAuth redirect URI" toml:"oauth_redirect_uri"`
	OAuthAccessToken  string `flag:"oauthaccesstoken" env:"OAUTH_ACCESS_TOKEN" default:"" description:"Previously obtained OAuth access token" toml:"oauth_access_token"`

	StoragePath        string `flag:"storagepath" env:"STORAGE_PATH" default:"./data" description:"Root directory for originals, AVIF files and the database" toml:"storage_path"`
	StorageOriginalDir string `flag:"originaldir" env:"STORAGE_ORIGINAL_DIR" default:"original" description:"Directory under the storage path for originals" toml:"storage_original_dir"`
	StorageAvifDir     string `flag:"avifdir" env:"STORAGE_AVIF_DIR" default:"avif" description:"Directory under the storage path for AVIF files" toml:"storage_avif_dir"`
	StorageDBName      string `flag:"dbname" env:"STORAGE_DB_NAME" default:"db.sqlite" description:"Database file name under the storage path" toml:"storage_db_name"`

	Host string `flag:"host" env:"HOST" default:"127.0.0.1:3000" description:"The address and port to bind the HTTP server to" toml:"host"`

	SyncDeleteRemoved       bool `flag:"deleteremoved" env:"SYNC_DELETE_REMOVED" default:"false" description:"Delete local images that were removed from the album" toml:"sync_delete_removed"`
	SyncParallelDownloads   int  `flag:"paralleldownloads" env:"SYNC_PARALLEL_DOWNLOADS" default:"4" description:"Maximum number of concurrent downloads" toml:"sync_parallel_downloads"`
	SyncParallelConversions int  `flag:"parallelconversions" env:"SYNC_PARALLEL_CONVERSIONS" default:"2" description:"Maximum number of concurrent conversions" toml:"sync_parallel_conversions"`
	SyncIntervalMinutes     int  `flag:"syncinterval" env:"SYNC_INTERVAL_MINUTES" default:"0" description:"Minutes between background syncs while 'run' is serving. 0 disables" toml:"sync_interval_minutes"`

	ImageQuality        int `flag:"quality" env:"IMAGE_QUALITY" default:"80" description:"Starting AVIF quality (1-100)" toml:"image_quality"`
	ImageMinQuality     int `flag:"minquality" env:"IMAGE_MIN_QUALITY" default:"30" description:"Lowest AVIF quality tried to fit the file size budget" toml:"image_min_quality"`
	ImageMaxWidth       int `flag:"maxwidth" env:"IMAGE_MAX_WIDTH" default:"2000" description:"Maximum width of the primary image" toml:"image_max_width"`
	ImageThumbnailWidth int `flag:"thumbnailwidth" env:"IMAGE_THUMBNAIL_WIDTH" default:"1000" description:"Maximum width of thumbnails" toml:"image_thumbnail_width"`
	ImageMaxFileSize    int `flag:"maxfilesize" env:"IMAGE_MAX_FILE_SIZE" default:"10485760" description:"File size budget in bytes for each AVIF file" toml:"image_max_file_size"`
	ImageEncodeSpeed    int `flag:"encodespeed" env:"IMAGE_ENCODE_SPEED" default:"4" description:"AVIF encoder speed (0 slowest to 10 fastest)" toml:"image_encode_speed"`

	LogLevel  string `flag:"loglevel" env:"LOG_LEVEL" default:"info" description:"The log level to use. Valid values are 'debug', 'info', 'warn', and 'error'" toml:"log_level"`
	LogFormat string `flag:"logformat" env:"LOG_FORMAT" default:"text" description:"Log output format. Valid values are 'text' and 'json'" toml:"log_format"`

	AwsEndpointUrl     string `flag:"awsep" env:"AWS_ENDPOINT_URL" default:"" description:"AWS endpoint URL" toml:"aws_endpoint_url"`
	AwsRegion          string `flag:"awsregion" env:"AWS_REGION" default:"us-east-1" description:"AWS region" toml:"aws_region"`
	AwsAccessKeyId     string `flag:"awsaccesskeyid" env:"AWS_ACCESS_KEY_ID" default:"" description:"AWS access key ID" toml:"aws_access_key_id"`
	AwsSecretAccessKey string `flag:"awssecretaccesskey" env:"AWS_SECRET_ACCESS_KEY" default:"" description:"AWS secret access key" toml:"aws_secret_access_key"`
	AwsBucket          string `flag:"awsbucket" env:"AWS_BUCKET" default:"" description:"S3 bucket to publish AVIF files to. Publishing is off when empty" toml:"aws_bucket"`
	AwsPrefix          string `flag:"awsprefix" env:"AWS_PREFIX" default:"albummirror" description:"Key prefix for published files" toml:"aws_prefix"`
	ParallelUploads    int    `flag:"paralleluploads" env:"PARALLEL_UPLOADS" default:"4" description:"Maximum number of concurrent uploads" toml:"parallel_uploads"`
}

/*
LoadConfig reads configuration from flags and the environment. When
path is set, the TOML file at path is used instead, applied on top of
the defaults.
*/
func LoadConfig(path string) (Config, error) {
	var (
		err error
		b   []byte
	)

	config := Defaults()

	if path == "" {
		configinator.Behold(&config)
		return config, nil
	}

	if b, err = os.ReadFile(path); err != nil {
		return config, fmt.Errorf("error reading config file '%s': %w", path, err)
	}

	if err = toml.Unmarshal(b, &config); err != nil {
		return config, fmt.Errorf("error parsing config file '%s': %w", path, err)
	}

	return config, nil
}

func Defaults() Config {
	return Config{
		AuthType:                AuthTypeAPIKey,
		StoragePath:             "./data",
		StorageOriginalDir:      "original",
		StorageAvifDir:          "avif",
		StorageDBName:           "db.sqlite",
		Host:                    "127.0.0.1:3000",
		SyncParallelDownloads:   4,
		SyncParallelConversions: 2,
		ImageQuality:            80,
		ImageMinQuality:         30,
		ImageMaxWidth:           2000,
		ImageThumbnailWidth:     1000,
		ImageMaxFileSize:        10485760,
		ImageEncodeSpeed:        4,
		LogLevel:                "info",
		LogFormat:               "text",
		AwsRegion:               "us-east-1",
		AwsPrefix:               "albummirror",
		ParallelUploads:         4,
	}
}

func (c Config) Validate() error {
	var (
		errs []error
	)

	if strings.TrimSpace(c.ImmichURL) == "" {
		errs = append(errs, fmt.Errorf("immich url is required"))
	}

	switch c.AuthType {
	case AuthTypeAPIKey:
		if c.ImmichApiKey == "" {
			errs = append(errs, fmt.Errorf("immich api key is required for auth type '%s'", AuthTypeAPIKey))
		}

	case AuthTypeOAuth:
		if c.OAuthClientID == "" || c.OAuthAuthURL == "" || c.OAuthTokenURL == "" {
			errs = append(errs, fmt.Errorf("oauth client id, auth url and token url are required for auth type '%s'", AuthTypeOAuth))
		}

	default:
		errs = append(errs, fmt.Errorf("%w: '%s'", immich.ErrUnsupportedAuth, c.AuthType))
	}

	if c.StoragePath == "" {
		errs = append(errs, fmt.Errorf("storage path is required"))
	}

	if c.SyncParallelDownloads < 1 || c.SyncParallelConversions < 1 {
		errs = append(errs, fmt.Errorf("parallel downloads and conversions must be at least 1"))
	}

	if c.SyncIntervalMinutes < 0 {
		errs = append(errs, fmt.Errorf("sync interval cannot be negative"))
	}

	if c.ImageMinQuality < 1 || c.ImageMinQuality > c.ImageQuality || c.ImageQuality > 100 {
		errs = append(errs, fmt.Errorf("image qualities must satisfy 0 < min quality <= quality <= 100"))
	}

	if c.ImageMaxWidth < 1 || c.ImageThumbnailWidth < 1 {
		errs = append(errs, fmt.Errorf("image widths must be positive"))
	}

	if c.ImageMaxFileSize < 1 {
		errs = append(errs, fmt.Errorf("image max file size must be positive"))
	}

	return errors.Join(errs...)
}

func (c Config) OriginalPath() string {
	return filepath.Join(c.StoragePath, c.StorageOriginalDir)
}

func (c Config) AvifPath() string {
	return filepath.Join(c.StoragePath, c.StorageAvifDir)
}

func (c Config) DBPath() string {
	return filepath.Join(c.StoragePath, c.StorageDBName)
}

func (c Config) LockPath() string {
	return filepath.Join(c.StoragePath, "albummirror.lock")
}

func (c Config) PublishEnabled() bool {
	return c.AwsBucket != ""
}

/*
AuthProvider builds the Immich authentication for the configured auth
type. For OAuth, a configured access token is installed right away.
*/
func (c Config) AuthProvider() (immich.AuthProvider, error) {
	switch c.AuthType {
	case AuthTypeAPIKey:
		return immich.NewAPIKeyAuth(c.ImmichApiKey), nil

	case AuthTypeOAuth:
		provider := immich.NewOAuthProvider(immich.OAuthConfig{
			ClientID:     c.OAuthClientID,
			ClientSecret: c.OAuthClientSecret,
			AuthURL:      c.OAuthAuthURL,
			TokenURL:     c.OAuthTokenURL,
			RedirectURL:  c.OAuthRedirectURI,
		})

		if c.OAuthAccessToken != "" {
			provider.SetToken(c.OAuthAccessToken)
		}

		return provider, nil
	}

	return nil, fmt.Errorf("%w: '%s'", immich.ErrUnsupportedAuth, c.AuthType)
}
