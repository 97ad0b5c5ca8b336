// Package s3client wraps an aws-sdk-go session that is refreshed whenever a call fails.
package s3client

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"caoba.org/botcheck/logger"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

type Client struct {
	holder     *sessionHolder
	bucketName string
	region     string
	prefix     string
	env        EnvironmentConfig
}

type sessionHolder struct {
	curr      *session.Session
	requestCh <-chan *session.Session
	errorCh   chan<- error
	closeCh   chan<- struct{}
}

var clientLogger = logger.NewLogger("S3Client")
var sdkLogger = logger.NewLogger("S3-SDK")

func New() (*Client, error) {
	errLogger := clientLogger.With().Caller().Logger()
	env, err := ReadEnvironment()
	if err != nil {
		errLogger.Err(err).Msg("Failed to get proper variables from environment")
		return nil, err
	}
	client := Client{
		bucketName: env.BucketName,
		region:     env.Region,
		prefix:     strings.Trim(env.KeyPrefix, "/"),
		env:        env,
	}
	sessionCh := make(chan *session.Session)
	errorCh := make(chan error)
	closeCh := make(chan struct{}, 1)

	client.holder = &sessionHolder{
		requestCh: sessionCh,
		errorCh:   errorCh,
		closeCh:   closeCh,
	}
	if err := client.acquireNewSession(); err != nil {
		return nil, err
	}
	go keepSessionRefreshed(&client, sessionCh, errorCh, closeCh)
	return &client, nil
}

// Key places key under the configured prefix.
func (client Client) Key(key string) string {
	if client.prefix == "" {
		return key
	}
	return path.Join(client.prefix, key)
}

func (client Client) Upload(data string, key string) (*s3manager.UploadOutput, error) {
	fullKey := client.Key(key)
	params := &s3manager.UploadInput{
		Bucket: &client.bucketName,
		Key:    &fullKey,
		Body:   strings.NewReader(data),
	}
	sess, err := client.session()
	if err != nil {
		return nil, err
	}
	output, err := client.upload(sess, params)
	if err == nil {
		return output, nil
	}
	sess, err = client.tryRefreshingSession(err)
	if err != nil {
		return nil, err
	}
	// the body was consumed by the failed attempt
	params.Body = strings.NewReader(data)
	return client.upload(sess, params)
}

func (client Client) Download(key string) ([]byte, error) {
	fullKey := client.Key(key)
	params := &s3.GetObjectInput{
		Bucket: &client.bucketName,
		Key:    &fullKey,
	}
	sess, err := client.session()
	if err != nil {
		return nil, err
	}
	res, err := client.download(sess, params)
	if err == nil {
		return res, nil
	}
	sess, err = client.tryRefreshingSession(err)
	if err != nil {
		return nil, err
	}
	return client.download(sess, params)
}

func (client Client) Close() {
	client.holder.closeCh <- struct{}{}
}

func (client Client) upload(sess *session.Session, params *s3manager.UploadInput) (*s3manager.UploadOutput, error) {
	bcLogger := clientLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	sdkLog := sdkLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	uploader := s3manager.NewUploader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	bcLogger.Debug().Msg("Uploading the file")
	return uploader.Upload(params)
}

func (client Client) download(sess *session.Session, params *s3.GetObjectInput) ([]byte, error) {
	bcLogger := clientLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	sdkLog := sdkLogger.With().
		Str("key", *params.Key).
		Str("bucket", *params.Bucket).Logger()

	downloader := s3manager.NewDownloader(sess.Copy(&aws.Config{Logger: getLogger(sdkLog)}))
	buf := aws.NewWriteAtBuffer([]byte{})

	bcLogger.Debug().Msg("Downloading file")
	size, err := downloader.Download(buf, params)
	if err != nil {
		bcLogger.Error().Err(err).Msg("Failed to download file")
		return nil, err
	}
	bcLogger.Debug().Msgf("Downloaded %v bytes", size)
	return buf.Bytes(), nil
}

func keepSessionRefreshed(client *Client, sessionCh chan<- *session.Session, errorCh <-chan error, closeCh <-chan struct{}) {
	for {
		select {
		case sessionCh <- client.holder.curr:
			continue
		default:
		}
		select {
		case sessionCh <- client.holder.curr:
		case err := <-errorCh:
			clientLogger.Error().Err(err).Msg("Caught error while using S3 session, trying to refresh it")
			if err = client.acquireNewSession(); err != nil {
				clientLogger.Error().Err(err).Msg("Caught error while refreshing S3 session")
				continue
			}
			clientLogger.Info().Msg("Successfully refreshed session")
		case <-closeCh:
			clientLogger.Info().Msg("Closing client")
			return
		}
	}
}

func (client Client) tryRefreshingSession(err error) (*session.Session, error) {
	var sess *session.Session
	select {
	case client.holder.errorCh <- err:
		sess = <-client.holder.requestCh
	case sess = <-client.holder.requestCh:
	}
	if sess == nil {
		return nil, errors.New("failed to refresh session")
	}
	return sess, nil
}

func (client Client) session() (*session.Session, error) {
	sess := <-client.holder.requestCh
	if sess == nil {
		return nil, errors.New("could not get session")
	}
	return sess, nil
}

func (client Client) instanceConfig() *aws.Config {
	return &aws.Config{
		Region:     aws.String(client.region),
		MaxRetries: aws.Int(4),
		LogLevel:   aws.LogLevel(aws.LogDebug),
	}
}

// envConfig uses the static credentials of the environment; a custom endpoint (minio,
// localstack) switches to path-style addressing.
func (client Client) envConfig() (*aws.Config, error) {
	creds := credentials.NewStaticCredentials(
		client.env.AccessKeyID,
		client.env.AccessKey,
		"")
	if _, err := creds.Get(); err != nil {
		return nil, fmt.Errorf("credentials from environment: %w", err)
	}
	cfg := aws.NewConfig().
		WithRegion(client.region).
		WithMaxRetries(4).
		WithCredentials(creds).
		WithLogLevel(aws.LogDebug)

	if client.env.Endpoint != "" {
		cfg = cfg.WithEndpoint(client.env.Endpoint).
			WithS3ForcePathStyle(true)
	}
	return cfg, nil
}

func (client *Client) acquireNewSession() error {
	if client.env.Endpoint == "" {
		sess, err := session.NewSession(client.instanceConfig())
		if err == nil {
			if _, err = sts.New(sess).GetCallerIdentity(&sts.GetCallerIdentityInput{}); err == nil {
				client.holder.curr = sess
				clientLogger.Info().Msg("S3 session successfully initialized using instance role")
				return nil
			}
		}
		clientLogger.Info().Err(err).Msg("Could not initialize S3 session using instance role, trying env credentials")
	}

	cfg, err := client.envConfig()
	if err != nil {
		client.holder.curr = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		client.holder.curr = nil
		clientLogger.Error().Err(err).Msg("Could not initialize S3 session")
		return err
	}
	client.holder.curr = sess
	clientLogger.Info().Str("endpoint", client.env.Endpoint).Msg("S3 session initialized using env credentials")
	return nil
}

type EnvironmentConfig struct {
	BucketName  string `envconfig:"BOTCHECK_S3_BUCKET" required:"true"`
	KeyPrefix   string `envconfig:"BOTCHECK_S3_PREFIX" default:""`
	Region      string `envconfig:"BOTCHECK_AWS_REGION" default:"us-east-1"`
	Endpoint    string `envconfig:"BOTCHECK_AWS_ENDPOINT_URL" default:""`
	AccessKeyID string `envconfig:"BOTCHECK_AWS_ACCESS_ID" default:""`
	AccessKey   string `envconfig:"BOTCHECK_AWS_ACCESS_KEY" default:""`
}

func ReadEnvironment() (EnvironmentConfig, error) {
	var config EnvironmentConfig
	err := envconfig.Process("", &config)
	return config, err
}

type s3Logger struct {
	bcLogger zerolog.Logger
}

func getLogger(bcLogger zerolog.Logger) *s3Logger {
	return &s3Logger{
		bcLogger,
	}
}

func (logger *s3Logger) Log(v ...interface{}) {
	logger.bcLogger.Debug().Msg(fmt.Sprint(v...))
}
