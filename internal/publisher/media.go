package publisher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/h2non/filetype"
	cfg "github.com/promoloop/publish-engine/configs"
	"github.com/promoloop/publish-engine/internal/models"
)

// MediaFetcher retrieves media bytes so CMS adapters can re-upload them as
// featured assets. Objects in the R2 bucket are read through the S3 API;
// anything else is fetched over plain HTTP.
type MediaFetcher interface {
	Fetch(ctx context.Context, media *models.PostMedia) ([]byte, string, error)
}

type r2Fetcher struct {
	config cfg.Config
	client *http.Client
}

func NewMediaFetcher(config cfg.Config) MediaFetcher {
	return &r2Fetcher{config: config, client: newHTTPClient()}
}

func (r *r2Fetcher) r2Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r.config.R2.AccessKey, r.config.R2.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r.config.R2.AccountID))
	}), nil
}

func (r *r2Fetcher) Fetch(ctx context.Context, media *models.PostMedia) ([]byte, string, error) {
	var data []byte

	if media.FileKey != "" {
		client, err := r.r2Client(ctx)
		if err != nil {
			return nil, "", err
		}
		out, err := client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(r.config.R2.BucketName),
			Key:    aws.String(media.FileKey),
		})
		if err != nil {
			slog.Info(err.Error())
			return nil, "", err
		}
		defer out.Body.Close()
		data, err = io.ReadAll(out.Body)
		if err != nil {
			return nil, "", err
		}
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, media.FileURL, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			slog.Info(err.Error())
			return nil, "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("unexpected response status: %d", resp.StatusCode)
		}
		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", err
		}
	}

	kind, err := filetype.Match(data)
	if err != nil {
		slog.Info(err.Error())
		return nil, "", err
	}
	return data, kind.MIME.Value, nil
}
