// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
	"github.com/rotisserie/eris"

	"pvp-battle-server/config"
	"pvp-battle-server/models"
)

// ObjectPutter is the slice of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ReportArchive uploads finished battle reports to Cloudflare R2.
type ReportArchive struct {
	client     ObjectPutter
	bucket     string
	cdnBaseURL string
}

// NewR2Archive builds an archive against the R2 endpoint of cfg.AccountID.
func NewR2Archive(ctx context.Context, cfg config.R2Config) (*ReportArchive, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to load R2 config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})

	cdn := cfg.CDNBaseURL
	if cdn == "" {
		cdn = endpoint + "/" + cfg.Bucket
	}
	return NewReportArchive(client, cfg.Bucket, cdn), nil
}

func NewReportArchive(client ObjectPutter, bucket, cdnBaseURL string) *ReportArchive {
	return &ReportArchive{
		client:     client,
		bucket:     bucket,
		cdnBaseURL: strings.TrimSuffix(cdnBaseURL, "/"),
	}
}

// ArchiveBattleReport uploads the snapshot as JSON and returns its public URL.
func (a *ReportArchive) ArchiveBattleReport(ctx context.Context, snap models.BattleSnapshot) (string, error) {
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "encode battle report")
	}

	key := BattleReportKey(snap)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", eris.Wrapf(err, "failed to upload %s to R2", key)
	}

	return fmt.Sprintf("%s/%s", a.cdnBaseURL, key), nil
}

// BattleReportKey is "battles/YYYY/MM/DD/<a>-vs-<b>-<battleId>.json", with
// participant names slugged.
func BattleReportKey(snap models.BattleSnapshot) string {
	names := make([]string, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		name := p.PlayerSnapshot.Name
		if name == "" {
			name = p.PlayerSnapshot.ID
		}
		names = append(names, name)
	}
	title := slug.Make(strings.Join(names, " vs "))
	if title == "" {
		title = "battle"
	}
	return fmt.Sprintf("battles/%s/%s-%s.json", snap.StartedAt.UTC().Format("2006/01/02"), title, snap.BattleID)
}
