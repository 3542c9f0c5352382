package store

import (
	"bytes"
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmorgan81/genserve/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type s3API interface {
	PutObject(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

type cloudFrontAPI interface {
	CreateInvalidation(context.Context, *cloudfront.CreateInvalidationInput, ...func(*cloudfront.Options)) (*cloudfront.CreateInvalidationOutput, error)
}

// S3 user metadata travels as HTTP headers, so values are escaped to keep
// prompts in any language intact.
func escapeMetadata(meta map[string]string) map[string]string {
	return lo.MapValues(meta, func(v string, _ string) string { return url.QueryEscape(v) })
}

func unescapeMetadata(meta map[string]string) map[string]string {
	return lo.MapValues(meta, func(v string, _ string) string {
		if u, err := url.QueryUnescape(v); err == nil {
			return u
		}
		return v
	})
}

type S3Uploader struct {
	Client s3API
	Bucket string
}

func NewS3Uploader(i *do.Injector) (Uploader, error) {
	return &S3Uploader{
		Client: do.MustInvoke[*s3.Client](i),
		Bucket: do.MustInvokeNamed[string](i, "bucket"),
	}, nil
}

func (u *S3Uploader) Upload(ctx context.Context, params UploadParams) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With(
		"name", params.Name,
		"content-type", params.ContentType,
		"bucket", u.Bucket,
	)
	log.Info("uploading to s3")

	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(u.Bucket),
		Key:          aws.String(params.Name),
		ContentType:  aws.String(params.ContentType),
		Body:         bytes.NewReader(params.Data),
		Metadata:     escapeMetadata(params.Metadata),
		StorageClass: s3types.StorageClassIntelligentTiering,
	})
	return err
}

type S3Lister struct {
	Client s3API
	Bucket string
}

func NewS3Lister(i *do.Injector) (Lister, error) {
	return &S3Lister{
		Client: do.MustInvoke[*s3.Client](i),
		Bucket: do.MustInvokeNamed[string](i, "bucket"),
	}, nil
}

// List pages through the bucket and fetches every image's metadata
// concurrently.
func (l *S3Lister) List(ctx context.Context) ([]Object, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("s3").With("bucket", l.Bucket)
	log.Info("listing archive")

	pager := s3.NewListObjectsV2Paginator(l.Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(l.Bucket),
	})

	var (
		mu   sync.Mutex
		objs []Object
	)
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(16)
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			_ = group.Wait()
			return nil, err
		}

		keys := lo.FilterMap(page.Contents, func(o s3types.Object, _ int) (string, bool) {
			key := aws.ToString(o.Key)
			return key, archived(key)
		})
		for _, key := range keys {
			group.Go(func() error {
				out, err := l.Client.HeadObject(ctx, &s3.HeadObjectInput{
					Bucket: aws.String(l.Bucket),
					Key:    aws.String(key),
				})
				if err != nil {
					return err
				}

				mu.Lock()
				defer mu.Unlock()
				objs = append(objs, Object{
					Name:     key,
					Metadata: unescapeMetadata(out.Metadata),
					Modified: aws.ToTime(out.LastModified),
				})
				return nil
			})
		}
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].Modified.Before(objs[j].Modified) })
	return objs, nil
}

type CloudFrontInvalidator struct {
	Client       cloudFrontAPI
	Distribution string
	now          func() time.Time
}

func NewCloudFrontInvalidator(i *do.Injector) (Invalidator, error) {
	return &CloudFrontInvalidator{
		Client:       do.MustInvoke[*cloudfront.Client](i),
		Distribution: do.MustInvokeNamed[string](i, "distribution"),
	}, nil
}

func (i *CloudFrontInvalidator) Invalidate(ctx context.Context, paths []string) error {
	log := log.FromContextOrDiscard(ctx).WithGroup("cloudfront").With("paths", paths, "distribution", i.Distribution)
	log.Info("invalidating paths in cloudfront")

	now := lo.Ternary(i.now != nil, i.now, time.Now)
	_, err := i.Client.CreateInvalidation(ctx, &cloudfront.CreateInvalidationInput{
		DistributionId: aws.String(i.Distribution),
		InvalidationBatch: &cftypes.InvalidationBatch{
			CallerReference: aws.String(now().UTC().Format("20060102150405.000000000")),
			Paths: &cftypes.Paths{
				Quantity: aws.Int32(int32(len(paths))),
				Items:    paths,
			},
		},
	})
	return err
}
