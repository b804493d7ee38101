package cloudinfo

import (
	"context"

	"github.com/avast/retry-go"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/pkg/errors"
)

// Matches the retry policy the cluster nodes' cloud tooling uses.
const maxAPIAttempts = 4

// EC2API is the subset of the EC2 client used for metadata lookups.
// It satisfies ec2.DescribeInstanceTypesAPIClient so the SDK paginator can
// drive it directly.
type EC2API interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
	DescribeInstanceTypes(ctx context.Context, params *ec2.DescribeInstanceTypesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstanceTypesOutput, error)
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
}

type ClientFactory func(ctx context.Context, region string) (EC2API, error)

// Service answers compute metadata queries (regions, instance types, AMIs)
// against the EC2 API.
type Service struct {
	newClient ClientFactory
}

func NewService() *Service {
	return &Service{newClient: defaultClientFactory}
}

func NewServiceWithClientFactory(factory ClientFactory) *Service {
	return &Service{newClient: factory}
}

func defaultClientFactory(ctx context.Context, region string) (EC2API, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS configuration")
	}
	return ec2.NewFromConfig(cfg), nil
}

func withRetry(ctx context.Context, operation func() error) error {
	return retry.Do(
		operation,
		retry.Attempts(maxAPIAttempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
