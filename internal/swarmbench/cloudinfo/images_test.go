package cloudinfo

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAMIs_ShouldReturnNewestFirst(t *testing.T) {
	service := serviceWithFake(&fakeEC2{
		describeImages: func(input *ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error) {
			require.Equal(t, []string{"amazon"}, input.Owners)
			return &ec2.DescribeImagesOutput{Images: []types.Image{
				eksImage("ami-1", "2023-01-01T00:00:00.000Z"),
				eksImage("ami-3", "2024-06-01T00:00:00.000Z"),
				eksImage("ami-2", "2023-09-01T00:00:00.000Z"),
			}}, nil
		},
	})

	images, err := service.AMIs(context.Background(), "eu-west-1", "x86_64")
	require.NoError(t, err)
	require.Len(t, images, 3)
	assert.Equal(t, "ami-3", images[0].ImageID)
	assert.Equal(t, "ami-2", images[1].ImageID)
	assert.Equal(t, "ami-1", images[2].ImageID)
}

func TestAMIs_ShouldCapResultCount(t *testing.T) {
	images := make([]types.Image, 0, maxImages+10)
	for i := 0; i < maxImages+10; i++ {
		images = append(images, eksImage(fmt.Sprintf("ami-%d", i), fmt.Sprintf("2024-01-%02dT00:00:00.000Z", i%28+1)))
	}
	service := serviceWithFake(&fakeEC2{
		describeImages: func(*ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error) {
			return &ec2.DescribeImagesOutput{Images: images}, nil
		},
	})

	result, err := service.AMIs(context.Background(), "eu-west-1", "x86_64")
	require.NoError(t, err)
	assert.Len(t, result, maxImages)
}

func TestAMIs_ShouldApplyArchitectureAndNameFilters(t *testing.T) {
	var captured *ec2.DescribeImagesInput
	service := serviceWithFake(&fakeEC2{
		describeImages: func(input *ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error) {
			captured = input
			return &ec2.DescribeImagesOutput{}, nil
		},
	})

	_, err := service.AMIs(context.Background(), "eu-west-1", "arm64")
	require.NoError(t, err)
	require.NotNil(t, captured)

	filters := map[string][]string{}
	for _, filter := range captured.Filters {
		filters[aws.ToString(filter.Name)] = filter.Values
	}
	assert.Equal(t, []string{"arm64"}, filters["architecture"])
	assert.Equal(t, eksImageNamePatterns, filters["name"])
	assert.Equal(t, []string{"available"}, filters["state"])
}

func TestOSFamily_ShouldDetectAmazonLinux2023(t *testing.T) {
	testCases := map[string]string{
		"amazon-eks-node-1.29-v20240605":  OSFamilyAmazonLinux2023,
		"my-image based on Amazon Linux 2023": OSFamilyAmazonLinux2023,
		"custom-al2023-build":             OSFamilyAmazonLinux2023,
		"ubuntu-22.04-server":             OSFamilyUnknown,
	}

	for name, expected := range testCases {
		service := serviceWithFake(&fakeEC2{
			describeImages: func(*ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error) {
				return &ec2.DescribeImagesOutput{Images: []types.Image{
					{ImageId: aws.String("ami-x"), Name: aws.String(name)},
				}}, nil
			},
		})
		assert.Equal(t, expected, service.OSFamily(context.Background(), "eu-west-1", "ami-x"), name)
	}
}

func TestOSFamily_ShouldReturnUnknownOnLookupFailure(t *testing.T) {
	service := serviceWithFake(&fakeEC2{
		describeImages: func(*ec2.DescribeImagesInput) (*ec2.DescribeImagesOutput, error) {
			return nil, errors.New("not authorised")
		},
	})

	assert.Equal(t, OSFamilyUnknown, service.OSFamily(context.Background(), "eu-west-1", "ami-x"))
}

func eksImage(id string, creationDate string) types.Image {
	return types.Image{
		ImageId:      aws.String(id),
		Name:         aws.String("amazon-eks-node-" + id),
		Architecture: types.ArchitectureValuesX8664,
		CreationDate: aws.String(creationDate),
	}
}
