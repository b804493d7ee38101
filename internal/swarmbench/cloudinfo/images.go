package cloudinfo

import (
	"context"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pkg/errors"
)

// Only EKS optimised worker images are offered, so that node bootstrap never
// requires custom scripts.
var eksImageNamePatterns = []string{
	"amazon-eks-node-*",
	"amazon-eks-arm64-node-*",
}

const maxImages = 50

const OSFamilyAmazonLinux2023 = "AmazonLinux2023"
const OSFamilyUnknown = "Unknown"

type Image struct {
	ImageID string `json:"image_id"`
	Name    string `json:"name"`
	Arch    string `json:"arch"`
	Date    string `json:"date"`
}

// AMIs lists the most recent EKS optimised images for the given architecture,
// newest first.
func (s *Service) AMIs(ctx context.Context, region string, arch string) ([]Image, error) {
	client, err := s.newClient(ctx, region)
	if err != nil {
		return nil, err
	}

	var output *ec2.DescribeImagesOutput
	err = withRetry(ctx, func() error {
		output, err = client.DescribeImages(ctx, &ec2.DescribeImagesInput{
			Owners: []string{"amazon"},
			Filters: []types.Filter{
				{Name: aws.String("architecture"), Values: []string{arch}},
				{Name: aws.String("name"), Values: eksImageNamePatterns},
				{Name: aws.String("state"), Values: []string{"available"}},
			},
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to describe images")
	}

	images := append([]types.Image{}, output.Images...)
	sort.Slice(images, func(i, j int) bool {
		return aws.ToString(images[i].CreationDate) > aws.ToString(images[j].CreationDate)
	})
	if len(images) > maxImages {
		images = images[:maxImages]
	}

	result := make([]Image, 0, len(images))
	for _, image := range images {
		result = append(result, Image{
			ImageID: aws.ToString(image.ImageId),
			Name:    aws.ToString(image.Name),
			Arch:    string(image.Architecture),
			Date:    aws.ToString(image.CreationDate),
		})
	}
	return result, nil
}

// OSFamily infers the operating system family of an image from its name and
// description. Lookup failures map to Unknown rather than an error.
func (s *Service) OSFamily(ctx context.Context, region string, amiID string) string {
	client, err := s.newClient(ctx, region)
	if err != nil {
		return OSFamilyUnknown
	}

	var output *ec2.DescribeImagesOutput
	err = withRetry(ctx, func() error {
		output, err = client.DescribeImages(ctx, &ec2.DescribeImagesInput{
			ImageIds: []string{amiID},
		})
		return err
	})
	if err != nil || len(output.Images) == 0 {
		return OSFamilyUnknown
	}

	image := output.Images[0]
	text := strings.ToLower(aws.ToString(image.Name) + " " + aws.ToString(image.Description))
	for _, marker := range []string{"amazon-eks-node", "amazon linux 2023", "al2023"} {
		if strings.Contains(text, marker) {
			return OSFamilyAmazonLinux2023
		}
	}
	return OSFamilyUnknown
}
