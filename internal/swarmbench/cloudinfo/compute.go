package cloudinfo

import (
	"context"
	"math"
	"regexp"
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/pkg/errors"
)

var instanceFamilyPattern = regexp.MustCompile(`^[a-z]+`)

type InstanceType struct {
	Type string   `json:"type"`
	Arch []string `json:"arch"`
}

type InstanceInfo struct {
	InstanceType string  `json:"instance_type"`
	VCpus        int32   `json:"vcpus"`
	MemoryGiB    float64 `json:"memory_gib"`
	Arch         string  `json:"arch"`
}

// Regions lists all region names visible to the account.
func (s *Service) Regions(ctx context.Context) ([]string, error) {
	client, err := s.newClient(ctx, "")
	if err != nil {
		return nil, err
	}

	var output *ec2.DescribeRegionsOutput
	err = withRetry(ctx, func() error {
		output, err = client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to describe regions")
	}

	regions := make([]string, 0, len(output.Regions))
	for _, region := range output.Regions {
		if region.RegionName != nil {
			regions = append(regions, *region.RegionName)
		}
	}
	sort.Strings(regions)
	return regions, nil
}

// InstanceTypes lists all instance types offered in the region, grouped by
// instance family and sorted by name within each family.
func (s *Service) InstanceTypes(ctx context.Context, region string) ([]InstanceType, error) {
	client, err := s.newClient(ctx, region)
	if err != nil {
		return nil, err
	}

	items := []InstanceType{}
	paginator := ec2.NewDescribeInstanceTypesPaginator(client, &ec2.DescribeInstanceTypesInput{})
	for paginator.HasMorePages() {
		var page *ec2.DescribeInstanceTypesOutput
		err = withRetry(ctx, func() error {
			page, err = paginator.NextPage(ctx)
			return err
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to describe instance types")
		}
		for _, info := range page.InstanceTypes {
			items = append(items, InstanceType{
				Type: string(info.InstanceType),
				Arch: supportedArchitectures(info.ProcessorInfo),
			})
		}
	}

	return groupByFamily(items), nil
}

// InstanceInfo returns the vCPU, memory and architecture details for a
// single instance type.
func (s *Service) InstanceInfo(ctx context.Context, region string, instanceType string) (*InstanceInfo, error) {
	client, err := s.newClient(ctx, region)
	if err != nil {
		return nil, err
	}

	var output *ec2.DescribeInstanceTypesOutput
	err = withRetry(ctx, func() error {
		output, err = client.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{
			InstanceTypes: []types.InstanceType{types.InstanceType(instanceType)},
		})
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to describe instance type %s", instanceType)
	}
	if len(output.InstanceTypes) == 0 {
		return nil, errors.Errorf("instance type %s not found", instanceType)
	}

	info := output.InstanceTypes[0]
	memoryMiB := int64(0)
	if info.MemoryInfo != nil && info.MemoryInfo.SizeInMiB != nil {
		memoryMiB = *info.MemoryInfo.SizeInMiB
	}
	vcpus := int32(0)
	if info.VCpuInfo != nil && info.VCpuInfo.DefaultVCpus != nil {
		vcpus = *info.VCpuInfo.DefaultVCpus
	}

	return &InstanceInfo{
		InstanceType: instanceType,
		VCpus:        vcpus,
		MemoryGiB:    math.Round(float64(memoryMiB)/1024*100) / 100,
		Arch:         supportedArchitectures(info.ProcessorInfo)[0],
	}, nil
}

func supportedArchitectures(processorInfo *types.ProcessorInfo) []string {
	if processorInfo == nil || len(processorInfo.SupportedArchitectures) == 0 {
		return []string{"x86_64"}
	}
	architectures := make([]string, 0, len(processorInfo.SupportedArchitectures))
	for _, arch := range processorInfo.SupportedArchitectures {
		architectures = append(architectures, string(arch))
	}
	return architectures
}

func instanceFamily(instanceType string) string {
	family := instanceFamilyPattern.FindString(instanceType)
	if family == "" {
		return instanceType
	}
	return family
}

func groupByFamily(items []InstanceType) []InstanceType {
	grouped := map[string][]InstanceType{}
	for _, item := range items {
		family := instanceFamily(item.Type)
		grouped[family] = append(grouped[family], item)
	}

	families := make([]string, 0, len(grouped))
	for family := range grouped {
		families = append(families, family)
	}
	sort.Strings(families)

	ordered := make([]InstanceType, 0, len(items))
	for _, family := range families {
		members := grouped[family]
		sort.Slice(members, func(i, j int) bool { return members[i].Type < members[j].Type })
		ordered = append(ordered, members...)
	}
	return ordered
}
