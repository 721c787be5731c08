package sqsrepo

import (
	"fmt"
	"slices"
)

// SupportedRegions lists the AWS regions a [Session] may be created in.
var SupportedRegions = []string{
	"us-east-1",
	"us-west-1",
	"us-west-2",
	"ap-south-1",
	"ap-northeast-1",
	"ap-northeast-2",
	"ap-southeast-1",
	"ap-southeast-2",
	"eu-central-1",
	"eu-west-1",
	"sa-east-1",
}

// ValidateRegion returns an error wrapping [ErrUnsupportedRegion] unless
// region is one of [SupportedRegions].
func ValidateRegion(region string) error {
	if region == "" {
		return fmt.Errorf("%w: region is empty", ErrUnsupportedRegion)
	}

	if !slices.Contains(SupportedRegions, region) {
		return fmt.Errorf("%w: %s", ErrUnsupportedRegion, region)
	}

	return nil
}
