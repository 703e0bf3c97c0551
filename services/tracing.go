package services

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// traced runs fn inside an X-Ray subsegment when ctx already carries a
// segment, and runs it bare otherwise.
func traced(ctx context.Context, name string, fn func(context.Context) error) error {
	if xray.GetSegment(ctx) == nil {
		return fn(ctx)
	}
	return xray.Capture(ctx, name, fn)
}
