package client

import (
	"context"
	"fmt"

	domain "github.com/calebmorten/pwc-deal-tracker/pkg/types"
)

// GetJobHistory returns recent runs of a named background job, newest first.
func (c *Client) GetJobHistory(
	ctx context.Context,
	jobName string,
	limit int,
) ([]domain.JobRun, error) {
	path := fmt.Sprintf("/api/v1/jobs/%s", jobName)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}

	var runs []domain.JobRun
	if err := c.get(ctx, path, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}
