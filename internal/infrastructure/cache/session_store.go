// Package cache provides dialog session stores.
package cache

import (
	"io"

	"github.com/crosswms/loadorder/internal/domain/printing"
)

// SessionStore is a DocumentJobRepository that holds resources
type SessionStore interface {
	printing.DocumentJobRepository
	io.Closer
}

// cloneJob copies a job so stored sessions never alias caller memory
func cloneJob(job *printing.DocumentJob) *printing.DocumentJob {
	c := *job
	c.Records = append([]printing.DisplayRecord(nil), job.Records...)
	if c.Records == nil {
		c.Records = []printing.DisplayRecord{}
	}
	if job.LastPrint != nil {
		lp := *job.LastPrint
		c.LastPrint = &lp
	}
	return &c
}
