package scheduler_test

import (
	"testing"

	"github.com/example/internship-platform/internal/scheduler"
	"github.com/example/internship-platform/internal/scheduler/storetest"
)

func TestMemoryStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) scheduler.JobStore {
		return scheduler.NewMemoryStore(nil)
	})
}
