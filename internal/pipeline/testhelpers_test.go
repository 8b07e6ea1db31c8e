package pipeline

import (
	"context"
	"testing"

	"github.com/sells-group/careers-cli/internal/roleindex"
	"github.com/sells-group/careers-cli/internal/store"
)

func buildIndex(t *testing.T, st store.Store) *roleindex.Index {
	t.Helper()
	return roleindex.Build(context.Background(), st, 7)
}
