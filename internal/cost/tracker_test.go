package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Record(t *testing.T) {
	tr := NewTracker()
	tr.Record("classification", Usage{PromptTokens: 100, CompletionTokens: 20})
	tr.Record("classification", Usage{PromptTokens: 50, CompletionTokens: 10})
	tr.Record("extraction", Usage{PromptTokens: 400, CompletionTokens: 80, TotalTokens: 480})

	total := tr.Total()
	assert.Equal(t, 550, total.PromptTokens)
	assert.Equal(t, 110, total.CompletionTokens)
	assert.Equal(t, 660, total.TotalTokens)

	byLabel := tr.ByLabel()
	assert.Equal(t, 150, byLabel["classification"].PromptTokens)
	assert.Equal(t, 480, byLabel["extraction"].TotalTokens)
}

func TestTracker_RecordTotalOnly(t *testing.T) {
	tr := NewTracker()
	tr.RecordTotalOnly("suggestion", 1000)

	total := tr.Total()
	assert.Equal(t, 750, total.PromptTokens)
	assert.Equal(t, 250, total.CompletionTokens)
	assert.Equal(t, 1000, total.TotalTokens)
}

func TestTracker_ConcurrentRecords(t *testing.T) {
	tr := NewTracker()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("extraction", Usage{PromptTokens: 10, CompletionTokens: 2})
		}()
	}
	wg.Wait()

	total := tr.Total()
	assert.Equal(t, 500, total.PromptTokens)
	assert.Equal(t, 100, total.CompletionTokens)
	assert.Equal(t, 600, total.TotalTokens)
}
