package schema

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerVersion(t *testing.T) {
	tr := NewTracker()
	assert.Equal(t, "v1", tr.CurrentVersion())
	assert.Equal(t, "v2", tr.IncrementVersion())
	assert.Equal(t, "v2", tr.CurrentVersion())
	for i := 0; i < 8; i++ {
		tr.IncrementVersion()
	}
	assert.Equal(t, "v10", tr.CurrentVersion())
	assert.Equal(t, "v11", tr.IncrementVersion())
}

func TestTrackerConcurrentIncrement(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.IncrementVersion()
			_ = tr.CurrentVersion()
		}()
	}
	wg.Wait()
	assert.Equal(t, "v51", tr.CurrentVersion())
}

func TestTrackerDependencies(t *testing.T) {
	tr := NewTracker()
	assert.Nil(t, tr.AffectedPlans("orders"))

	tr.RecordDependencies("k1", []string{"orders", "customers"})
	tr.RecordDependencies("k2", []string{"Orders"})
	tr.RecordDependencies("k1", []string{"orders"})

	assert.ElementsMatch(t, []string{"k1", "k2"}, tr.AffectedPlans("orders"))
	assert.ElementsMatch(t, []string{"k1", "k2"}, tr.AffectedPlans("ORDERS"))
	assert.Equal(t, []string{"k1"}, tr.AffectedPlans("customers"))
	assert.Equal(t, 2, tr.TrackedTables())

	tr.Forget("k1", []string{"orders", "customers"})
	assert.Equal(t, []string{"k2"}, tr.AffectedPlans("orders"))
	assert.Nil(t, tr.AffectedPlans("customers"))
	assert.Equal(t, 1, tr.TrackedTables())

	tr.ClearTable("orders")
	assert.Nil(t, tr.AffectedPlans("orders"))

	tr.RecordDependencies("k3", []string{"a"})
	tr.RecordDependencies("k4", nil)
	tr.Reset()
	assert.Equal(t, 0, tr.TrackedTables())
	assert.Equal(t, "v1", tr.CurrentVersion())
}

func TestParseVersion(t *testing.T) {
	n, err := ParseVersion("v42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
	assert.Equal(t, "v43", FormatVersion(n+1))

	for _, bad := range []string{"", "42", "v", "vx", "V1"} {
		_, err := ParseVersion(bad)
		assert.ErrorIs(t, err, ErrInvalidVersion, bad)
	}
}
