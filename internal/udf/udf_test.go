package udf_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/kvserving/internal/lookup"
	"github.com/adtech/kvserving/internal/udf"
)

type fakeLookup struct {
	values map[string]lookup.SingleLookupResult
}

func (f *fakeLookup) GetKeyValues(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error) {
	return f.values, nil
}
func (f *fakeLookup) GetKeyValueSet(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error) {
	return f.values, nil
}
func (f *fakeLookup) GetUint32ValueSet(ctx context.Context, keys []string) (map[string]lookup.SingleLookupResult, error) {
	return f.values, nil
}

type fakeQuery struct{ elements []string }

func (f *fakeQuery) RunQuery(ctx context.Context, queryStr string) ([]string, error) {
	return f.elements, nil
}

func TestCoreAccess_GetValuesTranslatesFoundAndNotFound(t *testing.T) {
	fl := &fakeLookup{values: map[string]lookup.SingleLookupResult{
		"present": {Status: lookup.StatusOK, Value: "v"},
		"absent":  {Status: lookup.StatusNotFound},
	}}
	access := udf.NewCoreAccess(fl, &fakeQuery{})

	results, err := access.GetValues(context.Background(), []string{"present", "absent"})
	require.NoError(t, err)

	assert.True(t, results["present"].Found)
	assert.Equal(t, "v", results["present"].Value)
	assert.False(t, results["absent"].Found)
}

func TestCoreAccess_RunQueryDelegates(t *testing.T) {
	access := udf.NewCoreAccess(&fakeLookup{}, &fakeQuery{elements: []string{"1", "2"}})

	elements, err := access.RunQuery(context.Background(), "A")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, elements)
}

type echoRunner struct{}

func (echoRunner) Run(ctx context.Context, partition udf.Partition, data udf.DataAccess) (udf.Output, error) {
	return udf.Output{Status: udf.StatusOK, Payload: partition.Input}, nil
}

type hangingRunner struct{}

func (hangingRunner) Run(ctx context.Context, partition udf.Partition, data udf.DataAccess) (udf.Output, error) {
	block := make(chan struct{})
	<-block
	return udf.Output{}, nil
}

func TestPooledRunner_ReturnsInnerResult(t *testing.T) {
	runner := udf.New(udf.Config{Inner: echoRunner{}, NumWorkers: 2, Timeout: time.Second})
	defer runner.Stop(time.Second)

	out, err := runner.Run(context.Background(), udf.Partition{ID: "p1", Input: []byte("hello")}, nil)
	require.NoError(t, err)
	assert.Equal(t, udf.StatusOK, out.Status)
	assert.Equal(t, []byte("hello"), out.Payload)
}

func TestPooledRunner_TimesOutHangingUDF(t *testing.T) {
	runner := udf.New(udf.Config{Inner: hangingRunner{}, NumWorkers: 1, Timeout: 20 * time.Millisecond})
	defer runner.Stop(time.Second)

	out, err := runner.Run(context.Background(), udf.Partition{ID: "p1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, udf.StatusTimedOut, out.Status)
}
