package query_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/kvserving/internal/query"
)

type fakeFetcher struct {
	sets map[string]map[string]struct{}
}

func (f *fakeFetcher) GetShardedKeyValueSet(ctx context.Context, identifiers []string) (map[string]map[string]struct{}, error) {
	out := make(map[string]map[string]struct{})
	for _, id := range identifiers {
		if s, ok := f.sets[id]; ok {
			out[id] = s
		}
	}
	return out, nil
}

func setOf(elems ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(elems))
	for _, e := range elems {
		s[e] = struct{}{}
	}
	return s
}

func TestRunQuery_Union(t *testing.T) {
	f := &fakeFetcher{sets: map[string]map[string]struct{}{
		"A": setOf("1", "2"),
		"B": setOf("2", "3"),
	}}
	e := query.New(f, nil)
	out, err := e.RunQuery(context.Background(), "A | B")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, out)
}

func TestRunQuery_IntersectionBindsTighterThanUnion(t *testing.T) {
	f := &fakeFetcher{sets: map[string]map[string]struct{}{
		"A": setOf("1", "2"),
		"B": setOf("2", "3"),
		"C": setOf("3", "4"),
	}}
	e := query.New(f, nil)
	// A | (B & C) == {1,2} | {3} == {1,2,3}
	out, err := e.RunQuery(context.Background(), "A | B & C")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, out)
}

func TestRunQuery_Difference(t *testing.T) {
	f := &fakeFetcher{sets: map[string]map[string]struct{}{
		"A": setOf("1", "2", "3"),
		"B": setOf("2"),
	}}
	e := query.New(f, nil)
	out, err := e.RunQuery(context.Background(), "A - B")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, out)
}

func TestRunQuery_Parentheses(t *testing.T) {
	f := &fakeFetcher{sets: map[string]map[string]struct{}{
		"A": setOf("1", "2"),
		"B": setOf("2", "3"),
		"C": setOf("1"),
	}}
	e := query.New(f, nil)
	// (A | B) & C == {1,2,3} & {1} == {1}
	out, err := e.RunQuery(context.Background(), "(A | B) & C")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, out)
}

func TestRunQuery_MissingIdentifierTreatedAsEmptySet(t *testing.T) {
	f := &fakeFetcher{sets: map[string]map[string]struct{}{"A": setOf("1")}}
	e := query.New(f, nil)
	out, err := e.RunQuery(context.Background(), "A | Missing")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, out)
}

func TestRunQuery_EmptyStringIsOKEmptyResult(t *testing.T) {
	f := &fakeFetcher{sets: map[string]map[string]struct{}{}}
	e := query.New(f, nil)
	out, err := e.RunQuery(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRunQuery_SyntaxErrorIsInvalidArgument(t *testing.T) {
	f := &fakeFetcher{}
	e := query.New(f, nil)
	_, err := e.RunQuery(context.Background(), "A &")
	require.Error(t, err)

	_, err = e.RunQuery(context.Background(), "A | (B")
	require.Error(t, err)

	_, err = e.RunQuery(context.Background(), "A $ B")
	require.Error(t, err)
}
