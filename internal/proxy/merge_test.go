package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	auth := &Auth{Username: "u", Password: "p"}
	records := []Settings{
		{Host: "a", Port: "1", Protocols: []Protocol{HTTP}, NoProxy: []string{"x"}},
		{Host: "b", Port: "2", Protocols: []Protocol{HTTP}},
		{Host: "a", Port: "1", Protocols: []Protocol{HTTPS}, NoProxy: []string{"x", "y"}},
		{Host: "a", Port: "1", Auth: auth, Protocols: []Protocol{FTP}},
		{Host: "a", Port: "1", Protocols: []Protocol{HTTP}},
	}

	merged := Merge(records)
	require.Len(t, merged, 3)

	assert.Equal(t, "a", merged[0].Host)
	assert.Equal(t, []Protocol{HTTP, HTTPS}, merged[0].Protocols)
	assert.Equal(t, []string{"x", "y"}, merged[0].NoProxy)
	assert.Nil(t, merged[0].Auth)

	assert.Equal(t, "b", merged[1].Host)
	assert.Equal(t, auth, merged[2].Auth)

	// Inputs are not mutated.
	assert.Equal(t, []Protocol{HTTP}, records[0].Protocols)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c", "*.d"}, SplitList("a, b|c  *.d"))
	assert.Nil(t, SplitList(" , "))
	assert.Nil(t, SplitList(""))
}

func TestWithNoProxy(t *testing.T) {
	records := []Settings{{Host: "a", Port: "1", NoProxy: []string{"x"}}, {Host: "b", Port: "2"}}
	got := WithNoProxy(records, []string{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, got[0].NoProxy)
	assert.Equal(t, []string{"x", "y"}, got[1].NoProxy)
}
