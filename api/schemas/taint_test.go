package schemas_test

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
)

// jsonTags lists the JSON names of a struct's fields in declaration order.
func jsonTags(t *testing.T, v interface{}) []string {
	t.Helper()
	typ := reflect.TypeOf(v)
	require.Equal(t, reflect.Struct, typ.Kind())

	tags := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		name, _, _ := strings.Cut(typ.Field(i).Tag.Get("json"), ",")
		tags = append(tags, name)
	}
	return tags
}

func TestJSONTags(t *testing.T) {
	want := []string{"vulnerability", "sources", "sanitizers", "sinks"}
	assert.Equal(t, want, jsonTags(t, schemas.Pattern{}))
	assert.Equal(t, want, jsonTags(t, schemas.Result{}), "result fields must keep the output file key order")
	assert.Equal(t, []string{"run_id", "program", "pattern_count", "timestamp", "results"}, jsonTags(t, schemas.ResultEnvelope{}))
}

func TestResult_Encoding(t *testing.T) {
	r := schemas.Result{Vulnerability: "A", Sources: []string{"s"}, Sanitizers: []string{}, Sinks: []string{"k"}}
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"vulnerability":"A","sources":["s"],"sanitizers":[],"sinks":["k"]}`, string(data))
}

func TestPattern_DecodeWithoutSanitizers(t *testing.T) {
	var p schemas.Pattern
	require.NoError(t, json.Unmarshal([]byte(`{"vulnerability":"A","sources":["s"],"sinks":["k"]}`), &p))
	assert.Equal(t, "A", p.Vulnerability)
	assert.Nil(t, p.Sanitizers)
}

func TestResultEnvelope_RoundTrip(t *testing.T) {
	env := schemas.ResultEnvelope{
		RunID:        "run-1",
		Program:      "prog.json",
		PatternCount: 2,
		Timestamp:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Results:      []schemas.Result{{Vulnerability: "A", Sources: []string{"s"}, Sanitizers: []string{}, Sinks: []string{"k"}}},
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var back schemas.ResultEnvelope
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, env, back)
}
