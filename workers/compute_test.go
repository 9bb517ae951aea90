package workers

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianlabs/ioa/memory"
	"github.com/meridianlabs/ioa/messages"
)

func requirePython3(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available on this host")
	}
}

func TestComputeWritesStdoutOnSuccess(t *testing.T) {
	requirePython3(t)
	store := memory.New()

	task := NewCompute("")
	impressions, err := task(context.Background(), messages.AgentGoal{
		RequestID: "req1",
		Content:   "print(2 + 2)",
	}, store, "req1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"compute_output"}, impressions)

	v, ok := store.Get("req1:s1:compute_output")
	require.True(t, ok)
	assert.Equal(t, "4\n", v)
}

func TestComputeReturnsTaskErrorOnNonZeroExit(t *testing.T) {
	requirePython3(t)
	store := memory.New()

	task := NewCompute("")
	_, err := task(context.Background(), messages.AgentGoal{
		RequestID: "req1",
		Content:   "import sys\nsys.exit(3)",
	}, store, "req1", "s1")
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "3", taskErr.Metadata["exit_code"])
}

func TestComputeTimesOutLongRunningProgram(t *testing.T) {
	requirePython3(t)
	store := memory.New()

	task := NewCompute("")
	goal := messages.AgentGoal{
		RequestID: "req1",
		Content:   "import time\ntime.sleep(5)",
		Metadata:  map[string]string{"timeout": "1"},
	}
	_, err := task(context.Background(), goal, store, "req1", "s1")
	require.Error(t, err)

	var taskErr *TaskError
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, "-1", taskErr.Metadata["exit_code"])
}
