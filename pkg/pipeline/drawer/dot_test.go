package drawer_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askiada/go-pepstore/pkg/pipeline/drawer"
	"github.com/askiada/go-pepstore/pkg/pipeline/measure"
)

func TestDOTDrawer(t *testing.T) {
	t.Parallel()

	fileName := filepath.Join(t.TempDir(), "graph.dot")
	d := drawer.NewDOTDrawer(fileName)

	for _, step := range []string{"load", "dispatch", "collect"} {
		require.NoError(t, d.AddStep(step))
	}

	require.Error(t, d.AddStep("load"))
	require.NoError(t, d.AddLink("load", "dispatch"))
	require.NoError(t, d.AddLink("dispatch", "collect"))
	require.Error(t, d.AddLink("dispatch", "unknown"))

	msr := measure.NewDefaultMeasure()
	msr.AddMetric("load", 1)
	dispatch := msr.AddMetric("dispatch", 1)
	dispatch.AddDuration(3 * time.Millisecond)
	dispatch.AddTransportDuration("load", 5*time.Millisecond)
	collect := msr.AddMetric("collect", 1)
	collect.AddTransportDuration("dispatch", time.Millisecond)
	collect.SetTotalDuration(2 * time.Second)

	require.NoError(t, d.AddMeasure(msr))
	require.NoError(t, d.Draw())

	content, err := os.ReadFile(fileName)
	require.NoError(t, err)

	dot := string(content)
	assert.Contains(t, dot, `"load" -> "dispatch"`)
	assert.Contains(t, dot, `label="5ms"`)
	assert.Contains(t, dot, `label="1ms"`)
	assert.Contains(t, dot, `<dispatch <BR /> <FONT POINT-SIZE="12">3ms</FONT>>`)
	assert.Contains(t, dot, `<collect <BR /> <FONT POINT-SIZE="12">end: 2s</FONT>>`)
}

func TestDOTDrawerEmptyMeasure(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "graph.dot"))
	require.NoError(t, d.AddStep("only"))

	msr := measure.NewDefaultMeasure()
	msr.AddMetric("only", 1)

	require.NoError(t, d.AddMeasure(msr))
	require.NoError(t, d.Draw())
}

func TestDOTDrawerUnknownStep(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "graph.dot"))

	msr := measure.NewDefaultMeasure()
	msr.AddMetric("missing", 1)

	require.Error(t, d.AddMeasure(msr))
	require.Error(t, d.SetTotalTime("missing", time.Now()))
}

func TestDOTDrawerBadPath(t *testing.T) {
	t.Parallel()

	d := drawer.NewDOTDrawer(filepath.Join(t.TempDir(), "missing", "graph.dot"))
	require.Error(t, d.Draw())
}
